package handlers_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/eshaffer321/charter-reconciler/internal/infrastructure/storage"
)

func newTestRepo(t *testing.T) *storage.Storage {
	t.Helper()
	repo, err := storage.NewSQLiteStorage(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func setChiURLParam(ctx context.Context, key, value string) context.Context {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return context.WithValue(ctx, chi.RouteCtxKey, rctx)
}

func seedRun(t *testing.T, repo *storage.Storage, kind string, dryRun bool, processed int) string {
	t.Helper()
	ctx := context.Background()
	run, err := repo.StartRun(ctx, kind, dryRun)
	require.NoError(t, err)
	run.Processed = processed
	run.Applied = processed
	require.NoError(t, repo.CompleteRun(ctx, run))
	return run.ID
}

func seedDeposit(t *testing.T, repo *storage.Storage, id, amount string) {
	t.Helper()
	a := decimal.RequireFromString(amount)
	d := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := repo.InsertTransaction(context.Background(), &ledger.Transaction{
		ID:          id,
		Date:        &d,
		Amount:      &a,
		Method:      "batch_deposit",
		Account:     "OPERATING",
		ContentHash: "hash-" + id,
	})
	require.NoError(t, err)
}
