package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/charter-reconciler/internal/api"
	"github.com/eshaffer321/charter-reconciler/internal/api/dto"
	"github.com/eshaffer321/charter-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/eshaffer321/charter-reconciler/internal/infrastructure/storage"
)

func newTestServer(t *testing.T) (*api.Server, *storage.Storage) {
	t.Helper()
	repo, err := storage.NewSQLiteStorage(context.Background(), filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return api.NewServer(api.DefaultConfig(), repo, logger), repo
}

func get(t *testing.T, server *api.Server, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
	}
	return rec
}

// runAllocation seeds a deposit with two open records and allocates it.
func runAllocation(t *testing.T, repo *storage.Storage) *reconcile.Result {
	t.Helper()
	ctx := context.Background()

	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("1000.00")
	_, err := repo.InsertTransaction(ctx, &ledger.Transaction{
		ID: "D1", Date: &day, Amount: &amount, Method: "batch_deposit", Account: "OPERATING", ContentHash: "hash-D1",
	})
	require.NoError(t, err)
	for id, due := range map[string]string{"A": "600.00", "B": "400.00"} {
		_, err := repo.InsertBusinessRecord(ctx, &ledger.BusinessRecord{
			ID: id, BusinessKey: ledger.BusinessKey("30000" + id), Date: day, AmountDue: decimal.RequireFromString(due),
		})
		require.NoError(t, err)
	}

	engine, err := reconcile.NewEngine(repo, reconcile.DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	result, err := engine.AllocateDeposits(ctx, reconcile.AllocateOptions{})
	require.NoError(t, err)
	return result
}

func TestServer_HealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	var response dto.HealthResponse
	rec := get(t, server, "/health", &response)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, int64(2), response.SchemaVersion)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RunEndpoints(t *testing.T) {
	server, repo := newTestServer(t)
	result := runAllocation(t, repo)

	var runs dto.RunListResponse
	rec := get(t, server, "/api/runs", &runs)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, runs.Count)
	assert.Equal(t, result.RunID, runs.Runs[0].ID)
	assert.Equal(t, "allocate", runs.Runs[0].Kind)
	assert.Equal(t, 1, runs.Runs[0].Allocated)

	var run dto.RunResponse
	rec = get(t, server, "/api/runs/"+result.RunID, &run)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, storage.RunStatusCompleted, run.Status)

	var outcomes dto.OutcomeListResponse
	rec = get(t, server, "/api/runs/"+result.RunID+"/outcomes", &outcomes)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, outcomes.Count)
	assert.Equal(t, "D1", outcomes.Outcomes[0].TransactionID)
	assert.Equal(t, "allocated", outcomes.Outcomes[0].Status)

	rec = get(t, server, "/api/runs/unknown/outcomes", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_TransactionEndpoints(t *testing.T) {
	server, repo := newTestServer(t)
	runAllocation(t, repo)

	var allocations dto.AllocationListResponse
	rec := get(t, server, "/api/transactions/D1/allocations", &allocations)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, allocations.Count)
	assert.Equal(t, "1000.00", allocations.Total)

	var tx dto.TransactionResponse
	rec = get(t, server, "/api/transactions/D1", &tx)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "batch_deposit", tx.Method)
	assert.Empty(t, tx.BusinessRecordID)
}

func TestServer_StatsEndpoint(t *testing.T) {
	server, repo := newTestServer(t)
	runAllocation(t, repo)

	var stats dto.StatsResponse
	rec := get(t, server, "/api/stats", &stats)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, stats.Transactions)
	assert.Equal(t, 1, stats.AllocatedDeposits)
	assert.Equal(t, 2, stats.BusinessRecords)
	assert.Equal(t, 2, stats.Allocations)
	assert.Equal(t, 1, stats.Runs)
}

func TestServer_UnknownRoute(t *testing.T) {
	server, _ := newTestServer(t)
	rec := get(t, server, "/api/orders", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
