package reconcile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/eshaffer321/charter-reconciler/internal/infrastructure/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *storage.Storage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(context.Background(), filepath.Join(t.TempDir(), "reconcile.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestEngine(t *testing.T, store Store, opts ...Option) *Engine {
	t.Helper()
	engine, err := NewEngine(store, DefaultConfig(), nil, opts...)
	require.NoError(t, err)
	return engine
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedTx(t *testing.T, store Store, id, amount, date, method, memo string) {
	t.Helper()
	a := money(amount)
	d := day(date)
	_, err := store.InsertTransaction(context.Background(), &ledger.Transaction{
		ID:          id,
		Amount:      &a,
		Date:        &d,
		Method:      method,
		Memo:        memo,
		Account:     "OPERATING",
		ContentHash: "hash-" + id,
	})
	require.NoError(t, err)
}

func seedRecord(t *testing.T, store Store, id, key, due, date string) {
	t.Helper()
	_, err := store.InsertBusinessRecord(context.Background(), &ledger.BusinessRecord{
		ID:          id,
		BusinessKey: ledger.BusinessKey(key),
		Date:        day(date),
		AmountDue:   money(due),
	})
	require.NoError(t, err)
}

func sumRows(rows []ledger.Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Amount)
	}
	return total
}

// failingStore fails record lookups for one business key.
type failingStore struct {
	*storage.Storage
	failKey ledger.BusinessKey
	err     error
}

func (f *failingStore) FindRecordsByKeys(ctx context.Context, keys []ledger.BusinessKey) ([]ledger.BusinessRecord, error) {
	for _, k := range keys {
		if k == f.failKey {
			return nil, f.err
		}
	}
	return f.Storage.FindRecordsByKeys(ctx, keys)
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Record(ctx context.Context, runID string, o Outcome) error {
	args := m.Called(ctx, runID, o)
	return args.Error(0)
}
