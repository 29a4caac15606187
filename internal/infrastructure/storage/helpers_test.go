package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := NewSQLiteStorage(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
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

func insertTx(t *testing.T, store *Storage, id, amount, date, method string) *ledger.Transaction {
	t.Helper()
	a := money(amount)
	d := day(date)
	tx := &ledger.Transaction{
		ID:          id,
		Amount:      &a,
		Date:        &d,
		Method:      method,
		Account:     "CHK",
		ContentHash: "hash-" + id,
	}
	inserted, err := store.InsertTransaction(context.Background(), tx)
	require.NoError(t, err)
	require.True(t, inserted)
	return tx
}

func insertRecord(t *testing.T, store *Storage, id, key, due, date string) *ledger.BusinessRecord {
	t.Helper()
	rec := &ledger.BusinessRecord{
		ID:          id,
		BusinessKey: ledger.BusinessKey(key),
		Date:        day(date),
		AmountDue:   money(due),
	}
	inserted, err := store.InsertBusinessRecord(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, inserted)
	return rec
}
