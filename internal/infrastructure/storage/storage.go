package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyLinked     = errors.New("transaction already linked")
	ErrNotLinked         = errors.New("transaction not linked to record")
	ErrRecordLinked      = errors.New("business record already linked to another transaction")
	ErrAlreadyAllocated  = errors.New("transaction already allocated")
	ErrConcurrentUpdate  = errors.New("concurrent update detected")
	ErrUnbalanced        = errors.New("allocation rows do not sum to transaction amount")
	ErrUnsupportedDriver = errors.New("unsupported storage driver")
)

// Options configures NewStorage.
type Options struct {
	Driver string // sqlite3 (default) or postgres
	DSN    string // file path for sqlite3, connection string for postgres
	Logger *slog.Logger
}

// Storage provides relational access to transactions, business records,
// allocations and run audit data. It implements the Repository interface.
type Storage struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
	now    func() time.Time
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage opens the database and runs all pending migrations.
func NewStorage(ctx context.Context, opts Options) (*Storage, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dsn := opts.DSN
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	s := &Storage{
		db:     db,
		driver: driver,
		logger: logger.With("component", "storage"),
		now:    func() time.Time { return time.Now().UTC() },
	}

	// Run all pending migrations
	if err := s.runMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if driver == DriverSQLite {
		// SQLite serializes writers; a single connection keeps immediate
		// transactions from queueing behind each other's busy timeout.
		db.SetMaxOpenConns(1)
	}

	return s, nil
}

// NewSQLiteStorage is a shorthand for a SQLite database at path.
func NewSQLiteStorage(ctx context.Context, path string) (*Storage, error) {
	return NewStorage(ctx, Options{Driver: DriverSQLite, DSN: path})
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// Driver returns the database driver name.
func (s *Storage) Driver() string {
	return s.driver
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
}

// q rewrites '?' placeholders to the driver's bind syntax.
func (s *Storage) q(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// withTx runs fn inside a database transaction, committing only when fn
// returns nil.
func (s *Storage) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
