/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  One database holds the time ledger, the cost tables and the directory
  (users, projects, memberships, role grants). The Store exposes a view
  per domain package because each package has its own Tx interface:

    store.Timesheets()  → timesheet.Store
    store.Costs()       → costing.Store
    store                → generic.UserDirectory, ProjectDirectory, Authorizer

KEY TABLES:
  time_records, daily_reports, weekly_reports:  Approval-tracked entries
  work_types:                                     Work type catalog
  cost_calculations, project_costs, cost_reports: Append-only derived facts
  users, projects, project_members, role_permissions, user_roles: Directory

UNIQUE INDEXES:
  These are the uniqueness invariants, not an optimization:
  - idx_time_records_unique_day:      (user_id, project_id, work_date)
  - idx_daily_reports_unique_day:     (user_id, report_date)
  - idx_weekly_reports_unique_week:   (user_id, week_start)
  - idx_cost_calculations_unique_day: (user_id, project_id, calculation_date)
  - idx_project_costs_unique_period:  (project_id, cost_type, period_start, period_end)
  - work_types primary key:           (name)

  A violation is translated to the domain's conflict reason.

CONCURRENCY:
  Uses sync.RWMutex: reads share, WithTx is exclusive. The pool is held to
  a single connection so ":memory:" databases are one database, not one
  per connection. Inside WithTx every read goes through the transaction.

MIGRATION:
  Schema is versioned under migrations/ and applied with golang-migrate
  on New().

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := timesheet.NewTimeLedger(store.Timesheets(), store, store)

SEE ALSO:
  - generic/store.go: TxRunner contract
  - timesheet/types.go, costing/types.go: Tx interfaces implemented here
  - generic/store/memory.go: In-memory directory for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/cost-ledger/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	Logger *zap.Logger
}

// New opens the database at dbPath and applies pending migrations.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return NewWithLogger(dbPath, zap.NewNop())
}

func NewWithLogger(dbPath string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, Logger: logger}
	if err := runMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := store.seedRoles(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed roles: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// QUERIER - Shared by *sql.DB and *sql.Tx
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every statement. It runs against the database or an open
// transaction, and as a value it satisfies both timesheet.Tx and costing.Tx.
type queries struct {
	db querier
}

// read runs fn against the database under the shared lock.
func read[T any](s *Store, fn func(q queries) (T, error)) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(queries{db: s.db})
}

// withTx runs fn in one database transaction under the exclusive lock.
func (s *Store) withTx(ctx context.Context, fn func(q queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return generic.StorageError("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(queries{db: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		s.Logger.Error("commit failed", zap.Error(err))
		return generic.StorageError("commit transaction", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

const timestampLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timestampLayout, s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func parseNullDecimal(s sql.NullString) decimal.NullDecimal {
	if !s.Valid || s.String == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func formatDecimal(d decimal.Decimal) string {
	return d.StringFixed(generic.Scale)
}

func parseDate(s string) generic.Date {
	return generic.ParseOptionalDate(s)
}

func parseClock(s string) generic.Clock {
	c, _ := generic.ParseClock(s)
	return c
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// insertError maps a unique violation to reason and anything else to a
// storage failure.
func insertError(err error, reason *generic.Reason, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if isUniqueConstraintError(err) {
		return generic.Errorf(reason, format, args...)
	}
	return generic.StorageError(fmt.Sprintf(format, args...), err)
}

// notFound maps sql.ErrNoRows to reason.
func notFound(err error, reason *generic.Reason, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Errorf(reason, format, args...)
	}
	return generic.StorageError(fmt.Sprintf(format, args...), err)
}

// requireAffected turns a zero-row UPDATE/DELETE into reason.
func requireAffected(res sql.Result, reason *generic.Reason, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return generic.StorageError("rows affected", err)
	}
	if n == 0 {
		return generic.Errorf(reason, format, args...)
	}
	return nil
}

// where accumulates AND-ed conditions for list queries.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) addIf(ok bool, cond string, args ...any) {
	if ok {
		w.add(cond, args...)
	}
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	out := " WHERE " + w.conds[0]
	for _, c := range w.conds[1:] {
		out += " AND " + c
	}
	return out
}
