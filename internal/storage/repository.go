package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"faturamento/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicateSuccessor is returned when an insert collides with the
// (client, parent, due date) successor index.
var ErrDuplicateSuccessor = errors.New("successor invoice already exists")

type (
	ClientStore interface {
		CreateClient(ctx context.Context, c core.Client) (core.Client, error)
		GetClient(ctx context.Context, id int64) (core.Client, error)
		ListClients(ctx context.Context) ([]core.Client, error)
		UpdateClient(ctx context.Context, c core.Client) (core.Client, error)
		DeleteClient(ctx context.Context, id int64) error
	}

	ProductStore interface {
		CreateProduct(ctx context.Context, p core.Product) (core.Product, error)
		GetProduct(ctx context.Context, id int64) (core.Product, error)
		ListProducts(ctx context.Context, clientID int64) ([]core.Product, error)
		UpdateProduct(ctx context.Context, p core.Product) (core.Product, error)
		DeleteProduct(ctx context.Context, id int64) error
	}

	NoteStore interface {
		CreateNote(ctx context.Context, n core.Note) (core.Note, error)
		GetNote(ctx context.Context, id int64) (core.Note, error)
		ListNotes(ctx context.Context, clientID int64) ([]core.Note, error)
		UpdateNote(ctx context.Context, n core.Note) (core.Note, error)
		DeleteNote(ctx context.Context, id int64) error
	}

	InvoiceStore interface {
		CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error)
		GetInvoice(ctx context.Context, id int64) (core.Invoice, error)
		ListInvoices(ctx context.Context, filter core.InvoiceFilter) ([]core.Invoice, error)
		UpdateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error)
		DeleteInvoice(ctx context.Context, id int64) error
		// FindSuccessor returns core.ErrNotFound when no successor matches key.
		FindSuccessor(ctx context.Context, key core.SuccessorKey) (core.Invoice, error)
		// MarkOverdue moves pending invoices due before asOf to overdue and
		// returns the transitioned rows.
		MarkOverdue(ctx context.Context, asOf core.Date) ([]core.Invoice, error)
		TotalsByStatus(ctx context.Context, filter core.InvoiceFilter) (map[core.Status]decimal.Decimal, error)
		LatestInvoices(ctx context.Context, limit int) ([]core.InvoiceWithClient, error)
	}

	SummaryStore interface {
		GetSummary(ctx context.Context, p core.Period) (core.MonthlySummary, error)
		UpsertSummary(ctx context.Context, s core.MonthlySummary) (core.MonthlySummary, error)
		LatestSummaries(ctx context.Context, limit int) ([]core.MonthlySummary, error)
	}

	// Store is the entity store used by the services. Atomic runs fn inside a
	// single transaction; the Store handed to fn is bound to it.
	Store interface {
		ClientStore
		ProductStore
		NoteStore
		InvoiceStore
		SummaryStore
		Atomic(ctx context.Context, fn func(Store) error) error
	}
)

type SQLiteRepository struct {
	*Queries
	db *sqlx.DB
}

var _ Store = (*SQLiteRepository)(nil)

// dsn enables foreign keys (needed for cascades), waits on locks and takes
// the write lock when a transaction begins.
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewRepository(db), nil
}

// NewRepository wraps an already migrated database handle.
func NewRepository(db *sqlx.DB) *SQLiteRepository {
	return &SQLiteRepository{
		Queries: &Queries{db: db, now: utcNow},
		db:      db,
	}
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping verifies the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// DB exposes the handle for health checks and metrics.
func (r *SQLiteRepository) DB() *sqlx.DB {
	return r.db
}

func (r *SQLiteRepository) Atomic(ctx context.Context, fn func(Store) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.ErrorContext(ctx, "Failed to roll back transaction", "error", rbErr)
			}
		}
	}()

	if err = fn(&txStore{Queries: &Queries{db: tx, now: r.now}}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore is a Store bound to an open transaction. Nested Atomic calls join it.
type txStore struct {
	*Queries
}

func (t *txStore) Atomic(_ context.Context, fn func(Store) error) error {
	return fn(t)
}

// Queries implements the entity operations on either a *sqlx.DB or a *sqlx.Tx.
type Queries struct {
	db  sqlx.ExtContext
	now func() time.Time
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func (q *Queries) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return q.now()
	}
	return t.UTC()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return false
}

func checkAffected(res interface{ RowsAffected() (int64, error) }, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.NotFoundError(entity, id)
	}
	return nil
}
