package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cuentas/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ RecordStore = (*SQLiteRepository)(nil)
var _ AuditWriter = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
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

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const recordColumns = `id, kind, COALESCE(category_id, ''), category, concept, amount, date, note, status, expense_type, is_recurring, currency`

func (r *SQLiteRepository) ListRecords(ctx context.Context, kind core.Kind) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE kind = ? AND deleted_at IS NULL ORDER BY date, id`,
		string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s records: %w", kind, err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s records: %w", kind, err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetRecord(ctx context.Context, kind core.Kind, id string) (core.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE kind = ? AND id = ? AND deleted_at IS NULL`,
		string(kind), id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, ErrRecordNotFound
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("get record %s: %w", id, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) CreateRecord(ctx context.Context, rec core.Record) (core.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Status = core.DeriveStatus(rec.Status, rec.Note)
	if rec.Kind == core.KindExpense {
		rec.ExpenseType = core.NormalizeExpenseType(rec.ExpenseType)
	}
	if rec.Currency == "" {
		rec.Currency = "EUR"
	}
	if err := rec.Validate(); err != nil {
		return core.Record{}, err
	}

	err := r.mutate(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO records (id, kind, category_id, category, concept, amount, date, note, status, expense_type, is_recurring, currency)
			 VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, string(rec.Kind), rec.CategoryID, rec.Category, rec.Concept,
			rec.Amount.String(), rec.Date.UTC().Format(time.RFC3339), rec.Note,
			string(rec.Status), string(rec.ExpenseType), boolToInt(rec.IsRecurring), rec.Currency)
		return err
	})
	if err != nil {
		return core.Record{}, fmt.Errorf("create record: %w", err)
	}

	slog.InfoContext(ctx, "Record saved",
		"id", rec.ID,
		"kind", rec.Kind,
		"category", rec.Category,
		"amount", rec.Amount.String(),
		"month", rec.Date.UTC().Format("2006-01"))
	return rec, nil
}

func (r *SQLiteRepository) UpdateRecord(ctx context.Context, kind core.Kind, id string, patch RecordPatch) (core.Record, error) {
	sets := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []any{}
	if patch.Amount != nil {
		sets = append(sets, "amount = ?")
		args = append(args, patch.Amount.String())
	}
	if patch.Note != nil {
		sets = append(sets, "note = ?")
		args = append(args, *patch.Note)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.ExpenseType != nil {
		sets = append(sets, "expense_type = ?")
		args = append(args, string(core.NormalizeExpenseType(*patch.ExpenseType)))
	}
	args = append(args, string(kind), id)

	err := r.mutate(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE records SET `+strings.Join(sets, ", ")+` WHERE kind = ? AND id = ? AND deleted_at IS NULL`,
			args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, ErrRecordNotFound) {
		return core.Record{}, ErrRecordNotFound
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("update record %s: %w", id, err)
	}
	return r.GetRecord(ctx, kind, id)
}

// DeleteRecord soft deletes so the audit trail keeps a referent.
func (r *SQLiteRepository) DeleteRecord(ctx context.Context, kind core.Kind, id string) error {
	err := r.mutate(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE records SET deleted_at = CURRENT_TIMESTAMP WHERE kind = ? AND id = ? AND deleted_at IS NULL`,
			string(kind), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}

	slog.InfoContext(ctx, "Record deleted", "id", id, "kind", kind)
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, kind FROM categories ORDER BY kind, name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var kind string
		if err := rows.Scan(&c.ID, &c.Name, &kind); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Kind = core.Kind(kind)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

// UpsertCategory registers a category if it is not already known.
func (r *SQLiteRepository) UpsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, kind) VALUES (?, ?, ?)
		 ON CONFLICT (name, kind) DO NOTHING`,
		c.ID, c.Name, string(c.Kind))
	if err != nil {
		return core.Category{}, fmt.Errorf("upsert category %s: %w", c.Name, err)
	}
	row := r.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ? AND kind = ?`, c.Name, string(c.Kind))
	if err := row.Scan(&c.ID); err != nil {
		return core.Category{}, fmt.Errorf("read back category %s: %w", c.Name, err)
	}
	return c, nil
}

func (r *SQLiteRepository) Version(ctx context.Context) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'revision'`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read revision: %w", err)
	}
	return v, nil
}

func (r *SQLiteRepository) AppendAudit(ctx context.Context, entry AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, op, kind, record_id, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Op, string(entry.Kind), entry.RecordID, entry.Detail,
		entry.At.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// mutate wraps a write in a transaction that also bumps the revision
// counter, so memoized grid snapshots invalidate on any change.
func (r *SQLiteRepository) mutate(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE meta SET value = value + 1 WHERE key = 'revision'`); err != nil {
		return fmt.Errorf("bump revision: %w", err)
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (core.Record, error) {
	var rec core.Record
	var kind, amount, date, status, expenseType string
	var recurring int
	if err := row.Scan(&rec.ID, &kind, &rec.CategoryID, &rec.Category, &rec.Concept,
		&amount, &date, &rec.Note, &status, &expenseType, &recurring, &rec.Currency); err != nil {
		return core.Record{}, err
	}
	rec.Kind = core.Kind(kind)
	rec.IsRecurring = recurring != 0
	rec.ExpenseType = core.ExpenseType(expenseType)
	// Legacy rows carry their forecast state in the note.
	rec.Status = core.DeriveStatus(core.RecordStatus(status), rec.Note)

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Record{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	rec.Amount = amt

	t, err := time.Parse(time.RFC3339, date)
	if err != nil {
		// An unparsable date excludes the record from month bucketing but
		// must never fail a listing.
		slog.Warn("Record has unparsable date", "id", rec.ID, "date", date)
		t = time.Time{}
	}
	rec.Date = t
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
