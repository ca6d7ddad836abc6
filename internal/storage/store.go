package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"spendbook/internal/core"

	_ "modernc.org/sqlite"
)

const expenseColumns = "id, title, amount, category, note, date_millis, receipt_uri, created_at"

// Store is the durable table of expense records, backed by a single local
// SQLite file. It serializes access internally; there are no external
// concurrent writers.
type Store struct {
	db *sql.DB

	mu       sync.Mutex
	watchers map[int]chan struct{}
	nextID   int
}

// Open opens (creating if necessary) the database at dbPath and brings the
// schema up to date.
func Open(dbPath string) (*Store, error) {
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

	return &Store{
		db:       db,
		watchers: make(map[int]chan struct{}),
	}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Insert persists a record and returns its identifier. A zero ID is assigned
// by the store; an explicit ID replaces any existing row with that ID.
// CreatedAt is set once, at first insert, when zero.
func (s *Store) Insert(ctx context.Context, e core.Expense) (int64, error) {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}

	var (
		res sql.Result
		err error
	)
	if e.ID == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO expenses (title, amount, category, note, date_millis, receipt_uri, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.Title, e.Amount, string(e.Category), nullable(e.Note), e.DateMillis, nullable(e.ReceiptURI), e.CreatedAt)
	} else {
		res, err = s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO expenses (id, title, amount, category, note, date_millis, receipt_uri, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Title, e.Amount, string(e.Category), nullable(e.Note), e.DateMillis, nullable(e.ReceiptURI), e.CreatedAt)
	}
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}

	id := e.ID
	if id == 0 {
		id, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("read inserted id: %w", err)
		}
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"title", e.Title,
		"amount", e.Amount,
		"category", string(e.Category))

	s.notify()
	return id, nil
}

// Delete removes the row matching the record's identifier. Deleting a record
// that does not exist is a no-op, never an error.
func (s *Store) Delete(ctx context.Context, e core.Expense) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, e.ID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		slog.InfoContext(ctx, "Expense deleted", "id", e.ID)
		s.notify()
	}
	return nil
}

// FindDuplicate returns the first record with the exact title, exact amount,
// and a date within [dayStart, dayEnd], or nil when none matches. Matching is
// case-sensitive with no normalization.
func (s *Store) FindDuplicate(ctx context.Context, title string, amount float64, dayStart, dayEnd int64) (*core.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE title = ? AND amount = ? AND date_millis BETWEEN ? AND ?
		 LIMIT 1`,
		title, amount, dayStart, dayEnd)

	e, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find duplicate: %w", err)
	}
	return &e, nil
}

// All returns every record, newest first.
func (s *Store) All(ctx context.Context) ([]core.Expense, error) {
	return s.queryExpenses(ctx,
		`SELECT `+expenseColumns+` FROM expenses ORDER BY date_millis DESC`)
}

// Between returns records dated within [from, to], newest first.
func (s *Store) Between(ctx context.Context, from, to int64) ([]core.Expense, error) {
	return s.queryExpenses(ctx,
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE date_millis BETWEEN ? AND ? ORDER BY date_millis DESC`,
		from, to)
}

// ForDay returns records dated within a single day's bounds, newest first.
func (s *Store) ForDay(ctx context.Context, dayStart, dayEnd int64) ([]core.Expense, error) {
	return s.Between(ctx, dayStart, dayEnd)
}

// CategoryTotals sums amounts grouped by category within [from, to].
func (s *Store) CategoryTotals(ctx context.Context, from, to int64) ([]core.CategoryTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, SUM(amount) AS total FROM expenses
		 WHERE date_millis BETWEEN ? AND ? GROUP BY category`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	var totals []core.CategoryTotal
	for rows.Next() {
		var (
			raw   string
			total float64
		)
		if err := rows.Scan(&raw, &total); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		totals = append(totals, core.CategoryTotal{
			Category: core.ParseCategory(raw),
			Total:    total,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("category totals rows: %w", err)
	}
	return totals, nil
}

// TimestampTotals sums amounts grouped by the raw millisecond timestamp
// within [from, to], ascending. Callers wanting calendar-day buckets fold
// these; see repository.DailyTotalsByDay.
func (s *Store) TimestampTotals(ctx context.Context, from, to int64) ([]core.DailyTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date_millis, SUM(amount) AS total FROM expenses
		 WHERE date_millis BETWEEN ? AND ? GROUP BY date_millis ORDER BY date_millis`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("timestamp totals: %w", err)
	}
	defer rows.Close()

	var totals []core.DailyTotal
	for rows.Next() {
		var dt core.DailyTotal
		if err := rows.Scan(&dt.DateMillis, &dt.Total); err != nil {
			return nil, fmt.Errorf("scan timestamp total: %w", err)
		}
		totals = append(totals, dt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("timestamp totals rows: %w", err)
	}
	return totals, nil
}

// Count returns the number of records dated within [from, to].
func (s *Store) Count(ctx context.Context, from, to int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM expenses WHERE date_millis BETWEEN ? AND ?`,
		from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

// Sum returns the sum of amounts dated within [from, to]. A range matching
// zero rows sums to 0.
func (s *Store) Sum(ctx context.Context, from, to int64) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(amount) FROM expenses WHERE date_millis BETWEEN ? AND ?`,
		from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum expenses: %w", err)
	}
	return total.Float64, nil
}

func (s *Store) queryExpenses(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("expense rows: %w", err)
	}
	return expenses, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e        core.Expense
		category string
		note     sql.NullString
		receipt  sql.NullString
	)
	err := row.Scan(&e.ID, &e.Title, &e.Amount, &category, &note, &e.DateMillis, &receipt, &e.CreatedAt)
	if err != nil {
		return core.Expense{}, err
	}
	e.Category = core.ParseCategory(category)
	e.Note = note.String
	e.ReceiptURI = receipt.String
	return e, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
