package repository

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"spendbook/internal/core"
	"spendbook/internal/events"
	"spendbook/internal/export"
	"spendbook/internal/storage"
)

// dayMillis is the length of one calendar day minus one millisecond, so a
// day's bounds are [startOfDay, startOfDay+dayMillis].
const dayMillis = 86_399_999

// Repository mediates between the store and the rest of the system. It owns
// the cross-cutting calendar arithmetic and the export delegation, and it
// publishes change events for external consumers when a client is configured.
type Repository struct {
	store  *storage.Store
	events *events.Client       // optional
	sheets *export.SheetsClient // optional
}

func New(store *storage.Store, eventsClient *events.Client, sheetsClient *export.SheetsClient) *Repository {
	return &Repository{
		store:  store,
		events: eventsClient,
		sheets: sheetsClient,
	}
}

// StartOfDay returns 00:00:00.000 of the local calendar day containing ms.
func (r *Repository) StartOfDay(ms int64) int64 {
	t := time.UnixMilli(ms)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).UnixMilli()
}

// EndOfDay returns 23:59:59.999 of the local calendar day containing ms.
func (r *Repository) EndOfDay(ms int64) int64 {
	return r.StartOfDay(ms) + dayMillis
}

// DateRangeForLastDays returns [start, end] where end is the current instant
// and start is the start of day (days-1) calendar days ago: an inclusive
// window of exactly `days` calendar days ending today.
func (r *Repository) DateRangeForLastDays(days int) (int64, int64) {
	now := time.Now()
	start := r.StartOfDay(now.AddDate(0, 0, -(days - 1)).UnixMilli())
	return start, now.UnixMilli()
}

// Insert persists a record and publishes a created event.
func (r *Repository) Insert(ctx context.Context, e core.Expense) (int64, error) {
	id, err := r.store.Insert(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	r.publish(ctx, func() error { return r.events.PublishExpenseCreated(ctx, id) })
	return id, nil
}

// Delete removes a record and publishes a deleted event.
func (r *Repository) Delete(ctx context.Context, e core.Expense) error {
	if err := r.store.Delete(ctx, e); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	r.publish(ctx, func() error { return r.events.PublishExpenseDeleted(ctx, e.ID) })
	return nil
}

// publish runs a change-event publish, tolerating an unconfigured client and
// never failing the write that triggered it.
func (r *Repository) publish(ctx context.Context, fn func() error) {
	if r.events == nil {
		return
	}
	if err := fn(); err != nil {
		slog.WarnContext(ctx, "Failed to publish change event", "error", err)
	}
}

func (r *Repository) FindDuplicate(ctx context.Context, title string, amount float64, dayStart, dayEnd int64) (*core.Expense, error) {
	return r.store.FindDuplicate(ctx, title, amount, dayStart, dayEnd)
}

func (r *Repository) All(ctx context.Context) ([]core.Expense, error) {
	return r.store.All(ctx)
}

func (r *Repository) Between(ctx context.Context, from, to int64) ([]core.Expense, error) {
	return r.store.Between(ctx, from, to)
}

func (r *Repository) ForDay(ctx context.Context, dayStart, dayEnd int64) ([]core.Expense, error) {
	return r.store.ForDay(ctx, dayStart, dayEnd)
}

func (r *Repository) CategoryTotals(ctx context.Context, from, to int64) ([]core.CategoryTotal, error) {
	return r.store.CategoryTotals(ctx, from, to)
}

func (r *Repository) Count(ctx context.Context, from, to int64) (int, error) {
	return r.store.Count(ctx, from, to)
}

func (r *Repository) Sum(ctx context.Context, from, to int64) (float64, error) {
	return r.store.Sum(ctx, from, to)
}

// WatchAll exposes the store's live view over the full expense set.
func (r *Repository) WatchAll(ctx context.Context) (<-chan []core.Expense, error) {
	return r.store.WatchAll(ctx)
}

// FilteredExpenses is a one-shot read of the trailing N-day window.
func (r *Repository) FilteredExpenses(ctx context.Context, days int) ([]core.Expense, error) {
	from, to := r.DateRangeForLastDays(days)
	return r.store.Between(ctx, from, to)
}

// DailyTotalsByDay folds the store's raw-timestamp buckets into local
// calendar-day buckets, ascending by day.
func (r *Repository) DailyTotalsByDay(ctx context.Context, from, to int64) ([]core.DailyTotal, error) {
	raw, err := r.store.TimestampTotals(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byDay := make(map[int64]float64)
	for _, dt := range raw {
		byDay[r.StartOfDay(dt.DateMillis)] += dt.Total
	}

	days := make([]int64, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	totals := make([]core.DailyTotal, 0, len(days))
	for _, day := range days {
		totals = append(totals, core.DailyTotal{DateMillis: day, Total: byDay[day]})
	}
	return totals, nil
}

// TodayTotal sums the amounts whose date falls within the current local
// calendar day.
func (r *Repository) TodayTotal(expenses []core.Expense) float64 {
	now := time.Now().UnixMilli()
	start := r.StartOfDay(now)
	end := start + dayMillis

	var total float64
	for _, e := range expenses {
		if e.DateMillis >= start && e.DateMillis <= end {
			total += e.Amount
		}
	}
	return total
}

// ToCSV renders records in the fixed export format.
func (r *Repository) ToCSV(expenses []core.Expense) string {
	return export.CSV(expenses)
}

// WritePDF renders records as a paginated document onto w.
func (r *Repository) WritePDF(expenses []core.Expense, w io.Writer) error {
	return export.WritePDF(expenses, w)
}

// AppendToSheet appends records to the configured spreadsheet.
func (r *Repository) AppendToSheet(ctx context.Context, expenses []core.Expense) error {
	if r.sheets == nil {
		return fmt.Errorf("sheets export not configured")
	}
	return r.sheets.Append(ctx, expenses)
}
