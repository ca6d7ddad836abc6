// Package state owns the single source of truth for what a client of the
// application should currently show: the full expense set, the filtered
// subset, and the derived aggregates. All mutation goes through the
// Controller's transition methods; observers receive immutable snapshots.
package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"spendbook/internal/core"
	"spendbook/internal/repository"
)

// DefaultFilterDays is the trailing window applied until the user picks one.
const DefaultFilterDays = 7

// ExportFormat selects an export target.
type ExportFormat string

const (
	ExportCSV    ExportFormat = "csv"
	ExportPDF    ExportFormat = "pdf"
	ExportSheets ExportFormat = "sheets"
)

// State is one immutable snapshot of the application state. Slices are
// replaced wholesale on recomputation and never mutated afterwards, so
// snapshots can share them safely.
type State struct {
	Expenses         []core.Expense
	FilteredExpenses []core.Expense
	CategoryTotals   []core.CategoryTotal
	DailyTotals      []core.DailyTotal
	FilterDays       int
	GroupByCategory  bool
	Loading          bool
	Err              string
	StatusMessage    string
	TodayTotal       float64
	TotalCount       int
	TotalAmount      float64
	DarkTheme        bool
}

// Controller drives all state transitions. Failures never escape it as
// panics or process exits: they become the latest error message, and
// previously loaded data stays visible.
type Controller struct {
	repo *repository.Repository

	mu          sync.Mutex
	state       State
	subscribers map[int]chan State
	nextSub     int

	base        context.Context
	watchCancel context.CancelFunc
}

func NewController(repo *repository.Repository) *Controller {
	return &Controller{
		repo:        repo,
		state:       State{FilterDays: DefaultFilterDays},
		subscribers: make(map[int]chan State),
	}
}

// Start binds the controller to its lifetime context and performs the
// initial load.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	c.base = ctx
	c.mu.Unlock()
	c.Load()
}

// Load starts (or restarts) the reactive reload loop: it subscribes to the
// live view over all expenses and recomputes the derived aggregates on every
// emission. A new Load supersedes the previous one: the prior subscription
// is cancelled first, so rapid filter changes never leave overlapping
// reloads active.
func (c *Controller) Load() {
	c.mu.Lock()
	if c.watchCancel != nil {
		c.watchCancel()
	}
	base := c.base
	if base == nil {
		base = context.Background()
	}
	watchCtx, cancel := context.WithCancel(base)
	c.watchCancel = cancel
	c.state.Loading = true
	c.publishLocked()
	c.mu.Unlock()

	feed, err := c.repo.WatchAll(watchCtx)
	if err != nil {
		cancel()
		c.fail(err)
		return
	}

	go func() {
		for expenses := range feed {
			c.recompute(watchCtx, expenses)
		}
	}()
}

// recompute rebuilds the filtered subset and every aggregate from a fresh
// snapshot of the full expense set.
func (c *Controller) recompute(ctx context.Context, expenses []core.Expense) {
	c.mu.Lock()
	days := c.state.FilterDays
	c.mu.Unlock()

	from, to := c.repo.DateRangeForLastDays(days)

	filtered, err := c.repo.Between(ctx, from, to)
	if err != nil {
		c.fail(err)
		return
	}
	categoryTotals, err := c.repo.CategoryTotals(ctx, from, to)
	if err != nil {
		c.fail(err)
		return
	}
	dailyTotals, err := c.repo.DailyTotalsByDay(ctx, from, to)
	if err != nil {
		c.fail(err)
		return
	}
	totalAmount, err := c.repo.Sum(ctx, from, to)
	if err != nil {
		c.fail(err)
		return
	}
	totalCount, err := c.repo.Count(ctx, from, to)
	if err != nil {
		c.fail(err)
		return
	}
	todayTotal := c.repo.TodayTotal(expenses)

	c.mu.Lock()
	c.state.Expenses = expenses
	c.state.FilteredExpenses = filtered
	c.state.CategoryTotals = categoryTotals
	c.state.DailyTotals = dailyTotals
	c.state.TodayTotal = todayTotal
	c.state.TotalAmount = totalAmount
	c.state.TotalCount = totalCount
	c.state.Loading = false
	c.state.Err = ""
	c.publishLocked()
	c.mu.Unlock()
}

// AddExpense validates, guards against same-day duplicates, and inserts.
// Rejected writes set the error message and leave the store untouched.
func (c *Controller) AddExpense(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		c.setError("Invalid expense data. Title and amount are required.")
		return err
	}

	dayStart := c.repo.StartOfDay(e.DateMillis)
	dayEnd := c.repo.EndOfDay(e.DateMillis)
	dup, err := c.repo.FindDuplicate(ctx, e.Title, e.Amount, dayStart, dayEnd)
	if err != nil {
		c.fail(err)
		return err
	}
	if dup != nil {
		c.setError("Duplicate expense detected (same title & amount today).")
		return core.ErrDuplicateExpense
	}

	if _, err := c.repo.Insert(ctx, e); err != nil {
		c.fail(err)
		return err
	}

	// The live view picks up the insert and recomputes; only the error
	// overlay needs clearing here.
	c.clearErr()
	return nil
}

// DeleteExpense removes a record. Failures set the error message but nothing
// is rolled back.
func (c *Controller) DeleteExpense(ctx context.Context, e core.Expense) error {
	if err := c.repo.Delete(ctx, e); err != nil {
		c.fail(err)
		return err
	}
	return nil
}

// SetFilterDays updates the trailing window and triggers a full reload.
func (c *Controller) SetFilterDays(days int) {
	if days < 1 {
		days = 1
	}
	c.mu.Lock()
	c.state.FilterDays = days
	c.mu.Unlock()
	c.Load()
}

// ToggleGroupByCategory flips the display-only grouping flag. No reload.
func (c *Controller) ToggleGroupByCategory() {
	c.mu.Lock()
	c.state.GroupByCategory = !c.state.GroupByCategory
	c.publishLocked()
	c.mu.Unlock()
}

// ToggleTheme flips the display-only theme flag. Not persisted; resets on
// restart.
func (c *Controller) ToggleTheme() {
	c.mu.Lock()
	c.state.DarkTheme = !c.state.DarkTheme
	c.publishLocked()
	c.mu.Unlock()
}

// ExportData renders the currently filtered subset in the given format. CSV
// and PDF write to w when it is non-nil; the resulting notice lands in
// StatusMessage and is also returned.
func (c *Controller) ExportData(ctx context.Context, format ExportFormat, w io.Writer) (string, error) {
	c.mu.Lock()
	filtered := c.state.FilteredExpenses
	c.mu.Unlock()

	switch format {
	case ExportCSV:
		csv := c.repo.ToCSV(filtered)
		if w != nil {
			if _, err := io.WriteString(w, csv); err != nil {
				c.fail(err)
				return "", err
			}
		}
		msg := fmt.Sprintf("CSV exported successfully (%d characters)", len(csv))
		c.setStatus(msg)
		return msg, nil

	case ExportPDF:
		if w == nil {
			err := errors.New("pdf export needs a destination")
			c.fail(err)
			return "", err
		}
		if err := c.repo.WritePDF(filtered, w); err != nil {
			c.fail(err)
			return "", err
		}
		msg := fmt.Sprintf("PDF exported successfully (%d records)", len(filtered))
		c.setStatus(msg)
		return msg, nil

	case ExportSheets:
		if err := c.repo.AppendToSheet(ctx, filtered); err != nil {
			c.fail(err)
			return "", err
		}
		msg := fmt.Sprintf("Exported %d records to sheet", len(filtered))
		c.setStatus(msg)
		return msg, nil

	default:
		err := fmt.Errorf("unknown export format %q", format)
		c.fail(err)
		return "", err
	}
}

// ClearError clears the error field only.
func (c *Controller) ClearError() {
	c.clearErr()
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel of state snapshots: the current state
// immediately, then one per transition until ctx is done. Slow subscribers
// may miss intermediate snapshots but always receive a later one.
func (c *Controller) Subscribe(ctx context.Context) <-chan State {
	ch := make(chan State, 8)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = ch
	ch <- c.state
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.subscribers, id)
		close(ch)
		c.mu.Unlock()
	}()

	return ch
}

func (c *Controller) publishLocked() {
	for _, ch := range c.subscribers {
		select {
		case ch <- c.state:
		default:
		}
	}
}

// fail converts an operational failure into the latest error message.
// Cancellation of a superseded reload is not a failure.
func (c *Controller) fail(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	slog.Error("Operation failed", "error", err)
	c.mu.Lock()
	c.state.Loading = false
	c.state.Err = err.Error()
	c.publishLocked()
	c.mu.Unlock()
}

func (c *Controller) setError(msg string) {
	c.mu.Lock()
	c.state.Err = msg
	c.publishLocked()
	c.mu.Unlock()
}

func (c *Controller) setStatus(msg string) {
	c.mu.Lock()
	c.state.StatusMessage = msg
	c.publishLocked()
	c.mu.Unlock()
}

func (c *Controller) clearErr() {
	c.mu.Lock()
	c.state.Err = ""
	c.publishLocked()
	c.mu.Unlock()
}
