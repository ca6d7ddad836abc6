package state

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"spendbook/internal/core"
	"spendbook/internal/repository"
	"spendbook/internal/storage"
)

func newTestController(t *testing.T) (*Controller, *repository.Repository) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "expenses.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	repo := repository.New(store, nil, nil)
	ctrl := NewController(repo)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ctrl.Start(ctx)

	return ctrl, repo
}

func waitFor(t *testing.T, ctrl *Controller, desc string, cond func(State) bool) State {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		s := ctrl.State()
		if cond(s) {
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; state: %+v", desc, ctrl.State())
	return State{}
}

func validExpense(title string, amount float64) core.Expense {
	return core.Expense{
		Title:      title,
		Amount:     amount,
		Category:   core.Food,
		DateMillis: time.Now().UnixMilli(),
	}
}

func TestAddExpenseRecomputesState(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctx := context.Background()

	if err := ctrl.AddExpense(ctx, validExpense("Office Lunch", 450)); err != nil {
		t.Fatalf("add: %v", err)
	}

	s := waitFor(t, ctrl, "one expense loaded", func(s State) bool {
		return s.TotalCount == 1 && len(s.FilteredExpenses) == 1 && !s.Loading
	})
	if s.Err != "" {
		t.Errorf("unexpected error: %q", s.Err)
	}
	if s.TotalAmount != 450 || s.TodayTotal != 450 {
		t.Errorf("totals = %v / %v, want 450 / 450", s.TotalAmount, s.TodayTotal)
	}
	if len(s.CategoryTotals) != 1 || s.CategoryTotals[0].Category != core.Food || s.CategoryTotals[0].Total != 450 {
		t.Errorf("category totals = %+v", s.CategoryTotals)
	}
	if len(s.DailyTotals) != 1 || s.DailyTotals[0].Total != 450 {
		t.Errorf("daily totals = %+v", s.DailyTotals)
	}
}

func TestAddExpenseValidationRejected(t *testing.T) {
	ctrl, repo := newTestController(t)
	ctx := context.Background()

	err := ctrl.AddExpense(ctx, core.Expense{Title: "  ", Amount: 450, Category: core.Food, DateMillis: time.Now().UnixMilli()})
	if !errors.Is(err, core.ErrEmptyTitle) {
		t.Fatalf("want ErrEmptyTitle, got %v", err)
	}
	if s := ctrl.State(); s.Err != "Invalid expense data. Title and amount are required." {
		t.Errorf("error message = %q", s.Err)
	}

	n, err := repo.Count(ctx, 0, time.Now().UnixMilli()+1000)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("rejected write changed the store: %d rows", n)
	}
}

func TestDuplicateGuard(t *testing.T) {
	ctrl, repo := newTestController(t)
	ctx := context.Background()

	if err := ctrl.AddExpense(ctx, validExpense("Lunch", 450)); err != nil {
		t.Fatalf("first add: %v", err)
	}
	waitFor(t, ctrl, "first expense loaded", func(s State) bool { return s.TotalCount == 1 })

	err := ctrl.AddExpense(ctx, validExpense("Lunch", 450))
	if !errors.Is(err, core.ErrDuplicateExpense) {
		t.Fatalf("want ErrDuplicateExpense, got %v", err)
	}
	if s := ctrl.State(); !strings.Contains(s.Err, "Duplicate expense detected") {
		t.Errorf("error message = %q", s.Err)
	}

	n, err := repo.Count(ctx, 0, time.Now().UnixMilli()+1000)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("duplicate guard changed row count: %d", n)
	}

	// A different amount on the same day is not a duplicate.
	if err := ctrl.AddExpense(ctx, validExpense("Lunch", 451)); err != nil {
		t.Fatalf("non-duplicate add rejected: %v", err)
	}
}

func TestDeleteExpense(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctx := context.Background()

	if err := ctrl.AddExpense(ctx, validExpense("Coffee", 180)); err != nil {
		t.Fatalf("add: %v", err)
	}
	s := waitFor(t, ctrl, "expense loaded", func(s State) bool { return len(s.FilteredExpenses) == 1 })

	if err := ctrl.DeleteExpense(ctx, s.FilteredExpenses[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	waitFor(t, ctrl, "expense removed", func(s State) bool { return s.TotalCount == 0 })

	// Deleting a record that is already gone is a quiet no-op.
	if err := ctrl.DeleteExpense(ctx, core.Expense{ID: 12345}); err != nil {
		t.Fatalf("no-op delete errored: %v", err)
	}
}

func TestSetFilterDaysReloads(t *testing.T) {
	ctrl, repo := newTestController(t)
	ctx := context.Background()

	old := core.Expense{
		Title:      "Old flight",
		Amount:     4500,
		Category:   core.Travel,
		DateMillis: time.Now().AddDate(0, 0, -10).UnixMilli(),
	}
	if _, err := repo.Insert(ctx, old); err != nil {
		t.Fatalf("insert old: %v", err)
	}
	if err := ctrl.AddExpense(ctx, validExpense("Lunch", 450)); err != nil {
		t.Fatalf("add: %v", err)
	}

	waitFor(t, ctrl, "7-day window", func(s State) bool {
		return len(s.Expenses) == 2 && len(s.FilteredExpenses) == 1
	})

	ctrl.SetFilterDays(30)
	s := waitFor(t, ctrl, "30-day window", func(s State) bool {
		return s.FilterDays == 30 && len(s.FilteredExpenses) == 2
	})
	if s.TotalAmount != 4950 {
		t.Errorf("window total = %v, want 4950", s.TotalAmount)
	}
}

func TestDisplayTogglesDoNotReload(t *testing.T) {
	ctrl, _ := newTestController(t)

	before := ctrl.State()
	ctrl.ToggleGroupByCategory()
	ctrl.ToggleTheme()
	after := ctrl.State()

	if after.GroupByCategory == before.GroupByCategory {
		t.Error("GroupByCategory did not flip")
	}
	if after.DarkTheme == before.DarkTheme {
		t.Error("DarkTheme did not flip")
	}

	ctrl.ToggleGroupByCategory()
	if ctrl.State().GroupByCategory != before.GroupByCategory {
		t.Error("GroupByCategory did not flip back")
	}
}

func TestClearError(t *testing.T) {
	ctrl, _ := newTestController(t)

	_ = ctrl.AddExpense(context.Background(), core.Expense{Title: "", Amount: 0})
	if ctrl.State().Err == "" {
		t.Fatal("expected an error message")
	}
	ctrl.ClearError()
	if got := ctrl.State().Err; got != "" {
		t.Fatalf("error not cleared: %q", got)
	}
}

func TestExportCSV(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctx := context.Background()

	if err := ctrl.AddExpense(ctx, validExpense("Lunch", 450)); err != nil {
		t.Fatalf("add: %v", err)
	}
	waitFor(t, ctrl, "expense loaded", func(s State) bool { return len(s.FilteredExpenses) == 1 })

	var sb strings.Builder
	msg, err := ctrl.ExportData(ctx, ExportCSV, &sb)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(msg, "CSV exported successfully") {
		t.Errorf("message = %q", msg)
	}
	if got := ctrl.State().StatusMessage; got != msg {
		t.Errorf("status message = %q, want %q", got, msg)
	}
	if !strings.HasPrefix(sb.String(), "ID,Title,Amount,Category") {
		t.Errorf("csv output = %q", sb.String())
	}
	if ctrl.State().Err != "" {
		t.Errorf("export set an error: %q", ctrl.State().Err)
	}
}

func TestExportPDF(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctx := context.Background()

	if err := ctrl.AddExpense(ctx, validExpense("Lunch", 450)); err != nil {
		t.Fatalf("add: %v", err)
	}
	waitFor(t, ctrl, "expense loaded", func(s State) bool { return len(s.FilteredExpenses) == 1 })

	var sb strings.Builder
	if _, err := ctrl.ExportData(ctx, ExportPDF, &sb); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(sb.String(), "%PDF") {
		t.Errorf("pdf output prefix = %q", sb.String()[:8])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	ctrl, _ := newTestController(t)
	if _, err := ctrl.ExportData(context.Background(), ExportFormat("xml"), nil); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if ctrl.State().Err == "" {
		t.Fatal("unknown format should surface an error message")
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := ctrl.Subscribe(ctx)

	select {
	case s := <-sub:
		if s.FilterDays != DefaultFilterDays {
			t.Fatalf("initial snapshot FilterDays = %d", s.FilterDays)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}

	if err := ctrl.AddExpense(context.Background(), validExpense("Lunch", 450)); err != nil {
		t.Fatalf("add: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case s, ok := <-sub:
			if !ok {
				t.Fatal("subscription closed early")
			}
			if s.TotalCount == 1 {
				return
			}
		case <-deadline:
			t.Fatal("no snapshot with the new expense")
		}
	}
}
