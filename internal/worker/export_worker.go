// Package worker keeps on-disk export snapshots in step with the database:
// every expense change event triggers a regeneration of the CSV and PDF
// snapshots for the current filter window.
package worker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"spendbook/internal/events"
	"spendbook/internal/repository"
)

const (
	csvSnapshotName = "expenses.csv"
	pdfSnapshotName = "expenses.pdf"
)

// ExportWorker regenerates export snapshot files on every change event.
type ExportWorker struct {
	repo       *repository.Repository
	dir        string
	filterDays int
}

func NewExportWorker(repo *repository.Repository, dir string, filterDays int) *ExportWorker {
	return &ExportWorker{
		repo:       repo,
		dir:        dir,
		filterDays: filterDays,
	}
}

// HandleChangeMessage processes one change event. The event payload only
// says that something changed; the snapshot is always rebuilt from the
// store, so redelivery and reordering are harmless.
func (w *ExportWorker) HandleChangeMessage(ctx context.Context, msg *events.ExpenseChangeMessage) error {
	slog.InfoContext(ctx, "Processing change event",
		"id", msg.ID,
		"action", string(msg.Action))
	return w.Regenerate(ctx)
}

// Regenerate rebuilds both snapshot files from the current filter window.
func (w *ExportWorker) Regenerate(ctx context.Context) error {
	expenses, err := w.repo.FilteredExpenses(ctx, w.filterDays)
	if err != nil {
		return fmt.Errorf("read filtered expenses: %w", err)
	}

	var g errgroup.Group
	g.Go(func() error {
		if err := w.writeSnapshot(csvSnapshotName, []byte(w.repo.ToCSV(expenses))); err != nil {
			return fmt.Errorf("write csv snapshot: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var pdf bytes.Buffer
		if err := w.repo.WritePDF(expenses, &pdf); err != nil {
			return fmt.Errorf("render pdf snapshot: %w", err)
		}
		if err := w.writeSnapshot(pdfSnapshotName, pdf.Bytes()); err != nil {
			return fmt.Errorf("write pdf snapshot: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Export snapshots regenerated",
		"dir", w.dir,
		"records", len(expenses))
	return nil
}

// writeSnapshot writes to a uniquely named temp file and renames it into
// place, so readers never observe a partially written snapshot.
func (w *ExportWorker) writeSnapshot(name string, data []byte) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	tmp := filepath.Join(w.dir, fmt.Sprintf(".%s.%s.tmp", name, uuid.NewString()))
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmp, filepath.Join(w.dir, name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
