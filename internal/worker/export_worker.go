// Package worker moves expense rows from SQLite to the spreadsheet, driven
// by AMQP events with a periodic sweep as backstop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/export"
	"tally/internal/storage"
)

// ExportStore is the storage surface the worker needs.
type ExportStore interface {
	GetExpenseForExport(ctx context.Context, id int64) (*storage.ExportRow, error)
	ListUnexported(ctx context.Context, limit int) ([]storage.ExportRow, error)
	MarkExported(ctx context.Context, id int64) error
}

// ExportWorker exports expenses to the spreadsheet journal.
type ExportWorker struct {
	store     ExportStore
	appender  export.RowAppender
	batchSize int
}

func NewExportWorker(store ExportStore, appender export.RowAppender, batchSize int) *ExportWorker {
	return &ExportWorker{
		store:     store,
		appender:  appender,
		batchSize: batchSize,
	}
}

// HandleEvent processes a single expense event from AMQP. Delete events are
// acknowledged without exporting; the journal keeps the history. An expense
// that vanished between event and handling is treated as done.
func (w *ExportWorker) HandleEvent(ctx context.Context, event *amqp.ExpenseEvent) error {
	if event.Action == amqp.ActionDeleted {
		slog.InfoContext(ctx, "Expense deleted, nothing to export", "id", event.ID)
		return nil
	}

	row, err := w.store.GetExpenseForExport(ctx, event.ID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			slog.WarnContext(ctx, "Expense gone before export, skipping", "id", event.ID)
			return nil
		}
		return fmt.Errorf("load expense %d: %w", event.ID, err)
	}

	return w.exportRow(ctx, row)
}

// ProcessPending exports any rows the event stream missed. This is the backup
// mechanism in case AMQP messages are lost or the broker was down.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.ListUnexported(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unexported: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing unexported expenses", "count", len(pending))

	var firstErr error
	for i := range pending {
		if err := w.exportRow(ctx, &pending[i]); err != nil {
			slog.ErrorContext(ctx, "Failed to export expense",
				"id", pending[i].Expense.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (w *ExportWorker) exportRow(ctx context.Context, row *storage.ExportRow) error {
	e := row.Expense

	categoryName := ""
	if e.Category != nil {
		categoryName = e.Category.Name
	}

	err := w.appender.AppendRow(ctx, export.Row{
		Date:     e.Date.String(),
		Username: row.Username,
		Category: categoryName,
		Note:     e.Note,
		Units:    e.Money.Units(),
	})
	if err != nil {
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.store.MarkExported(ctx, e.ID); err != nil {
		// The row landed in the sheet; a failed mark means one duplicate on
		// the next sweep, not data loss.
		slog.ErrorContext(ctx, "Failed to mark expense exported", "id", e.ID, "error", err)
	}

	slog.InfoContext(ctx, "Exported expense",
		"id", e.ID,
		"user", row.Username,
		"amount_cents", e.Money.Cents)

	return nil
}
