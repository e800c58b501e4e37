package worker

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"snowlog/internal/amqp"
	"snowlog/internal/core"
	applog "snowlog/internal/log"
	"snowlog/internal/sheets"
)

// SnapshotFunc returns the current record collection, newest first.
type SnapshotFunc func(ctx context.Context) ([]core.ShiftRecord, error)

// SyncWorker mirrors record mutations into a remote sheet. The sheet holds
// records oldest first, the order in which they were appended.
type SyncWorker struct {
	mirror sheets.Mirror
	logger *applog.Logger

	// Serializes message handling against resyncs, snapshot reads included
	mu sync.Mutex
}

func NewSyncWorker(mirror sheets.Mirror) *SyncWorker {
	return &SyncWorker{mirror: mirror, logger: applog.Default(applog.ComponentSync)}
}

// HandleMessage applies one sync message to the sheet.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.RecordSyncMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch msg.Op {
	case amqp.OpCreate:
		ref, err := w.mirror.AppendRecord(ctx, *msg.Record)
		if err != nil {
			return fmt.Errorf("append record %s: %w", msg.ID, err)
		}
		w.logger.InfoContext(ctx, "Mirrored record to sheet",
			applog.FieldRecordID, msg.ID, applog.FieldOperation, applog.OpAppend, "ref", ref)
	case amqp.OpDelete:
		removed, err := w.mirror.DeleteRecord(ctx, msg.ID)
		if err != nil {
			return fmt.Errorf("delete record %s: %w", msg.ID, err)
		}
		if !removed {
			w.logger.DebugContext(ctx, "Record not present in sheet, nothing to delete",
				applog.FieldRecordID, msg.ID, applog.FieldOperation, applog.OpDelete)
			return nil
		}
		w.logger.InfoContext(ctx, "Removed record from sheet",
			applog.FieldRecordID, msg.ID, applog.FieldOperation, applog.OpDelete)
	}
	return nil
}

// Resync rewrites the sheet from a full snapshot when its ids differ from
// the snapshot's. It recovers from messages that were never published.
func (w *SyncWorker) Resync(ctx context.Context, snapshot []core.ShiftRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resyncLocked(ctx, snapshot)
}

func (w *SyncWorker) resyncLocked(ctx context.Context, snapshot []core.ShiftRecord) error {
	want := slices.Clone(snapshot)
	slices.Reverse(want)

	have, err := w.mirror.ListRecordIDs(ctx)
	if err != nil {
		return fmt.Errorf("list mirrored ids: %w", err)
	}
	if slices.Equal(have, ids(want)) {
		w.logger.DebugContext(ctx, "Sheet already in sync",
			applog.FieldOperation, applog.OpResync, applog.FieldCount, len(want))
		return nil
	}

	if err := w.mirror.ReplaceAll(ctx, want); err != nil {
		return fmt.Errorf("rewrite sheet: %w", err)
	}
	w.logger.InfoContext(ctx, "Sheet resynced",
		applog.FieldOperation, applog.OpResync, applog.FieldCount, len(want), "previous_count", len(have))
	return nil
}

// RunResync resyncs once immediately and then on every tick until ctx is
// done. Failures are logged and retried on the next tick.
func (w *SyncWorker) RunResync(ctx context.Context, interval time.Duration, snapshot SnapshotFunc) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.resyncOnce(ctx, snapshot)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.resyncOnce(ctx, snapshot)
		}
	}
}

// resyncOnce reads the snapshot under the lock so a message handled between
// the read and the rewrite cannot be wiped from the sheet.
func (w *SyncWorker) resyncOnce(ctx context.Context, snapshot SnapshotFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()

	recs, err := snapshot(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to read record snapshot",
			applog.FieldOperation, applog.OpResync, applog.FieldError, err)
		return
	}
	if err := w.resyncLocked(ctx, recs); err != nil {
		w.logger.ErrorContext(ctx, "Periodic resync failed",
			applog.FieldOperation, applog.OpResync, applog.FieldError, err)
	}
}

func ids(recs []core.ShiftRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
