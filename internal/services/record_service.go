package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"snowlog/internal/amqp"
	"snowlog/internal/core"
	applog "snowlog/internal/log"
	"snowlog/internal/records"
)

// SyncPublisher sends store mutations to the remote mirror.
type SyncPublisher interface {
	PublishRecordSync(ctx context.Context, msg *amqp.RecordSyncMessage) error
}

// RecordService orchestrates record operations across the store and AMQP
type RecordService struct {
	store     *records.Store
	publisher SyncPublisher
	closers   []io.Closer
}

// NewRecordService wires the store to an optional publisher. Closers are
// released by Close in order.
func NewRecordService(store *records.Store, publisher SyncPublisher, closers ...io.Closer) *RecordService {
	return &RecordService{
		store:     store,
		publisher: publisher,
		closers:   closers,
	}
}

// Create stores the record locally and announces it to the mirror.
func (s *RecordService) Create(ctx context.Context, in core.ShiftInput) core.ShiftRecord {
	rec := s.store.Create(ctx, in)
	s.publish(ctx, amqp.NewCreateMessage(rec))
	return rec
}

// Delete removes the record locally and, when something was removed,
// announces the removal to the mirror.
func (s *RecordService) Delete(ctx context.Context, id string) bool {
	removed := s.store.Delete(ctx, id)
	if removed {
		s.publish(ctx, amqp.NewDeleteMessage(id))
	}
	return removed
}

// List returns the collection, newest first.
func (s *RecordService) List() []core.ShiftRecord {
	return s.store.List()
}

// Local mutations have already succeeded; a failed publish is logged and
// the periodic resync repairs the mirror.
func (s *RecordService) publish(ctx context.Context, msg *amqp.RecordSyncMessage) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No sync publisher configured, skipping sync message",
			applog.FieldOperation, applog.OpSync, "sync_op", msg.Op, applog.FieldRecordID, msg.ID)
		return
	}
	if err := s.publisher.PublishRecordSync(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			applog.FieldOperation, applog.OpSync, "sync_op", msg.Op, applog.FieldRecordID, msg.ID, applog.FieldError, err)
	}
}

// Close releases storage and AMQP connections
func (s *RecordService) Close() error {
	var errs []error
	for _, c := range s.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close record service: %w", errors.Join(errs...))
	}
	return nil
}
