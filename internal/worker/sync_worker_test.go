package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"snowlog/internal/amqp"
	"snowlog/internal/core"
	"snowlog/internal/sheets/memory"
)

func rec(id string) core.ShiftRecord {
	d := core.NewDate(2024, 1, 10)
	return core.ShiftRecord{ID: id, ShiftInput: core.ShiftInput{PeriodFrom: d, PeriodTo: d, ShiftType: core.Day}}
}

func sheetIDs(t *testing.T, s *memory.Sheet) []string {
	t.Helper()
	ids, err := s.ListRecordIDs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return ids
}

func TestHandleMessage(t *testing.T) {
	ctx := context.Background()
	sheet := memory.New()
	w := NewSyncWorker(sheet)

	steps := []*amqp.RecordSyncMessage{
		amqp.NewCreateMessage(rec("a")),
		amqp.NewCreateMessage(rec("b")),
		amqp.NewCreateMessage(rec("a")), // redelivery
		amqp.NewDeleteMessage("a"),
		amqp.NewDeleteMessage("missing"),
	}
	for i, msg := range steps {
		if err := w.HandleMessage(ctx, msg); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	if ids := sheetIDs(t, sheet); len(ids) != 1 || ids[0] != "b" {
		t.Fatalf("unexpected sheet ids %v", ids)
	}
}

func TestHandleMessage_Invalid(t *testing.T) {
	w := NewSyncWorker(memory.New())
	err := w.HandleMessage(context.Background(), &amqp.RecordSyncMessage{Op: amqp.OpCreate, ID: "a"})
	if !errors.Is(err, amqp.ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestResync(t *testing.T) {
	ctx := context.Background()
	sheet := memory.New()
	sheet.AppendRecord(ctx, rec("stale"))
	w := NewSyncWorker(sheet)

	// Store order is newest first; the sheet is oldest first.
	snapshot := []core.ShiftRecord{rec("c"), rec("b"), rec("a")}
	if err := w.Resync(ctx, snapshot); err != nil {
		t.Fatal(err)
	}

	ids := sheetIDs(t, sheet)
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("unexpected sheet ids %v", ids)
	}
	if snapshot[0].ID != "c" {
		t.Fatal("Resync must not reorder the caller's snapshot")
	}
}

// countingMirror counts rewrites.
type countingMirror struct {
	*memory.Sheet
	rewrites atomic.Int32
}

func (c *countingMirror) ReplaceAll(ctx context.Context, records []core.ShiftRecord) error {
	c.rewrites.Add(1)
	return c.Sheet.ReplaceAll(ctx, records)
}

func TestResyncSkipsWhenInSync(t *testing.T) {
	ctx := context.Background()
	m := &countingMirror{Sheet: memory.New()}
	w := NewSyncWorker(m)

	snapshot := []core.ShiftRecord{rec("b"), rec("a")}
	if err := w.Resync(ctx, snapshot); err != nil {
		t.Fatal(err)
	}
	if err := w.Resync(ctx, snapshot); err != nil {
		t.Fatal(err)
	}
	if got := m.rewrites.Load(); got != 1 {
		t.Fatalf("expected a single rewrite, got %d", got)
	}
}

func TestRunResyncStopsOnCancel(t *testing.T) {
	sheet := memory.New()
	w := NewSyncWorker(sheet)

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	snapshot := func(context.Context) ([]core.ShiftRecord, error) {
		if calls.Add(1) == 1 {
			cancel()
		}
		return []core.ShiftRecord{rec("a")}, nil
	}

	done := make(chan error, 1)
	go func() { done <- w.RunResync(ctx, time.Hour, snapshot) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunResync did not stop")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one immediate resync, got %d", calls.Load())
	}
}

func TestResyncDoesNotWipeMessageHandledDuringSnapshot(t *testing.T) {
	ctx := context.Background()
	sheet := memory.New()
	w := NewSyncWorker(sheet)

	handled := make(chan error, 1)
	snapshot := func(context.Context) ([]core.ShiftRecord, error) {
		go func() { handled <- w.HandleMessage(ctx, amqp.NewCreateMessage(rec("late"))) }()
		time.Sleep(50 * time.Millisecond)
		return []core.ShiftRecord{rec("a")}, nil
	}

	w.resyncOnce(ctx, snapshot)
	if err := <-handled; err != nil {
		t.Fatalf("handle message: %v", err)
	}

	ids := sheetIDs(t, sheet)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "late" {
		t.Fatalf("expected [a late], got %v", ids)
	}
}
