package memory

import (
	"context"
	"fmt"
	"sync"

	"snowlog/internal/core"
	ports "snowlog/internal/sheets"
)

// Sheet is an in-process mirror used in development and tests.
type Sheet struct {
	mu   sync.Mutex
	rows []core.ShiftRecord
}

var _ ports.Mirror = (*Sheet)(nil)

func New() *Sheet {
	return &Sheet{}
}

// AppendRecord implements ports.RecordAppender
func (s *Sheet) AppendRecord(_ context.Context, rec core.ShiftRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(rec.ID); i >= 0 {
		return rowRef(i), nil
	}
	s.rows = append(s.rows, rec)
	return rowRef(len(s.rows) - 1), nil
}

// DeleteRecord implements ports.RecordDeleter
func (s *Sheet) DeleteRecord(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}
	s.rows = append(s.rows[:i], s.rows[i+1:]...)
	return true, nil
}

// ListRecordIDs implements ports.RecordReader
func (s *Sheet) ListRecordIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.rows))
	for i, r := range s.rows {
		ids[i] = r.ID
	}
	return ids, nil
}

// ReplaceAll implements ports.RecordRewriter
func (s *Sheet) ReplaceAll(_ context.Context, records []core.ShiftRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append([]core.ShiftRecord(nil), records...)
	return nil
}

// Rows returns a copy of the mirrored records in sheet order.
func (s *Sheet) Rows() []core.ShiftRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ShiftRecord(nil), s.rows...)
}

func (s *Sheet) indexOf(id string) int {
	for i, r := range s.rows {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Row 1 holds the header.
func rowRef(i int) string {
	return fmt.Sprintf("mem:%d", i+2)
}
