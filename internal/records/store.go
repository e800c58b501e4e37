// Package records holds the ordered shift record collection and keeps it in
// sync with a key-value storage medium. The whole collection is written back
// on every mutation.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"snowlog/internal/core"
	applog "snowlog/internal/log"
	"snowlog/internal/storage"
)

// DefaultKey is the storage key the collection is kept under.
const DefaultKey = "snow_log_data_v1"

// ErrMalformed is returned by Load when the stored payload cannot be decoded.
var ErrMalformed = errors.New("malformed record payload")

// Store is the record collection, newest first.
type Store struct {
	mu      sync.RWMutex
	records []core.ShiftRecord

	// synced is false while the stored payload could not be read. Nothing is
	// written until a later read succeeds.
	synced bool

	kv     storage.KV
	key    string
	now    func() time.Time
	newID  func() string
	logger *applog.Logger
}

type Option func(*Store)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithClock sets the time source for createdAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator sets the record id source.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *Store) { s.logger = l.WithComponent(applog.ComponentRecords) }
}

// Open loads the collection stored under the configured key. A missing,
// unreadable or malformed payload yields an empty collection; Open never
// fails on account of stored data. After a read failure the store keeps
// changes in memory and retries the read on the next mutation, so the
// stored collection is never overwritten unseen.
func Open(ctx context.Context, kv storage.KV, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		key:    DefaultKey,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: applog.Default(applog.ComponentRecords),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.records, s.synced = s.load(ctx)
	return s
}

// Load reads the collection stored under key. A missing key yields an empty
// collection; read and decode failures are returned.
func Load(ctx context.Context, kv storage.KV, key string) ([]core.ShiftRecord, error) {
	data, err := kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return []core.ShiftRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	records := []core.ShiftRecord{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return records, nil
}

func (s *Store) load(ctx context.Context) ([]core.ShiftRecord, bool) {
	records, err := Load(ctx, s.kv, s.key)
	switch {
	case errors.Is(err, ErrMalformed):
		s.logger.WarnContext(ctx, "Stored records are malformed, starting empty",
			applog.FieldKey, s.key, applog.FieldOperation, applog.OpLoad, applog.FieldError, err)
		return nil, true
	case err != nil:
		s.logger.WarnContext(ctx, "Storage unavailable, starting empty",
			applog.FieldKey, s.key, applog.FieldOperation, applog.OpLoad, applog.FieldError, err)
		return nil, false
	}

	s.logger.InfoContext(ctx, "Records loaded", applog.FieldKey, s.key, applog.FieldCount, len(records))
	return records, true
}

// ensureSynced retries the read after an earlier failure. Records created in
// the meantime are newer than anything stored and stay in front. Caller holds
// the write lock.
func (s *Store) ensureSynced(ctx context.Context) bool {
	if s.synced {
		return true
	}
	stored, err := Load(ctx, s.kv, s.key)
	switch {
	case errors.Is(err, ErrMalformed):
		s.logger.WarnContext(ctx, "Stored records are malformed, keeping in-memory records",
			applog.FieldKey, s.key, applog.FieldOperation, applog.OpLoad, applog.FieldError, err)
	case err != nil:
		s.logger.WarnContext(ctx, "Storage still unavailable, change kept in memory only",
			applog.FieldKey, s.key, applog.FieldOperation, applog.OpLoad, applog.FieldError, err)
		return false
	default:
		s.records = append(s.records, stored...)
		s.logger.InfoContext(ctx, "Records reloaded after storage recovered",
			applog.FieldKey, s.key, applog.FieldCount, len(stored))
	}
	s.synced = true
	return true
}

// persist writes the whole collection. Failures are logged; the in-memory
// collection stays authoritative. Caller holds the write lock.
func (s *Store) persist(ctx context.Context) {
	records := s.records
	if records == nil {
		records = []core.ShiftRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to encode records",
			applog.FieldOperation, applog.OpPersist, applog.FieldError, err)
		return
	}
	if err := s.kv.Put(ctx, s.key, data); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist records",
			applog.FieldKey, s.key, applog.FieldOperation, applog.OpPersist, applog.FieldError, err)
	}
}

// Create stamps the input with a fresh id and a millisecond creation time and
// places it at the front of the collection.
func (s *Store) Create(ctx context.Context, in core.ShiftInput) core.ShiftRecord {
	rec := core.ShiftRecord{
		ID:         s.newID(),
		ShiftInput: in,
		CreatedAt:  time.UnixMilli(s.now().UnixMilli()),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	synced := s.ensureSynced(ctx)
	s.records = slices.Insert(s.records, 0, rec)
	if synced {
		s.persist(ctx)
	}

	totals := core.RecordTotals(in)
	s.logger.InfoContext(ctx, "Record created", applog.NewFields().
		WithRecord(rec.ID, in.PeriodFrom.String(), in.PeriodTo.String(), string(in.ShiftType), totals.Trips, totals.VolumeM3).
		WithOperation(applog.OpCreate).
		ToSlice()...)
	return rec
}

// Delete removes every record with the given id and reports whether anything
// was removed. Nothing is written when the id is unknown.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	synced := s.ensureSynced(ctx)
	before := len(s.records)
	s.records = slices.DeleteFunc(s.records, func(r core.ShiftRecord) bool { return r.ID == id })
	if len(s.records) == before {
		s.logger.DebugContext(ctx, "Delete of unknown record ignored", applog.FieldRecordID, id)
		return false
	}

	if synced {
		s.persist(ctx)
	}
	s.logger.InfoContext(ctx, "Record deleted", applog.FieldRecordID, id, applog.FieldOperation, applog.OpDelete)
	return true
}

// List returns a copy of the collection, newest first.
func (s *Store) List() []core.ShiftRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.ShiftRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
