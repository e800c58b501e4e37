package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"snowlog/internal/core"
)

// SyncOp is the mutation a sync message mirrors.
type SyncOp string

const (
	OpCreate SyncOp = "create"
	OpDelete SyncOp = "delete"
)

var ErrInvalidMessage = errors.New("invalid sync message")

// RecordSyncMessage mirrors one store mutation to the remote sheet. Create
// messages carry the full record since the worker has no access to the
// server's store.
type RecordSyncMessage struct {
	Op        SyncOp            `json:"op"`
	ID        string            `json:"id"`
	Record    *core.ShiftRecord `json:"record,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewCreateMessage creates a message announcing a new record
func NewCreateMessage(rec core.ShiftRecord) *RecordSyncMessage {
	return &RecordSyncMessage{
		Op:        OpCreate,
		ID:        rec.ID,
		Record:    &rec,
		Timestamp: time.Now(),
	}
}

// NewDeleteMessage creates a message announcing a removed record
func NewDeleteMessage(id string) *RecordSyncMessage {
	return &RecordSyncMessage{
		Op:        OpDelete,
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *RecordSyncMessage) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidMessage)
	}
	switch m.Op {
	case OpCreate:
		if m.Record == nil {
			return fmt.Errorf("%w: create without record", ErrInvalidMessage)
		}
		if m.Record.ID != m.ID {
			return fmt.Errorf("%w: record id %q does not match %q", ErrInvalidMessage, m.Record.ID, m.ID)
		}
	case OpDelete:
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidMessage, m.Op)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *RecordSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordSyncMessageFromJSON decodes and validates a message
func RecordSyncMessageFromJSON(data []byte) (*RecordSyncMessage, error) {
	var msg RecordSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
