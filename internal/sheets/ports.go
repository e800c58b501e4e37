// Package sheets defines the outbound ports of the remote record mirror.
// Adapters live in the google and memory subpackages.
package sheets

import (
	"context"
	"errors"

	"snowlog/internal/core"
)

// ErrNotConfigured is returned when no spreadsheet is configured.
var ErrNotConfigured = errors.New("sheets not configured")

// Ports for outbound adapters.
type (
	RecordAppender interface {
		// AppendRecord adds a row for rec. Appending an id that is already
		// mirrored leaves the sheet unchanged.
		AppendRecord(ctx context.Context, rec core.ShiftRecord) (rowRef string, err error)
	}

	RecordDeleter interface {
		// DeleteRecord removes the row holding id and reports whether one
		// was found.
		DeleteRecord(ctx context.Context, id string) (bool, error)
	}

	RecordReader interface {
		// ListRecordIDs returns the mirrored ids in sheet order.
		ListRecordIDs(ctx context.Context) ([]string, error)
	}

	RecordRewriter interface {
		// ReplaceAll rewrites the sheet so it holds exactly records, in order.
		ReplaceAll(ctx context.Context, records []core.ShiftRecord) error
	}

	// Mirror is everything the sync worker needs from a sheet.
	Mirror interface {
		RecordAppender
		RecordDeleter
		RecordReader
		RecordRewriter
	}
)
