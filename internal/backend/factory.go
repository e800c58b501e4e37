package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"snowlog/internal/amqp"
	"snowlog/internal/config"
	applog "snowlog/internal/log"
	"snowlog/internal/records"
	"snowlog/internal/services"
	"snowlog/internal/sheets"
	gsheet "snowlog/internal/sheets/google"
	"snowlog/internal/sheets/memory"
	"snowlog/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Default(applog.ComponentBackend)
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	kv, kvCloser, err := OpenKV(config)
	if err != nil {
		return nil, err
	}
	f.logger.InfoContext(ctx, "Initialized storage",
		"backend", config.Type,
		"db_path", config.SQLiteDBPath,
		"data_directory", config.DataDirectory)

	store := records.Open(ctx, kv,
		records.WithKey(config.StorageKey),
		records.WithLogger(f.logger))

	closers := []io.Closer{}
	if kvCloser != nil {
		closers = append(closers, kvCloser)
	}

	// A nil *amqp.Client must not become a non-nil interface value.
	var publisher services.SyncPublisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without sync", "error", err)
		} else {
			publisher = client
			closers = append([]io.Closer{client}, closers...)
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	svc := services.NewRecordService(store, publisher, closers...)
	f.logger.InfoContext(ctx, "Initialized record backend",
		"backend", config.Type,
		"records", store.Len(),
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Service: svc,
		KV:      kv,
		Cleanup: svc.Close,
	}, nil
}

// OpenKV opens the storage medium for the configured backend. The returned
// closer is nil for media without resources.
func OpenKV(config Config) (storage.KV, io.Closer, error) {
	switch config.Type {
	case SQLiteBackend:
		kv, err := storage.NewSQLiteKV(config.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
		return kv, kv, nil
	case FileBackend:
		kv, err := storage.NewFileKV(config.DataDirectory)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize file storage: %w", err)
		}
		return kv, nil, nil
	case MemoryBackend:
		return storage.NewMemoryKV(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// NewMirror returns the Google Sheets mirror when a spreadsheet is configured
// and an in-process sheet otherwise.
func NewMirror(ctx context.Context, cfg *config.Config) (sheets.Mirror, error) {
	if !cfg.SheetsEnabled() {
		slog.WarnContext(ctx, "GOOGLE_SPREADSHEET_ID not set, mirroring into memory only")
		return memory.New(), nil
	}

	credFile := cfg.GoogleServiceAccountFile
	if credFile == "" {
		credFile = cfg.GoogleApplicationCredFile
	}
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: credFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	return client, nil
}
