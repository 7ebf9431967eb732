// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/ledger-sieve/internal/model"
)

// BlobStore keeps byte blobs under flat string keys. Put replaces any blob
// already stored under the key.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// RunStore persists the history of pipeline runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
	Migrate(ctx context.Context) error
	Close() error
}

// ReportWriter publishes a filtered table somewhere outside the process.
type ReportWriter interface {
	Write(ctx context.Context, filtered *model.Table, summary *ReportSummary) error
}

// ReportSummary contains aggregate information for a published report.
type ReportSummary struct {
	GeneratedAt time.Time
	FileName    string
	RunID       string
	TotalCredit float64
	Rows        int
	Matched     int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
