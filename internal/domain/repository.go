package domain

import (
	"context"
	"encoding/json"
)

// JobRepository defines persistence for generation jobs. The terminal writers
// are conditional updates keyed on the processing status: they report whether
// the caller won the transition, so concurrent pollers can detect that a job
// resolved under them and re-read instead of double-writing.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Job, error)
	// UpdateProgress advances progress monotonically; regressions and writes
	// against terminal jobs are silently dropped by the status/progress guard.
	UpdateProgress(ctx context.Context, jobID string, progress int) error
	MarkCompleted(ctx context.Context, jobID string, output json.RawMessage) (bool, error)
	MarkFailed(ctx context.Context, jobID string, errMsg string) (bool, error)
}

// AssetRepository handles persistence for durable content assets.
type AssetRepository interface {
	Create(ctx context.Context, asset *Asset) error
	GetByID(ctx context.Context, assetID string) (*Asset, error)
	ListByOwner(ctx context.Context, ownerID string, filter AssetFilter) ([]Asset, error)
	ListByJobID(ctx context.Context, jobID string) ([]Asset, error)
	Delete(ctx context.Context, assetID string) error
}
