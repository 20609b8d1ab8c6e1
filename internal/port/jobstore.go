package port

import (
	"context"

	"github.com/mydia/mydia/internal/domain"
)

// JobStore persists transcode jobs and their cached results.
type JobStore interface {
	// GetOrCreateJob returns the existing row for the key or inserts a
	// pending one. Safe under concurrent callers for the same key.
	GetOrCreateJob(ctx context.Context, mediaFileID string, resolution domain.Resolution) (*domain.TranscodeJob, error)

	// GetCachedTranscode returns the job only when its result is ready.
	// A nil job with nil error is a cache miss.
	GetCachedTranscode(ctx context.Context, mediaFileID string, resolution domain.Resolution) (*domain.TranscodeJob, error)

	// GetJob returns the row for the key regardless of status, or
	// domain.ErrNotFound.
	GetJob(ctx context.Context, mediaFileID string, resolution domain.Resolution) (*domain.TranscodeJob, error)

	// UpdateJobProgress records encode progress, forcing the status to
	// transcoding. The first call sets started_at; later calls leave it.
	UpdateJobProgress(ctx context.Context, jobID int64, progress float64) error

	CompleteJob(ctx context.Context, jobID int64, outputPath string, fileSize int64) error
	FailJob(ctx context.Context, jobID int64, errMsg string) error

	// TouchLastAccessed refreshes last_accessed_at on a cache hit so an
	// eviction collaborator can age out cold results.
	TouchLastAccessed(ctx context.Context, jobID int64) error

	// ResetJob returns the row to pending, clearing progress, error,
	// timestamps, and any recorded output. Used when a cancel interrupts
	// an encode so the next request schedules it again.
	ResetJob(ctx context.Context, jobID int64) error

	// DeleteJob removes the row. It never removes the output file.
	DeleteJob(ctx context.Context, jobID int64) error

	ListJobs(ctx context.Context) ([]*domain.TranscodeJob, error)
}
