package domain

import (
	"database/sql"
	"fmt"
	"slices"
	"time"
)

type Resolution string

const (
	Resolution480p  Resolution = "480p"
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
)

// Resolutions lists every supported transcode preset.
var Resolutions = []Resolution{Resolution480p, Resolution720p, Resolution1080p}

func (r Resolution) Valid() bool {
	return slices.Contains(Resolutions, r)
}

type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusTranscoding JobStatus = "transcoding"
	JobStatusReady       JobStatus = "ready"
	JobStatusFailed      JobStatus = "failed"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusTranscoding, JobStatusReady, JobStatusFailed:
		return true
	}
	return false
}

// JobKey identifies one transcode request. At most one tracked job exists
// per key, both in the store and in the scheduler.
type JobKey struct {
	MediaFileID string
	Resolution  Resolution
}

func (k JobKey) String() string {
	return fmt.Sprintf("%s@%s", k.MediaFileID, k.Resolution)
}

// TranscodeJob is the persistent record of one transcode request and its
// cached result.
type TranscodeJob struct {
	ID             int64
	MediaFileID    string
	Resolution     Resolution
	Status         JobStatus
	Progress       float64
	OutputPath     string
	FileSize       sql.NullInt64
	ErrorMessage   string
	StartedAt      sql.NullTime
	CompletedAt    sql.NullTime
	LastAccessedAt sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (j *TranscodeJob) Key() JobKey {
	return JobKey{MediaFileID: j.MediaFileID, Resolution: j.Resolution}
}

func (j *TranscodeJob) Ready() bool {
	return j.Status == JobStatusReady
}

func ValidateResolution(r Resolution) error {
	if !r.Valid() {
		return &ValidationError{Field: "resolution", Value: string(r), Reason: "must be one of 480p, 720p, 1080p"}
	}
	return nil
}

func ValidateStatus(s JobStatus) error {
	if !s.Valid() {
		return &ValidationError{Field: "status", Value: string(s), Reason: "must be one of pending, transcoding, ready, failed"}
	}
	return nil
}

func ValidateProgress(p float64) error {
	if p < 0.0 || p > 1.0 {
		return &ValidationError{Field: "progress", Value: fmt.Sprintf("%g", p), Reason: "must be between 0.0 and 1.0"}
	}
	return nil
}

func ValidateFileSize(size int64) error {
	if size <= 0 {
		return &ValidationError{Field: "file_size", Value: fmt.Sprintf("%d", size), Reason: "must be positive"}
	}
	return nil
}
