package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"

	"github.com/mydia/mydia/internal/domain"
	"github.com/mydia/mydia/internal/infrastructure/metrics"
	"github.com/mydia/mydia/internal/port"
)

// JobStore is the persistent transcode cache backed by the shared Store.
type JobStore struct {
	db *sql.DB
}

func NewJobStore(store *Store) *JobStore {
	return &JobStore{db: store.db}
}

const jobColumns = `id, media_file_id, resolution, status, progress,
	output_path, file_size, error,
	started_at, completed_at, last_accessed_at, created_at, updated_at`

func (s *JobStore) GetOrCreateJob(ctx context.Context, mediaFileID string, resolution domain.Resolution) (job *domain.TranscodeJob, err error) {
	defer func() { metrics.ObserveStoreQuery("get_or_create_job", err) }()

	if err = domain.ValidateResolution(resolution); err != nil {
		return nil, err
	}
	if mediaFileID == "" {
		return nil, &domain.ValidationError{Field: "media_file_id", Value: "", Reason: "must not be empty"}
	}

	job, err = s.getByKey(ctx, mediaFileID, resolution)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transcode_jobs (media_file_id, resolution, status, progress, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		mediaFileID, string(resolution), string(domain.JobStatusPending), 0.0, now, now,
	)
	if err != nil && !isUniqueViolation(err) {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	// A concurrent caller may have won the insert; the unique index makes
	// the re-fetch return their row.
	return s.getByKey(ctx, mediaFileID, resolution)
}

func (s *JobStore) GetCachedTranscode(ctx context.Context, mediaFileID string, resolution domain.Resolution) (job *domain.TranscodeJob, err error) {
	defer func() { metrics.ObserveStoreQuery("get_cached_transcode", err) }()

	if err = domain.ValidateResolution(resolution); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM transcode_jobs
		 WHERE media_file_id = ? AND resolution = ? AND status = ?`,
		mediaFileID, string(resolution), string(domain.JobStatusReady),
	)
	job, err = scanJob(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return job, err
}

func (s *JobStore) GetJob(ctx context.Context, mediaFileID string, resolution domain.Resolution) (job *domain.TranscodeJob, err error) {
	defer func() { metrics.ObserveStoreQuery("get_job", err) }()
	return s.getByKey(ctx, mediaFileID, resolution)
}

func (s *JobStore) UpdateJobProgress(ctx context.Context, jobID int64, progress float64) (err error) {
	defer func() { metrics.ObserveStoreQuery("update_job_progress", err) }()

	if err = domain.ValidateProgress(progress); err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE transcode_jobs
		 SET status = ?, progress = ?, started_at = COALESCE(started_at, ?), updated_at = ?
		 WHERE id = ?`,
		string(domain.JobStatusTranscoding), progress, now, now, jobID,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return requireRow(res)
}

func (s *JobStore) CompleteJob(ctx context.Context, jobID int64, outputPath string, fileSize int64) (err error) {
	defer func() { metrics.ObserveStoreQuery("complete_job", err) }()

	if err = domain.ValidateFileSize(fileSize); err != nil {
		return err
	}
	if outputPath == "" {
		return &domain.ValidationError{Field: "output_path", Value: "", Reason: "must not be empty"}
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE transcode_jobs
		 SET status = ?, progress = 1.0, output_path = ?, file_size = ?, error = NULL,
		     completed_at = ?, last_accessed_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(domain.JobStatusReady), outputPath, fileSize, now, now, now, jobID,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return requireRow(res)
}

func (s *JobStore) FailJob(ctx context.Context, jobID int64, errMsg string) (err error) {
	defer func() { metrics.ObserveStoreQuery("fail_job", err) }()

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE transcode_jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(domain.JobStatusFailed), errMsg, now, jobID,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return requireRow(res)
}

func (s *JobStore) TouchLastAccessed(ctx context.Context, jobID int64) (err error) {
	defer func() { metrics.ObserveStoreQuery("touch_last_accessed", err) }()

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE transcode_jobs SET last_accessed_at = ?, updated_at = ? WHERE id = ?`,
		now, now, jobID,
	)
	if err != nil {
		return fmt.Errorf("touch job: %w", err)
	}
	return requireRow(res)
}

func (s *JobStore) ResetJob(ctx context.Context, jobID int64) (err error) {
	defer func() { metrics.ObserveStoreQuery("reset_job", err) }()

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE transcode_jobs
		 SET status = ?, progress = 0, output_path = NULL, file_size = NULL, error = NULL,
		     started_at = NULL, completed_at = NULL, updated_at = ?
		 WHERE id = ?`,
		string(domain.JobStatusPending), now, jobID,
	)
	if err != nil {
		return fmt.Errorf("reset job: %w", err)
	}
	return requireRow(res)
}

func (s *JobStore) DeleteJob(ctx context.Context, jobID int64) (err error) {
	defer func() { metrics.ObserveStoreQuery("delete_job", err) }()

	_, err = s.db.ExecContext(ctx, `DELETE FROM transcode_jobs WHERE id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

func (s *JobStore) ListJobs(ctx context.Context) (jobs []*domain.TranscodeJob, err error) {
	defer func() { metrics.ObserveStoreQuery("list_jobs", err) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM transcode_jobs ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *JobStore) getByKey(ctx context.Context, mediaFileID string, resolution domain.Resolution) (*domain.TranscodeJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM transcode_jobs WHERE media_file_id = ? AND resolution = ?`,
		mediaFileID, string(resolution),
	)
	return scanJob(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.TranscodeJob, error) {
	var (
		job        domain.TranscodeJob
		outputPath sql.NullString
		errMsg     sql.NullString
	)
	err := row.Scan(
		&job.ID, &job.MediaFileID, &job.Resolution, &job.Status, &job.Progress,
		&outputPath, &job.FileSize, &errMsg,
		&job.StartedAt, &job.CompletedAt, &job.LastAccessedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if err := domain.ValidateStatus(job.Status); err != nil {
		return nil, fmt.Errorf("job %d: %w", job.ID, err)
	}
	job.OutputPath = outputPath.String
	job.ErrorMessage = errMsg.String
	return &job, nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		// SQLITE_CONSTRAINT_UNIQUE and SQLITE_CONSTRAINT_PRIMARYKEY
		return se.Code() == 2067 || se.Code() == 1555
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ port.JobStore = (*JobStore)(nil)
