package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mydia/mydia/internal/domain"
	"github.com/mydia/mydia/internal/port"
)

// memStore is an in-memory JobStore with the same semantics as the sqlite
// adapter, for exercising the facade without a database.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[domain.JobKey]*domain.TranscodeJob
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[domain.JobKey]*domain.TranscodeJob)}
}

func (m *memStore) GetOrCreateJob(_ context.Context, mediaFileID string, resolution domain.Resolution) (*domain.TranscodeJob, error) {
	if err := domain.ValidateResolution(resolution); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := domain.JobKey{MediaFileID: mediaFileID, Resolution: resolution}
	if job, ok := m.rows[key]; ok {
		copied := *job
		return &copied, nil
	}
	m.nextID++
	job := &domain.TranscodeJob{
		ID:          m.nextID,
		MediaFileID: mediaFileID,
		Resolution:  resolution,
		Status:      domain.JobStatusPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.rows[key] = job
	copied := *job
	return &copied, nil
}

func (m *memStore) GetCachedTranscode(_ context.Context, mediaFileID string, resolution domain.Resolution) (*domain.TranscodeJob, error) {
	if err := domain.ValidateResolution(resolution); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.rows[domain.JobKey{MediaFileID: mediaFileID, Resolution: resolution}]
	if !ok || job.Status != domain.JobStatusReady {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (m *memStore) GetJob(_ context.Context, mediaFileID string, resolution domain.Resolution) (*domain.TranscodeJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.rows[domain.JobKey{MediaFileID: mediaFileID, Resolution: resolution}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (m *memStore) byID(jobID int64) *domain.TranscodeJob {
	for _, job := range m.rows {
		if job.ID == jobID {
			return job
		}
	}
	return nil
}

func (m *memStore) UpdateJobProgress(_ context.Context, jobID int64, progress float64) error {
	if err := domain.ValidateProgress(progress); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.byID(jobID)
	if job == nil {
		return domain.ErrNotFound
	}
	job.Status = domain.JobStatusTranscoding
	job.Progress = progress
	if !job.StartedAt.Valid {
		job.StartedAt = sql.NullTime{Time: time.Now(), Valid: true}
	}
	return nil
}

func (m *memStore) CompleteJob(_ context.Context, jobID int64, outputPath string, fileSize int64) error {
	if err := domain.ValidateFileSize(fileSize); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.byID(jobID)
	if job == nil {
		return domain.ErrNotFound
	}
	job.Status = domain.JobStatusReady
	job.Progress = 1.0
	job.OutputPath = outputPath
	job.FileSize = sql.NullInt64{Int64: fileSize, Valid: true}
	job.CompletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	job.LastAccessedAt = sql.NullTime{Time: time.Now(), Valid: true}
	return nil
}

func (m *memStore) FailJob(_ context.Context, jobID int64, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.byID(jobID)
	if job == nil {
		return domain.ErrNotFound
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = errMsg
	return nil
}

func (m *memStore) TouchLastAccessed(_ context.Context, jobID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.byID(jobID)
	if job == nil {
		return domain.ErrNotFound
	}
	job.LastAccessedAt = sql.NullTime{Time: time.Now(), Valid: true}
	return nil
}

func (m *memStore) ResetJob(_ context.Context, jobID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.byID(jobID)
	if job == nil {
		return domain.ErrNotFound
	}
	job.Status = domain.JobStatusPending
	job.Progress = 0
	job.OutputPath = ""
	job.FileSize = sql.NullInt64{}
	job.ErrorMessage = ""
	job.StartedAt = sql.NullTime{}
	job.CompletedAt = sql.NullTime{}
	job.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) DeleteJob(_ context.Context, jobID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, job := range m.rows {
		if job.ID == jobID {
			delete(m.rows, key)
			return nil
		}
	}
	return nil
}

func (m *memStore) ListJobs(_ context.Context) ([]*domain.TranscodeJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs := make([]*domain.TranscodeJob, 0, len(m.rows))
	for _, job := range m.rows {
		copied := *job
		jobs = append(jobs, &copied)
	}
	return jobs, nil
}

var _ port.JobStore = (*memStore)(nil)

func newTestService(t *testing.T, capacity int) (*TranscodeService, *memStore, *fakeFactory) {
	t.Helper()
	store := newMemStore()
	factory := newFakeFactory()
	sched := NewScheduler(factory, capacity)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	svc := NewTranscodeService(store, sched, NewEventBus(), t.TempDir())
	return svc, store, factory
}

func TestRequestTranscode_MissThenHit(t *testing.T) {
	svc, _, factory := newTestService(t, 2)
	ctx := context.Background()

	result, err := svc.RequestTranscode(ctx, "file1", domain.Resolution720p, "/lib/file1.mkv")
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.False(t, result.Queued)
	assert.Equal(t, domain.JobStatusPending, result.Job.Status)

	worker := factory.worker(key720("file1"))
	require.NotNil(t, worker)

	worker.cb.OnProgress(port.ProgressUpdate{Elapsed: 5 * time.Second, Fraction: 0.5})
	view, err := svc.Status(ctx, "file1", domain.Resolution720p)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusTranscoding, view.Job.Status)
	assert.Equal(t, 0.5, view.Job.Progress)
	assert.Equal(t, StateRunning, view.State)

	worker.complete()

	require.Eventually(t, func() bool {
		result, err = svc.RequestTranscode(ctx, "file1", domain.Resolution720p, "/lib/file1.mkv")
		return err == nil && result.Cached
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.JobStatusReady, result.Job.Status)
	assert.True(t, result.Job.LastAccessedAt.Valid)
}

func TestRequestTranscode_DuplicateWhileRunning(t *testing.T) {
	svc, _, _ := newTestService(t, 2)
	ctx := context.Background()

	_, err := svc.RequestTranscode(ctx, "file1", domain.Resolution720p, "/lib/file1.mkv")
	require.NoError(t, err)

	_, err = svc.RequestTranscode(ctx, "file1", domain.Resolution720p, "/lib/file1.mkv")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestRequestTranscode_QueuedAtCapacity(t *testing.T) {
	svc, _, _ := newTestService(t, 1)
	ctx := context.Background()

	_, err := svc.RequestTranscode(ctx, "file1", domain.Resolution720p, "/lib/file1.mkv")
	require.NoError(t, err)

	result, err := svc.RequestTranscode(ctx, "file2", domain.Resolution720p, "/lib/file2.mkv")
	require.NoError(t, err)
	assert.True(t, result.Queued)

	view, err := svc.Status(ctx, "file2", domain.Resolution720p)
	require.NoError(t, err)
	assert.Equal(t, StateQueued, view.State)
	assert.Equal(t, domain.JobStatusPending, view.Job.Status)
}

func TestRequestTranscode_FailureRecorded(t *testing.T) {
	svc, _, factory := newTestService(t, 1)
	ctx := context.Background()

	_, err := svc.RequestTranscode(ctx, "file1", domain.Resolution720p, "/lib/file1.mkv")
	require.NoError(t, err)

	factory.worker(key720("file1")).fail("encoder exited with code 1")

	require.Eventually(t, func() bool {
		view, viewErr := svc.Status(ctx, "file1", domain.Resolution720p)
		return viewErr == nil && view.Job.Status == domain.JobStatusFailed
	}, 2*time.Second, 5*time.Millisecond)

	view, err := svc.Status(ctx, "file1", domain.Resolution720p)
	require.NoError(t, err)
	assert.Equal(t, "encoder exited with code 1", view.Job.ErrorMessage)
	assert.Equal(t, StateNotFound, view.State)

	// A failed row is not a cache entry; the next request schedules again.
	result, err := svc.RequestTranscode(ctx, "file1", domain.Resolution720p, "/lib/file1.mkv")
	require.NoError(t, err)
	assert.False(t, result.Cached)
}

func TestRequestTranscode_Validation(t *testing.T) {
	svc, _, _ := newTestService(t, 1)
	ctx := context.Background()

	_, err := svc.RequestTranscode(ctx, "file1", "2160p", "/lib/file1.mkv")
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	_, err = svc.RequestTranscode(ctx, "file1", domain.Resolution720p, "")
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestCancelIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t, 1)
	ctx := context.Background()

	require.NoError(t, svc.Cancel(ctx, "ghost", domain.Resolution720p))

	_, err := svc.RequestTranscode(ctx, "file1", domain.Resolution720p, "/lib/file1.mkv")
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, "file1", domain.Resolution720p))
	require.NoError(t, svc.Cancel(ctx, "file1", domain.Resolution720p))
}

func TestCancelResetsRunningJobRow(t *testing.T) {
	svc, _, factory := newTestService(t, 1)
	ctx := context.Background()

	_, err := svc.RequestTranscode(ctx, "file1", domain.Resolution720p, "/lib/file1.mkv")
	require.NoError(t, err)

	worker := factory.worker(key720("file1"))
	require.NotNil(t, worker)
	worker.cb.OnProgress(port.ProgressUpdate{Elapsed: 5 * time.Second, Fraction: 0.5})

	require.NoError(t, svc.Cancel(ctx, "file1", domain.Resolution720p))

	// The row must not be left claiming an encode that no longer runs.
	view, err := svc.Status(ctx, "file1", domain.Resolution720p)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, view.Job.Status)
	assert.Equal(t, 0.0, view.Job.Progress)
	assert.False(t, view.Job.StartedAt.Valid)
	assert.Equal(t, StateNotFound, view.State)
}

func TestEventsReachSubscribers(t *testing.T) {
	svc, _, factory := newTestService(t, 1)
	ctx := context.Background()

	_, err := svc.RequestTranscode(ctx, "file1", domain.Resolution720p, "/lib/file1.mkv")
	require.NoError(t, err)

	ch := svc.Subscribe(key720("file1"))
	defer svc.Unsubscribe(key720("file1"), ch)

	worker := factory.worker(key720("file1"))
	worker.cb.OnProgress(port.ProgressUpdate{Elapsed: time.Second, Fraction: 0.1})

	select {
	case event := <-ch:
		assert.Equal(t, "progress", event.Type)
		assert.Equal(t, 0.1, event.Progress)
	case <-time.After(2 * time.Second):
		t.Fatal("no progress event received")
	}

	worker.complete()
	select {
	case event := <-ch:
		assert.Equal(t, "status", event.Type)
		assert.Equal(t, string(domain.JobStatusReady), event.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no status event received")
	}
}
