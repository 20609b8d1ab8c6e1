package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mydia/mydia/internal/domain"
	"github.com/mydia/mydia/internal/infrastructure/logger"
	"github.com/mydia/mydia/internal/infrastructure/metrics"
	"github.com/mydia/mydia/internal/port"
)

// TranscodeService is the caller-facing API: it checks the cache, creates
// job rows, and hands admission to the scheduler, wiring worker callbacks
// back into the store and the event bus.
type TranscodeService struct {
	store   port.JobStore
	sched   *Scheduler
	events  *EventBus
	dataDir string
}

func NewTranscodeService(store port.JobStore, sched *Scheduler, events *EventBus, dataDir string) *TranscodeService {
	return &TranscodeService{
		store:   store,
		sched:   sched,
		events:  events,
		dataDir: dataDir,
	}
}

// RequestResult reports how a transcode request was satisfied.
type RequestResult struct {
	Job    *domain.TranscodeJob
	Cached bool
	Queued bool
}

// RequestTranscode serves a playback request for a resolution the client
// cannot play natively. Cache hits return immediately; misses are scheduled.
// A key that is already running or queued returns domain.ErrAlreadyExists.
func (s *TranscodeService) RequestTranscode(ctx context.Context, mediaFileID string, resolution domain.Resolution, inputPath string) (*RequestResult, error) {
	cached, err := s.store.GetCachedTranscode(ctx, mediaFileID, resolution)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		if err := s.store.TouchLastAccessed(ctx, cached.ID); err != nil {
			logger.Warn.Printf("touch job %d: %v", cached.ID, err)
		}
		return &RequestResult{Job: cached, Cached: true}, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	if inputPath == "" {
		return nil, &domain.ValidationError{Field: "input_path", Value: "", Reason: "must not be empty"}
	}

	job, err := s.store.GetOrCreateJob(ctx, mediaFileID, resolution)
	if err != nil {
		return nil, err
	}

	key := job.Key()
	result, err := s.sched.StartOrQueueJob(key, inputPath, s.outputPathFor(mediaFileID, resolution), s.jobCallbacks(key, job.ID))
	if err != nil {
		return nil, err
	}

	if result.Queued {
		s.events.Publish(key, Event{Type: "status", Status: "queued"})
		return &RequestResult{Job: job, Queued: true}, nil
	}
	return &RequestResult{Job: job}, nil
}

// StatusView combines the persistent row with the scheduler's live state.
type StatusView struct {
	Job   *domain.TranscodeJob
	State JobState
}

// Status reports the persistent and live state for a key. The job may exist
// in the store without being tracked by the scheduler (ready, failed, or
// cancelled mid-flight).
func (s *TranscodeService) Status(ctx context.Context, mediaFileID string, resolution domain.Resolution) (*StatusView, error) {
	job, err := s.store.GetJob(ctx, mediaFileID, resolution)
	if err != nil {
		return nil, err
	}

	key := domain.JobKey{MediaFileID: mediaFileID, Resolution: resolution}
	state, err := s.sched.GetJobStatus(key)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return &StatusView{Job: job, State: state}, nil
}

// Cancel stops a running or queued transcode. Absent keys are a no-op. The
// interrupted row goes back to pending so the next request schedules it again
// instead of finding a stale transcoding status.
func (s *TranscodeService) Cancel(ctx context.Context, mediaFileID string, resolution domain.Resolution) error {
	if err := domain.ValidateResolution(resolution); err != nil {
		return err
	}
	key := domain.JobKey{MediaFileID: mediaFileID, Resolution: resolution}
	if err := s.sched.CancelJob(key); err != nil {
		return err
	}

	job, err := s.store.GetJob(ctx, mediaFileID, resolution)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return err
	case job.Status == domain.JobStatusPending || job.Status == domain.JobStatusTranscoding:
		if err := s.store.ResetJob(ctx, job.ID); err != nil {
			logger.Warn.Printf("job %d: reset after cancel: %v", job.ID, err)
		}
	}

	s.events.Publish(key, Event{Type: "status", Status: "cancelled"})
	return nil
}

// ListActive snapshots the scheduler's active and queued jobs.
func (s *TranscodeService) ListActive() (Snapshot, error) {
	return s.sched.ListActiveJobs()
}

// ListJobs returns every persisted job row.
func (s *TranscodeService) ListJobs(ctx context.Context) ([]*domain.TranscodeJob, error) {
	return s.store.ListJobs(ctx)
}

// Subscribe follows events for one key; pair with Unsubscribe.
func (s *TranscodeService) Subscribe(key domain.JobKey) chan Event {
	return s.events.Subscribe(key)
}

func (s *TranscodeService) Unsubscribe(key domain.JobKey, ch chan Event) {
	s.events.Unsubscribe(key, ch)
}

func (s *TranscodeService) outputPathFor(mediaFileID string, resolution domain.Resolution) string {
	// Media file ids come from the library layer; flatten anything that
	// would escape the transcode directory.
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(mediaFileID)
	return filepath.Join(s.dataDir, "transcodes", fmt.Sprintf("%s_%s.mp4", safe, resolution))
}

// jobCallbacks persists worker outcomes and publishes them to subscribers.
// Workers run concurrently with request handling, so these use a background
// context rather than the context of the request that started the job.
func (s *TranscodeService) jobCallbacks(key domain.JobKey, jobID int64) port.WorkerCallbacks {
	return port.WorkerCallbacks{
		OnProgress: func(u port.ProgressUpdate) {
			if u.Fraction >= 0 {
				if err := s.store.UpdateJobProgress(context.Background(), jobID, u.Fraction); err != nil {
					logger.Error.Printf("job %d: record progress: %v", jobID, err)
				}
			}
			s.events.Publish(key, Event{
				Type:     "progress",
				Status:   string(domain.JobStatusTranscoding),
				Progress: u.Fraction,
				Elapsed:  u.Elapsed.Seconds(),
				Speed:    u.Speed,
			})
		},
		OnComplete: func(outputPath string, fileSize int64) {
			if err := s.store.CompleteJob(context.Background(), jobID, outputPath, fileSize); err != nil {
				logger.Error.Printf("job %d: record completion: %v", jobID, err)
			}
			s.events.Publish(key, Event{Type: "status", Status: string(domain.JobStatusReady), Progress: 1.0})
		},
		OnError: func(msg string) {
			if err := s.store.FailJob(context.Background(), jobID, msg); err != nil {
				logger.Error.Printf("job %d: record failure: %v", jobID, err)
			}
			s.events.Publish(key, Event{Type: "status", Status: string(domain.JobStatusFailed), Message: msg})
		},
	}
}
