package service

import (
	"context"
	"errors"
	"time"

	"github.com/mydia/mydia/internal/domain"
	"github.com/mydia/mydia/internal/infrastructure/logger"
	"github.com/mydia/mydia/internal/infrastructure/metrics"
	"github.com/mydia/mydia/internal/port"
)

// ErrSchedulerStopped is returned by API calls after Run has exited.
var ErrSchedulerStopped = errors.New("scheduler stopped")

type JobState string

const (
	StateRunning  JobState = "running"
	StateQueued   JobState = "queued"
	StateNotFound JobState = "not_found"
)

// JobInfo describes one tracked job for snapshots.
type JobInfo struct {
	Key        domain.JobKey `json:"-"`
	MediaFile  string        `json:"media_file_id"`
	Resolution string        `json:"resolution"`
	HandleID   string        `json:"handle_id,omitempty"`
	InputPath  string        `json:"input_path"`
	OutputPath string        `json:"output_path"`
}

// Snapshot is a point-in-time view of the scheduler's state.
type Snapshot struct {
	Active []JobInfo `json:"active"`
	Queued []JobInfo `json:"queued"`
}

// StartResult is the synchronous answer to StartOrQueueJob.
type StartResult struct {
	Queued bool
	Worker port.Worker // nil when queued
}

type startRequest struct {
	key        domain.JobKey
	inputPath  string
	outputPath string
	callbacks  port.WorkerCallbacks
	reply      chan startReply
}

type startReply struct {
	result StartResult
	err    error
}

type cancelRequest struct {
	key   domain.JobKey
	reply chan struct{}
}

type statusRequest struct {
	key   domain.JobKey
	reply chan JobState
}

type listRequest struct {
	reply chan Snapshot
}

// outcome is a worker's terminal report back to the coordinator. The handle
// pointer lets the loop ignore reports from workers it already evicted.
type outcome struct {
	key       domain.JobKey
	handle    *activeJob
	completed bool
}

type activeJob struct {
	key        domain.JobKey
	worker     port.Worker
	inputPath  string
	outputPath string
	startedAt  time.Time
}

type queuedJob struct {
	key        domain.JobKey
	inputPath  string
	outputPath string
	callbacks  port.WorkerCallbacks
}

// Scheduler is the single admission point for transcode work. One goroutine
// (Run) owns the active set and the wait queue; every operation, including
// worker completions, reaches that goroutine as a message, so capacity and
// de-duplication hold without locks.
type Scheduler struct {
	capacity int
	factory  port.WorkerFactory

	starts   chan startRequest
	cancels  chan cancelRequest
	statuses chan statusRequest
	lists    chan listRequest
	outcomes chan outcome

	runCtx  context.Context
	stopped chan struct{}
}

func NewScheduler(factory port.WorkerFactory, capacity int) *Scheduler {
	if capacity < 1 {
		capacity = 1
	}
	return &Scheduler{
		capacity: capacity,
		factory:  factory,
		starts:   make(chan startRequest),
		cancels:  make(chan cancelRequest),
		statuses: make(chan statusRequest),
		lists:    make(chan listRequest),
		outcomes: make(chan outcome, 16),
		stopped:  make(chan struct{}),
	}
}

// Run executes the coordinator loop until ctx is cancelled. All scheduler
// state lives in this frame and is never touched from outside it.
func (s *Scheduler) Run(ctx context.Context) {
	s.runCtx = ctx
	active := make(map[domain.JobKey]*activeJob)
	var queue []queuedJob

	defer close(s.stopped)

	logger.Info.Printf("scheduler running with capacity %d", s.capacity)

	for {
		select {
		case <-ctx.Done():
			for _, handle := range active {
				go handle.worker.Cancel()
			}
			logger.Info.Printf("scheduler shutting down (%d active, %d queued)", len(active), len(queue))
			return

		case req := <-s.starts:
			req.reply <- s.handleStart(active, &queue, req)

		case req := <-s.cancels:
			s.handleCancel(active, &queue, req.key)
			req.reply <- struct{}{}

		case req := <-s.statuses:
			req.reply <- jobState(active, queue, req.key)

		case req := <-s.lists:
			req.reply <- snapshot(active, queue)

		case out := <-s.outcomes:
			s.handleOutcome(active, &queue, out)
		}
	}
}

// StartOrQueueJob admits a transcode request: domain.ErrAlreadyExists if the
// key is already tracked, an immediate worker start when a slot is free, a
// FIFO queue entry otherwise. It never blocks on encoder I/O.
func (s *Scheduler) StartOrQueueJob(key domain.JobKey, inputPath, outputPath string, cb port.WorkerCallbacks) (StartResult, error) {
	if err := domain.ValidateResolution(key.Resolution); err != nil {
		return StartResult{}, err
	}

	req := startRequest{
		key:        key,
		inputPath:  inputPath,
		outputPath: outputPath,
		callbacks:  cb,
		reply:      make(chan startReply, 1),
	}
	select {
	case s.starts <- req:
	case <-s.stopped:
		return StartResult{}, ErrSchedulerStopped
	}
	select {
	case rep := <-req.reply:
		return rep.result, rep.err
	case <-s.stopped:
		return StartResult{}, ErrSchedulerStopped
	}
}

// CancelJob stops a running job or removes a queued one. Cancelling an
// absent key is a successful no-op.
func (s *Scheduler) CancelJob(key domain.JobKey) error {
	req := cancelRequest{key: key, reply: make(chan struct{}, 1)}
	select {
	case s.cancels <- req:
	case <-s.stopped:
		return ErrSchedulerStopped
	}
	select {
	case <-req.reply:
		return nil
	case <-s.stopped:
		return ErrSchedulerStopped
	}
}

// GetJobStatus reports whether the key is running or queued;
// domain.ErrNotFound otherwise.
func (s *Scheduler) GetJobStatus(key domain.JobKey) (JobState, error) {
	req := statusRequest{key: key, reply: make(chan JobState, 1)}
	select {
	case s.statuses <- req:
	case <-s.stopped:
		return StateNotFound, ErrSchedulerStopped
	}
	select {
	case state := <-req.reply:
		if state == StateNotFound {
			return state, domain.ErrNotFound
		}
		return state, nil
	case <-s.stopped:
		return StateNotFound, ErrSchedulerStopped
	}
}

// ListActiveJobs returns a snapshot of active and queued work.
func (s *Scheduler) ListActiveJobs() (Snapshot, error) {
	req := listRequest{reply: make(chan Snapshot, 1)}
	select {
	case s.lists <- req:
	case <-s.stopped:
		return Snapshot{}, ErrSchedulerStopped
	}
	select {
	case snap := <-req.reply:
		return snap, nil
	case <-s.stopped:
		return Snapshot{}, ErrSchedulerStopped
	}
}

func (s *Scheduler) handleStart(active map[domain.JobKey]*activeJob, queue *[]queuedJob, req startRequest) startReply {
	if _, ok := active[req.key]; ok {
		return startReply{err: domain.ErrAlreadyExists}
	}
	for _, q := range *queue {
		if q.key == req.key {
			return startReply{err: domain.ErrAlreadyExists}
		}
	}

	job := queuedJob{key: req.key, inputPath: req.inputPath, outputPath: req.outputPath, callbacks: req.callbacks}

	if len(active) < s.capacity {
		handle, err := s.launch(active, job)
		if err != nil {
			return startReply{err: err}
		}
		return startReply{result: StartResult{Worker: handle.worker}}
	}

	*queue = append(*queue, job)
	metrics.TranscodesQueued.Set(float64(len(*queue)))
	logger.Info.Printf("job %s queued at position %d", req.key, len(*queue))
	return startReply{result: StartResult{Queued: true}}
}

func (s *Scheduler) handleCancel(active map[domain.JobKey]*activeJob, queue *[]queuedJob, key domain.JobKey) {
	if handle, ok := active[key]; ok {
		delete(active, key)
		metrics.TranscodesActive.Set(float64(len(active)))
		metrics.TranscodesTotal.WithLabelValues("cancelled").Inc()
		// Reap off the loop; the slot is already free.
		go handle.worker.Cancel()
		logger.Info.Printf("job %s cancelled while running", key)
		s.promote(active, queue)
		return
	}

	for i, q := range *queue {
		if q.key == key {
			*queue = append((*queue)[:i], (*queue)[i+1:]...)
			metrics.TranscodesQueued.Set(float64(len(*queue)))
			metrics.TranscodesTotal.WithLabelValues("cancelled").Inc()
			logger.Info.Printf("job %s cancelled while queued", key)
			return
		}
	}
}

func (s *Scheduler) handleOutcome(active map[domain.JobKey]*activeJob, queue *[]queuedJob, out outcome) {
	handle, ok := active[out.key]
	if !ok || handle != out.handle {
		// Already cancelled or replaced; nothing to free.
		return
	}
	delete(active, out.key)
	metrics.TranscodesActive.Set(float64(len(active)))
	if out.completed {
		metrics.TranscodesTotal.WithLabelValues("completed").Inc()
		metrics.TranscodeDuration.Observe(time.Since(handle.startedAt).Seconds())
	} else {
		metrics.TranscodesTotal.WithLabelValues("failed").Inc()
	}
	s.promote(active, queue)
}

// promote moves queue heads into free slots, oldest first.
func (s *Scheduler) promote(active map[domain.JobKey]*activeJob, queue *[]queuedJob) {
	for len(*queue) > 0 && len(active) < s.capacity {
		job := (*queue)[0]
		*queue = (*queue)[1:]
		metrics.TranscodesQueued.Set(float64(len(*queue)))

		if _, err := s.launch(active, job); err != nil {
			// The slot stays free; tell the caller the same way a
			// worker failure would.
			logger.Error.Printf("promote %s: %v", job.key, err)
			if job.callbacks.OnError != nil {
				job.callbacks.OnError(err.Error())
			}
			continue
		}
		logger.Info.Printf("job %s promoted from queue", job.key)
	}
}

func (s *Scheduler) launch(active map[domain.JobKey]*activeJob, job queuedJob) (*activeJob, error) {
	handle := &activeJob{
		key:        job.key,
		inputPath:  job.inputPath,
		outputPath: job.outputPath,
		startedAt:  time.Now(),
	}

	caller := job.callbacks
	wrapped := port.WorkerCallbacks{
		OnProgress: caller.OnProgress,
		OnComplete: func(outputPath string, fileSize int64) {
			if caller.OnComplete != nil {
				caller.OnComplete(outputPath, fileSize)
			}
			s.reportOutcome(outcome{key: job.key, handle: handle, completed: true})
		},
		OnError: func(msg string) {
			if caller.OnError != nil {
				caller.OnError(msg)
			}
			s.reportOutcome(outcome{key: job.key, handle: handle})
		},
	}

	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	worker, err := s.factory.Start(ctx, job.inputPath, job.outputPath, job.key.Resolution, wrapped)
	if err != nil {
		return nil, err
	}

	handle.worker = worker
	active[job.key] = handle
	metrics.TranscodesActive.Set(float64(len(active)))
	return handle, nil
}

func (s *Scheduler) reportOutcome(out outcome) {
	select {
	case s.outcomes <- out:
	case <-s.stopped:
	}
}

func jobState(active map[domain.JobKey]*activeJob, queue []queuedJob, key domain.JobKey) JobState {
	if _, ok := active[key]; ok {
		return StateRunning
	}
	for _, q := range queue {
		if q.key == key {
			return StateQueued
		}
	}
	return StateNotFound
}

func snapshot(active map[domain.JobKey]*activeJob, queue []queuedJob) Snapshot {
	snap := Snapshot{
		Active: make([]JobInfo, 0, len(active)),
		Queued: make([]JobInfo, 0, len(queue)),
	}
	for _, handle := range active {
		snap.Active = append(snap.Active, JobInfo{
			Key:        handle.key,
			MediaFile:  handle.key.MediaFileID,
			Resolution: string(handle.key.Resolution),
			HandleID:   handle.worker.ID(),
			InputPath:  handle.inputPath,
			OutputPath: handle.outputPath,
		})
	}
	for _, q := range queue {
		snap.Queued = append(snap.Queued, JobInfo{
			Key:        q.key,
			MediaFile:  q.key.MediaFileID,
			Resolution: string(q.key.Resolution),
			InputPath:  q.inputPath,
			OutputPath: q.outputPath,
		})
	}
	return snap
}
