package port

import (
	"context"
	"time"

	"github.com/mydia/mydia/internal/domain"
)

// ProgressUpdate is one parsed progress report from the encoder.
type ProgressUpdate struct {
	// Elapsed is the amount of source material encoded so far.
	Elapsed time.Duration
	// Speed is the encode speed relative to realtime (1.0 == realtime).
	// Zero when the encoder did not report it.
	Speed float64
	// Fraction is overall completion in [0,1], or -1 when the source
	// duration is unknown.
	Fraction float64
}

// WorkerCallbacks receive asynchronous encode outcomes. OnComplete and
// OnError are mutually exclusive and fire at most once; neither fires after
// a cancel.
type WorkerCallbacks struct {
	OnProgress func(ProgressUpdate)
	OnComplete func(outputPath string, fileSize int64)
	OnError    func(msg string)
}

// Worker is one running encoder invocation.
type Worker interface {
	ID() string
	InputPath() string
	OutputPath() string
	Resolution() domain.Resolution

	// Alive reports whether the encoder process is still running.
	Alive() bool

	// Cancel terminates the encoder best-effort and removes this worker's
	// own partial output. It blocks until the process has been reaped, and
	// must never touch output published by another worker for the same key.
	Cancel()
}

// WorkerFactory spawns encoder invocations. Start validates its arguments
// synchronously; a bad preset or path is returned here, never via callback.
type WorkerFactory interface {
	Start(ctx context.Context, inputPath, outputPath string, resolution domain.Resolution, cb WorkerCallbacks) (Worker, error)
}
