package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mydia/mydia/internal/domain"
	"github.com/mydia/mydia/internal/infrastructure/logger"
	"github.com/mydia/mydia/internal/port"
)

var commandContext = exec.CommandContext

const maxStderrLines = 20

// Factory spawns one ffmpeg process per transcode.
type Factory struct {
	binary      string
	probeBinary string
}

// Option configures the factory.
type Option func(*Factory)

// WithBinary overrides the default ffmpeg binary.
func WithBinary(binary string) Option {
	return func(f *Factory) {
		if binary != "" {
			f.binary = binary
		}
	}
}

// WithProbeBinary overrides the default ffprobe binary.
func WithProbeBinary(binary string) Option {
	return func(f *Factory) {
		if binary != "" {
			f.probeBinary = binary
		}
	}
}

func NewFactory(opts ...Option) *Factory {
	f := &Factory{binary: "ffmpeg", probeBinary: "ffprobe"}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start validates the request and launches the encoder. Validation problems
// (unknown preset, bad paths) are returned here and never reach a callback.
// Everything after a successful spawn is delivered asynchronously.
func (f *Factory) Start(ctx context.Context, inputPath, outputPath string, resolution domain.Resolution, cb port.WorkerCallbacks) (port.Worker, error) {
	encodeArgs, err := presetArgs(resolution)
	if err != nil {
		return nil, err
	}
	if err := validatePath(inputPath); err != nil {
		return nil, fmt.Errorf("input path: %w", err)
	}
	if err := validatePath(outputPath); err != nil {
		return nil, fmt.Errorf("output path: %w", err)
	}

	id := uuid.NewString()
	workPath := stagingPath(outputPath, id)

	args := []string{"-hide_banner", "-nostats", "-loglevel", "error", "-i", inputPath}
	args = append(args, encodeArgs...)
	args = append(args, "-progress", "pipe:1", "-y", workPath)

	w := &Worker{
		id:          id,
		inputPath:   inputPath,
		outputPath:  outputPath,
		workPath:    workPath,
		resolution:  resolution,
		probeBinary: f.probeBinary,
		cb:          cb,
		done:        make(chan struct{}),
	}

	cmd := commandContext(ctx, f.binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	w.cmd = cmd
	if err := cmd.Start(); err != nil {
		// The process never ran; report it through the normal failure
		// path so the scheduler frees the slot the same way.
		w.finished = true
		close(w.done)
		go w.failNow(fmt.Sprintf("spawn encoder: %v", err))
		return w, nil
	}

	logger.Info.Printf("worker %s: encoding %s -> %s (%s)",
		w.id, logger.SanitizeForLog(inputPath), logger.SanitizeForLog(outputPath), resolution)

	go w.run(stdout, stderr)
	return w, nil
}

// stagingPath derives the per-worker encode target next to the final output.
// Workers publish by renaming it into place, so a cancelled worker can only
// ever remove its own staged file, never the output of a successor encoding
// the same key.
func stagingPath(outputPath, id string) string {
	ext := filepath.Ext(outputPath)
	return strings.TrimSuffix(outputPath, ext) + "." + id[:8] + ".part" + ext
}

// Worker wraps a single running encoder process.
type Worker struct {
	id          string
	inputPath   string
	outputPath  string
	workPath    string
	resolution  domain.Resolution
	probeBinary string
	cmd         *exec.Cmd
	cb          port.WorkerCallbacks
	done        chan struct{}

	mu         sync.Mutex
	cancelled  bool
	finished   bool
	stderrTail []string
}

func (w *Worker) ID() string                    { return w.id }
func (w *Worker) InputPath() string             { return w.inputPath }
func (w *Worker) OutputPath() string            { return w.outputPath }
func (w *Worker) Resolution() domain.Resolution { return w.resolution }

func (w *Worker) Alive() bool {
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// Cancel terminates the encoder and removes its staged output. No completion
// or error callback fires after Cancel returns.
func (w *Worker) Cancel() {
	w.mu.Lock()
	if w.finished || w.cancelled {
		w.mu.Unlock()
		return
	}
	w.cancelled = true
	w.mu.Unlock()

	if w.cmd != nil && w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
	<-w.done

	if err := os.Remove(w.workPath); err != nil && !os.IsNotExist(err) {
		logger.Warn.Printf("worker %s: remove staged output: %v", w.id, err)
	}
	logger.Info.Printf("worker %s: cancelled", w.id)
}

func (w *Worker) run(stdout, stderr io.ReadCloser) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.readStderr(stderr)
	}()

	// Best effort; without a duration progress carries elapsed time only.
	duration, err := probeDuration(context.Background(), w.probeBinary, w.inputPath)
	if err != nil {
		logger.Warn.Printf("probe %s: %v", logger.SanitizeForLog(w.inputPath), err)
	}
	parser := newProgressParser(duration)

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		update, ok := parser.Feed(scanner.Text())
		if !ok {
			continue
		}
		if w.cb.OnProgress != nil && !w.isCancelled() {
			w.cb.OnProgress(update)
		}
	}

	wg.Wait()
	waitErr := w.cmd.Wait()
	close(w.done)
	w.finish(waitErr)
}

// readStderr keeps the last few encoder error lines for failure messages.
func (w *Worker) readStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		w.mu.Lock()
		w.stderrTail = append(w.stderrTail, line)
		if len(w.stderrTail) > maxStderrLines {
			w.stderrTail = w.stderrTail[1:]
		}
		w.mu.Unlock()
	}
}

func (w *Worker) isCancelled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancelled
}

// finish delivers the terminal callback at most once, unless cancelled.
func (w *Worker) finish(waitErr error) {
	w.mu.Lock()
	if w.cancelled || w.finished {
		w.mu.Unlock()
		return
	}
	w.finished = true
	tail := strings.Join(w.stderrTail, "; ")
	w.mu.Unlock()

	if waitErr != nil {
		_ = os.Remove(w.workPath)
		msg := fmt.Sprintf("encoder failed: %v", waitErr)
		if tail != "" {
			msg = fmt.Sprintf("%s: %s", msg, logger.SanitizeForLog(tail))
		}
		logger.Error.Printf("worker %s: %s", w.id, msg)
		w.failNow(msg)
		return
	}

	info, err := os.Stat(w.workPath)
	if err != nil {
		w.failNow(fmt.Sprintf("encoder produced no output: %v", err))
		return
	}
	if info.Size() == 0 {
		_ = os.Remove(w.workPath)
		w.failNow("encoder produced an empty output file")
		return
	}
	if err := os.Rename(w.workPath, w.outputPath); err != nil {
		w.failNow(fmt.Sprintf("publish output: %v", err))
		return
	}

	logger.Info.Printf("worker %s: completed %s (%d bytes)",
		w.id, logger.SanitizeForLog(w.outputPath), info.Size())
	if w.cb.OnComplete != nil {
		w.cb.OnComplete(w.outputPath, info.Size())
	}
}

func (w *Worker) failNow(msg string) {
	if w.cb.OnError != nil {
		w.cb.OnError(msg)
	}
}

var _ port.Worker = (*Worker)(nil)
var _ port.WorkerFactory = (*Factory)(nil)
