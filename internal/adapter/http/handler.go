package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mydia/mydia/internal/domain"
	"github.com/mydia/mydia/internal/infrastructure/logger"
	"github.com/mydia/mydia/internal/service"
)

type TranscodeService interface {
	RequestTranscode(ctx context.Context, mediaFileID string, resolution domain.Resolution, inputPath string) (*service.RequestResult, error)
	Status(ctx context.Context, mediaFileID string, resolution domain.Resolution) (*service.StatusView, error)
	Cancel(ctx context.Context, mediaFileID string, resolution domain.Resolution) error
	ListActive() (service.Snapshot, error)
	ListJobs(ctx context.Context) ([]*domain.TranscodeJob, error)
	Subscribe(key domain.JobKey) chan service.Event
	Unsubscribe(key domain.JobKey, ch chan service.Event)
}

type Handlers struct {
	svc TranscodeService
}

func NewHandlers(svc TranscodeService) *Handlers {
	return &Handlers{svc: svc}
}

type transcodeRequest struct {
	MediaFileID string `json:"media_file_id"`
	Resolution  string `json:"resolution"`
	InputPath   string `json:"input_path"`
}

// jobResponse flattens the nullable columns of a job row for JSON clients.
type jobResponse struct {
	ID             int64      `json:"id"`
	MediaFileID    string     `json:"media_file_id"`
	Resolution     string     `json:"resolution"`
	Status         string     `json:"status"`
	Progress       float64    `json:"progress"`
	OutputPath     string     `json:"output_path,omitempty"`
	FileSize       *int64     `json:"file_size,omitempty"`
	ErrorMessage   string     `json:"error,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toJobResponse(job *domain.TranscodeJob) jobResponse {
	resp := jobResponse{
		ID:           job.ID,
		MediaFileID:  job.MediaFileID,
		Resolution:   string(job.Resolution),
		Status:       string(job.Status),
		Progress:     job.Progress,
		OutputPath:   job.OutputPath,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
	}
	if job.FileSize.Valid {
		resp.FileSize = &job.FileSize.Int64
	}
	if job.StartedAt.Valid {
		resp.StartedAt = &job.StartedAt.Time
	}
	if job.CompletedAt.Valid {
		resp.CompletedAt = &job.CompletedAt.Time
	}
	if job.LastAccessedAt.Valid {
		resp.LastAccessedAt = &job.LastAccessedAt.Time
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "transcode already in progress"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		logger.Error.Printf("request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// RequestTranscode handles POST /api/transcodes.
func (h *Handlers) RequestTranscode() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transcodeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.MediaFileID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "media_file_id is required"})
			return
		}

		result, err := h.svc.RequestTranscode(r.Context(), req.MediaFileID, domain.Resolution(req.Resolution), req.InputPath)
		if err != nil {
			writeError(w, err)
			return
		}

		outcome := "started"
		if result.Cached {
			outcome = "cached"
		} else if result.Queued {
			outcome = "queued"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"outcome": outcome,
			"job":     toJobResponse(result.Job),
		})
	}
}

// JobStatus handles GET /api/transcodes/{media_file_id}/{resolution}.
func (h *Handlers) JobStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := h.svc.Status(r.Context(), r.PathValue("media_file_id"), domain.Resolution(r.PathValue("resolution")))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"job":   toJobResponse(view.Job),
			"state": view.State,
		})
	}
}

// CancelJob handles DELETE /api/transcodes/{media_file_id}/{resolution}.
func (h *Handlers) CancelJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h.svc.Cancel(r.Context(), r.PathValue("media_file_id"), domain.Resolution(r.PathValue("resolution")))
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListJobs handles GET /api/transcodes: every persisted row plus the live
// scheduler snapshot.
func (h *Handlers) ListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := h.svc.ListJobs(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		snap, err := h.svc.ListActive()
		if err != nil {
			writeError(w, err)
			return
		}

		responses := make([]jobResponse, 0, len(jobs))
		for _, job := range jobs {
			responses = append(responses, toJobResponse(job))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"jobs":      responses,
			"scheduler": snap,
		})
	}
}

// Health handles GET /healthz.
func (h *Handlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
