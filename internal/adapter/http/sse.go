package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mydia/mydia/internal/domain"
	"github.com/mydia/mydia/internal/service"
)

type SSEHandler struct {
	svc TranscodeService
}

func NewSSEHandler(svc TranscodeService) *SSEHandler {
	return &SSEHandler{svc: svc}
}

// sseWrite writes an SSE event, handling multi-line data correctly.
func sseWrite(w http.ResponseWriter, eventName string, data string) {
	_, _ = fmt.Fprintf(w, "event: %s\n", eventName)
	for _, line := range strings.Split(data, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// sendKeepAlive writes an SSE comment to keep the connection active.
func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func sendEvent(w http.ResponseWriter, event service.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	sseWrite(w, event.Type, string(data))
}

func terminal(status string) bool {
	return status == string(domain.JobStatusReady) || status == string(domain.JobStatusFailed)
}

// Events handles GET /api/events/{media_file_id}/{resolution}, streaming
// job progress and status changes for one key.
func (h *SSEHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaFileID := r.PathValue("media_file_id")
		resolution := domain.Resolution(r.PathValue("resolution"))

		view, err := h.svc.Status(r.Context(), mediaFileID, resolution)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		// Send current state so clients do not miss events that happened
		// before they connected.
		sendEvent(w, service.Event{
			Type:     "status",
			Status:   string(view.Job.Status),
			Progress: view.Job.Progress,
			Message:  view.Job.ErrorMessage,
		})

		// Terminal jobs produce no further events; hold the connection
		// open until the client closes it.
		if terminal(string(view.Job.Status)) {
			<-r.Context().Done()
			return
		}

		key := domain.JobKey{MediaFileID: mediaFileID, Resolution: resolution}
		ch := h.svc.Subscribe(key)
		defer h.svc.Unsubscribe(key, ch)

		ctx := r.Context()
		keepAlive := time.NewTicker(15 * time.Second)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
			case event, ok := <-ch:
				if !ok {
					return
				}
				sendEvent(w, event)
				if terminal(event.Status) {
					<-ctx.Done()
					return
				}
			}
		}
	}
}
