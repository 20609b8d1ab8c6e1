package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mydia/mydia/internal/adapter/http/middleware"
)

type Server struct {
	mux         *http.ServeMux
	handlers    *Handlers
	sseHandler  *SSEHandler
	behindProxy bool
}

func NewServer(svc TranscodeService, behindProxy bool) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		handlers:    NewHandlers(svc),
		sseHandler:  NewSSEHandler(svc),
		behindProxy: behindProxy,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/transcodes", s.handlers.RequestTranscode())
	s.mux.HandleFunc("GET /api/transcodes", s.handlers.ListJobs())
	s.mux.HandleFunc("GET /api/transcodes/{media_file_id}/{resolution}", s.handlers.JobStatus())
	s.mux.HandleFunc("DELETE /api/transcodes/{media_file_id}/{resolution}", s.handlers.CancelJob())

	s.mux.HandleFunc("GET /api/events/{media_file_id}/{resolution}", s.sseHandler.Events())

	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /healthz", s.handlers.Health())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	middleware.SecurityHeaders(s.mux, s.behindProxy).ServeHTTP(w, r)
}
