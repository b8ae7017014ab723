package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	video_relay "github.com/alanbriolat/video-relay"
	"github.com/alanbriolat/video-relay/internal/pipeline"
)

// Server exposes the relay pipeline over a small JSON API, as a second frontend besides the
// chat bot.
type Server struct {
	controller *pipeline.Controller
	log        *zap.SugaredLogger
}

func NewServer(controller *pipeline.Controller) *Server {
	return &Server{
		controller: controller,
		log:        zap.S().Named("httpapi"),
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Minute))

	r.Get("/healthz", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/jobs", s.submitJob)
		r.Get("/queue", s.queueStatus)
	})
	return r
}

// SubmitRequest is the JSON body for job submission.
type SubmitRequest struct {
	// Reference is the video reference to relay, e.g. a page URL.
	Reference string `json:"reference"`
	// Recipient optionally routes the job's status notifications.
	Recipient string `json:"recipient,omitempty"`
}

// SubmitResponse acknowledges a queued job.
type SubmitResponse struct {
	JobID string `json:"job_id"`
	State string `json:"state"`
}

// QueueResponse is a point-in-time view of the pipeline.
type QueueResponse struct {
	Depth  int  `json:"depth"`
	Active bool `json:"active"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reference == "" {
		s.writeError(w, http.StatusBadRequest, "reference is required")
		return
	}
	job, err := s.controller.Submit(req.Reference, req.Recipient)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// The job is owned by the queue as soon as Submit returns, so only its immutable ID is
	// safe to read here.
	s.writeJSON(w, http.StatusAccepted, SubmitResponse{
		JobID: string(job.ID),
		State: string(video_relay.JobStateQueued),
	})
}

func (s *Server) queueStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, QueueResponse{
		Depth:  s.controller.Depth(),
		Active: s.controller.Active(),
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warnf("failed to write response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Infow("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
