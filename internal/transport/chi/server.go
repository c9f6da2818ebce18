// Package chi exposes the capture session and the mind map over HTTP and websocket.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/voxmap/internal/domain"
	"github.com/kailas-cloud/voxmap/internal/logger"
	healthuc "github.com/kailas-cloud/voxmap/internal/usecase/health"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	session       SessionController
	graph         GraphService
	insights      InsightReader
	health        HealthChecker
	subscriber    Subscriber
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. insights and subscriber may be nil.
func NewServer(
	session SessionController,
	graph GraphService,
	insights InsightReader,
	health HealthChecker,
	subscriber Subscriber,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		session:    session,
		graph:      graph,
		insights:   insights,
		health:     health,
		subscriber: subscriber,
		logger:     logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrMapNotFound, http.StatusNotFound, CodeMapNotFound),
		sentinelHandler(domain.ErrNodeNotFound, http.StatusNotFound, CodeNodeNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidLabel, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrSessionActive, http.StatusConflict, CodeSessionActive),
		sentinelHandler(domain.ErrNoActiveSession, http.StatusConflict, CodeNoActiveSession),
		sentinelHandler(domain.ErrInvalidTransition, http.StatusConflict, CodeInvalidTransition),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
	}
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Post("/prompt", s.PromptForTopic)
			r.Post("/start", s.StartSession)
			r.Post("/fragments", s.PushFragment)
			r.Post("/stop", s.StopSession)
			r.Get("/ws", s.SessionSocket)
		})
		r.Route("/maps/{mapID}", func(r chi.Router) {
			r.Get("/", s.GetMap)
			r.Get("/nodes", s.ListNodes)
			r.Get("/edges", s.ListEdges)
		})
		r.Route("/nodes/{nodeID}", func(r chi.Router) {
			r.Get("/", s.GetNode)
			r.Get("/children", s.ListChildren)
			r.Post("/children", s.AddChildren)
			r.Get("/insight", s.GetInsight)
		})
	})
}

// Handler returns a bare router with every route registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Routes(r)
	return r
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrMapNotFound,
		domain.ErrNodeNotFound,
		domain.ErrNotFound,
		domain.ErrInvalidRequest,
		domain.ErrInvalidLabel,
		domain.ErrSessionActive,
		domain.ErrNoActiveSession,
		domain.ErrInvalidTransition,
		domain.ErrRateLimited,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
