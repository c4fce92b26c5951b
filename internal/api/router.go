// Package api exposes the processing pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/auth"
	"github.com/sells-group/leadflow/internal/metrics"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/pipeline"
)

// Runner executes one processing run for a user.
type Runner interface {
	Run(ctx context.Context, userID string, opts model.RunOptions) (*model.RunResult, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the HTTP handlers' dependencies.
type Server struct {
	runner   Runner
	verifier *auth.Verifier
	pinger   Pinger
	origins  []string
}

// NewServer creates a Server. pinger may be nil.
func NewServer(runner Runner, verifier *auth.Verifier, pinger Pinger, allowedOrigins []string) *Server {
	return &Server{runner: runner, verifier: verifier, pinger: pinger, origins: allowedOrigins}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.verifier.Middleware)
		r.Post("/process", s.handleProcess)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			zap.L().Warn("api: health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type processResponse struct {
	Success  bool            `json:"success"`
	Stats    model.RunStats  `json:"stats"`
	Previews []model.Preview `json:"previews,omitempty"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var opts model.RunOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if opts.StartRow != nil && opts.EndRow != nil && *opts.StartRow > *opts.EndRow {
		writeError(w, http.StatusBadRequest, "startRow must not be greater than endRow")
		return
	}

	userID := auth.UserID(r.Context())
	log := zap.L().With(
		zap.String("user_id", userID),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)

	// A batch runs to completion even if the caller disconnects.
	res, err := s.runner.Run(context.WithoutCancel(r.Context()), userID, opts)
	if err != nil {
		status, msg := errorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error("api: process failed", zap.Error(err))
		} else {
			log.Info("api: process rejected", zap.Int("status", status), zap.Error(err))
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, processResponse{Success: true, Stats: res.Stats, Previews: res.Previews})
}

// errorStatus maps run errors to an HTTP status and client message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrUnauthenticated):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, pipeline.ErrSettingsMissing):
		return http.StatusNotFound, "Settings not found"
	case errors.Is(err, pipeline.ErrSheetsNotConfigured):
		return http.StatusBadRequest, "Sheet IDs not configured"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}
