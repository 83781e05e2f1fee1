// Package api exposes run lifecycle control over HTTP.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ratewatch/marathon/internal/config"
	"github.com/ratewatch/marathon/internal/harness"
)

const maxRequestBody = 1 << 20

// Server wires the run manager to the HTTP surface.
type Server struct {
	logger   *zap.Logger
	manager  *harness.Manager
	registry *prometheus.Registry
	baseCtx  context.Context
}

// NewServer creates the HTTP layer. baseCtx bounds the lifetime of
// runs launched over the API; cancelling it stops them.
func NewServer(baseCtx context.Context, manager *harness.Manager, registry *prometheus.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		logger:   logger,
		manager:  manager,
		registry: registry,
		baseCtx:  baseCtx,
	}
}

// Router builds the API routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/runs", func(r chi.Router) {
		r.Post("/", s.handleCreateRun)
		r.Get("/", s.handleListRuns)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetRun)
			r.Post("/pause", s.handlePauseRun)
			r.Post("/resume", s.handleResumeRun)
			r.Post("/stop", s.handleStopRun)
			r.Get("/export", s.handleExportRun)
			r.Get("/report", s.handleReportRun)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if errs := validateCreateRequest(body); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid run request",
			"details": errs,
		})
		return
	}

	var req createRunRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON")
		return
	}

	cfg, err := req.apply(config.Default(req.Name))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := s.manager.Launch(s.baseCtx, cfg, harness.Options{Seed: req.Seed})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info("run launched over api",
		zap.String("run_id", run.ID), zap.String("name", cfg.Name))
	writeJSON(w, http.StatusCreated, runStatus(run))
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.manager.List()
	out := make([]map[string]interface{}, 0, len(runs))
	for _, run := range runs {
		out = append(out, runStatus(run))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": out})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	status := runStatus(run)
	status["snapshot"] = run.Snapshot()
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handlePauseRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := run.Pause(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runStatus(run))
}

func (s *Server) handleResumeRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := run.Resume(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runStatus(run))
}

func (s *Server) handleStopRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	run.Stop()
	run.Wait()
	writeJSON(w, http.StatusOK, runStatus(run))
}

// handleExportRun streams the full run result, gzip-compressed when
// the client accepts it. Exports of multi-day runs reach tens of
// megabytes uncompressed.
func (s *Server) handleExportRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	result := run.Result()

	w.Header().Set("Content-Type", "application/json")
	if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		if err := json.NewEncoder(gz).Encode(result); err != nil {
			s.logger.Error("export encode", zap.Error(err))
		}
		return
	}
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Error("export encode", zap.Error(err))
	}
}

func (s *Server) handleReportRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	result := run.Result()
	if result.Report == nil {
		writeError(w, http.StatusConflict, "run has not finished")
		return
	}
	writeJSON(w, http.StatusOK, result.Report)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*harness.Run, bool) {
	run, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return run, true
}

func runStatus(run *harness.Run) map[string]interface{} {
	snap := run.Snapshot()
	return map[string]interface{}{
		"id":              run.ID,
		"state":           run.State(),
		"total_requests":  snap.TotalRequests,
		"error_rate":      snap.ErrorRate,
		"stability_score": snap.StabilityScore,
		"active_alerts":   snap.ActiveAlerts,
		"elapsed":         snap.Elapsed.Round(time.Second).String(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
