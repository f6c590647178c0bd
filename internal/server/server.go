// Package server exposes the scenario analysis engine over a small JSON
// API: KPI calculation, grid-search optimization, Monte Carlo simulation,
// and single-parameter sensitivity sweeps.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mlavoie/rentwise/internal/kpi"
	"github.com/mlavoie/rentwise/internal/montecarlo"
	"github.com/mlavoie/rentwise/internal/optimizer"
	"github.com/mlavoie/rentwise/internal/params"
	"github.com/mlavoie/rentwise/pkg/constants"
	"go.uber.org/zap"
)

type handler struct {
	logger      *zap.Logger
	maxBodySize int64
}

// NewRouter constructs the HTTP handler serving the analysis API.
func NewRouter(logger *zap.Logger, maxBodySize int64) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBodySize <= 0 {
		maxBodySize = constants.DefaultMaxBodySizeBytes
	}

	h := &handler{logger: logger, maxBodySize: maxBodySize}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/api/health", h.handleHealth)
	r.Post("/api/kpis", h.handleCalculate)
	r.Post("/api/optimize", h.handleOptimize)
	r.Post("/api/montecarlo", h.handleMonteCarlo)
	r.Post("/api/sweep", h.handleSweep)

	return r
}

type calculateRequest struct {
	Parameters params.ParameterTree `json:"parameters"`
}

type optimizeRequest struct {
	Parameters params.ParameterTree `json:"parameters"`
	Config     optimizer.Config     `json:"config"`
}

type monteCarloRequest struct {
	Parameters params.ParameterTree `json:"parameters"`
	Config     montecarlo.Config    `json:"config"`
}

type sweepRequest struct {
	Parameters params.ParameterTree `json:"parameters"`
	Path       string               `json:"path"`
	Values     []float64            `json:"values"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req calculateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Parameters.Validate(); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	result := kpi.Calculate(&req.Parameters)
	h.logger.Info("calculated KPIs",
		zap.String("op", "server.handleCalculate"),
		zap.Duration("duration", time.Since(start)),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handler) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Parameters.Validate(); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	result, err := optimizer.Optimize(h.logger, &req.Parameters, req.Config)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handler) handleMonteCarlo(w http.ResponseWriter, r *http.Request) {
	var req monteCarloRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Parameters.Validate(); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	result, err := montecarlo.Run(h.logger, &req.Parameters, req.Config)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Parameters.Validate(); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if len(req.Values) == 0 {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("sweep requires at least one value"))
		return
	}

	points, err := kpi.Sweep(&req.Parameters, req.Path, req.Values)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"path":   req.Path,
		"points": points,
	})
}

// decode reads a size-capped JSON body into dst, answering the request
// itself on failure.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, h.maxBodySize)
	defer func() { _ = body.Close() }()

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", h.maxBodySize))
			return false
		}
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	if decoder.More() {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("request body must contain a single JSON object"))
		return false
	}
	_, _ = io.Copy(io.Discard, body)
	return true
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("failed to encode response",
			zap.String("op", "server.writeJSON"),
			zap.Error(err),
		)
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, err error) {
	h.logger.Warn("request failed",
		zap.String("op", "server.writeError"),
		zap.Int("status", status),
		zap.Error(err),
	)
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}
