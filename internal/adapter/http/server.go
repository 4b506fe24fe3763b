package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/cocci-climate-etl/internal/adapter/csvout"
	"github.com/couchcryptid/cocci-climate-etl/internal/domain"
)

// ResultSource provides the most recent compiled result.
type ResultSource interface {
	Latest() (domain.Result, bool)
}

// Server exposes health, readiness, metrics, and the compiled table.
type Server struct {
	httpServer *http.Server
	results    ResultSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and the
// /compiled routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, results ResultSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		results: results,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /compiled", s.handleCompiled)
	mux.HandleFunc("GET /compiled.csv", s.handleCompiledCSV)
	mux.HandleFunc("GET /compiled/report", s.handleReport)
	mux.HandleFunc("GET /compiled/analysis", s.handleAnalysis)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type compiledResponse struct {
	RunID      string                  `json:"run_id"`
	CompiledAt time.Time               `json:"compiled_at"`
	Rows       []domain.ObservationRow `json:"rows"`
	Summaries  []domain.PeriodSummary  `json:"summaries"`
	Backfill   domain.BackfillStats    `json:"backfill"`
}

// handleCompiled returns the compiled table, optionally narrowed with ?period=.
func (s *Server) handleCompiled(w http.ResponseWriter, r *http.Request) {
	result, ok := s.latest(w)
	if !ok {
		return
	}
	rows, err := filterPeriod(result.Rows, r.URL.Query().Get("period"))
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, compiledResponse{
		RunID:      result.RunID,
		CompiledAt: result.CompiledAt,
		Rows:       rows,
		Summaries:  result.Summaries,
		Backfill:   result.Backfill,
	})
}

func (s *Server) handleCompiledCSV(w http.ResponseWriter, r *http.Request) {
	result, ok := s.latest(w)
	if !ok {
		return
	}
	rows, err := filterPeriod(result.Rows, r.URL.Query().Get("period"))
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	if err := csvout.WriteRows(w, rows); err != nil {
		s.logger.Warn("compiled csv response interrupted", "error", err)
	}
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	result, ok := s.latest(w)
	if !ok {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"run_id":   result.RunID,
		"report":   result.Report,
		"stations": result.Stations,
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, _ *http.Request) {
	result, ok := s.latest(w)
	if !ok {
		return
	}
	analysis := result.Analysis
	if analysis == nil {
		analysis = []domain.AnalysisRow{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"run_id":   result.RunID,
		"analysis": analysis,
	})
}

// latest writes 503 and returns false when nothing has been compiled yet.
func (s *Server) latest(w http.ResponseWriter) (domain.Result, bool) {
	result, ok := s.results.Latest()
	if !ok {
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no compilation has completed yet",
		})
	}
	return result, ok
}

func filterPeriod(rows []domain.ObservationRow, raw string) ([]domain.ObservationRow, error) {
	if raw == "" {
		return rows, nil
	}
	period, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.New("period must be an integer")
	}
	out := make([]domain.ObservationRow, 0)
	for _, r := range rows {
		if r.Period != nil && *r.Period == period {
			out = append(out, r)
		}
	}
	return out, nil
}

// AllReady reports ready only when every checker does.
type AllReady []sharedobs.ReadinessChecker

func (a AllReady) CheckReadiness(ctx context.Context) error {
	for _, c := range a {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
