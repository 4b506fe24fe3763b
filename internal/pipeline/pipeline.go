package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/cocci-climate-etl/internal/domain"
	"github.com/couchcryptid/cocci-climate-etl/internal/observability"
)

// StationLoader provides the station registry.
type StationLoader interface {
	LoadStations(ctx context.Context) ([]domain.StationRecord, error)
}

// Sink receives every compiled result.
type Sink interface {
	Name() string
	Write(ctx context.Context, result domain.Result) error
}

// ClimateConfig locates the per-station climate tables joined onto the case
// table. No paths disables the join.
type ClimateConfig struct {
	Paths         []string
	StationColumn string
	PeriodColumn  string
	ValueColumn   string
}

// Options are the run-level settings that sit outside the Compiler.
type Options struct {
	Regions domain.RegionMap
	Climate ClimateConfig
}

// Pipeline runs a full compilation: stations, cases, backfill, climate join,
// and sinks. The latest result is kept for the HTTP surface.
type Pipeline struct {
	compiler *Compiler
	stations StationLoader
	loader   SourceLoader
	geocoder domain.Geocoder
	sinks    []Sink
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics

	latest atomic.Pointer[domain.Result]
}

// New creates a Pipeline. A nil geocoder disables coordinate lookups.
func New(compiler *Compiler, stations StationLoader, loader SourceLoader, geocoder domain.Geocoder, sinks []Sink, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		compiler: compiler,
		stations: stations,
		loader:   loader,
		geocoder: geocoder,
		sinks:    sinks,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a compilation has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.latest.Load() == nil {
		return errors.New("no compilation has completed yet")
	}
	return nil
}

// Latest returns the most recent compiled result.
func (p *Pipeline) Latest() (domain.Result, bool) {
	r := p.latest.Load()
	if r == nil {
		return domain.Result{}, false
	}
	return *r, true
}

// Run executes one compilation. The result is published before the sinks
// run, so a sink failure returns both the result and an error.
func (p *Pipeline) Run(ctx context.Context) (domain.Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	logger.Info("compilation started")

	stations := p.loadStations(ctx, logger)

	rows, report, err := p.compiler.Compile(ctx)
	if err != nil {
		p.metrics.CompileRuns.WithLabelValues("error").Inc()
		return domain.Result{}, fmt.Errorf("compile: %w", err)
	}

	filled, backfill := domain.BackfillRegions(rows, p.opts.Regions)
	p.metrics.BackfilledRows.Add(float64(backfill.Filled))
	p.metrics.MissingRegionTotals.Add(float64(backfill.MissingTotals))
	if backfill.MissingTotals > 0 {
		logger.Debug("region totals missing", "count", backfill.MissingTotals)
	}

	compiled := domain.SortRows(filled)
	result := domain.Result{
		RunID:      runID,
		CompiledAt: domain.Now(),
		Rows:       compiled,
		Summaries:  domain.Summarize(compiled),
		Report:     report,
		Backfill:   backfill,
		Stations:   len(stations),
	}

	analysis, err := p.joinClimate(ctx, compiled, stations, logger)
	if err != nil {
		p.metrics.CompileRuns.WithLabelValues("error").Inc()
		return domain.Result{}, err
	}
	result.Analysis = analysis

	p.latest.Store(&result)
	p.metrics.CompiledRows.Set(float64(len(compiled)))
	p.metrics.CompileDuration.Observe(time.Since(start).Seconds())

	if err := p.writeSinks(ctx, result, logger); err != nil {
		p.metrics.CompileRuns.WithLabelValues("sink_error").Inc()
		return result, err
	}

	p.metrics.CompileRuns.WithLabelValues("success").Inc()
	logger.Info("compilation finished",
		"rows", len(compiled),
		"periods", len(result.Summaries),
		"backfilled", backfill.Filled,
		"duration", time.Since(start),
	)
	return result, nil
}

// loadStations never fails the run: an unreadable registry yields no stations.
func (p *Pipeline) loadStations(ctx context.Context, logger *slog.Logger) []domain.StationRecord {
	if p.stations == nil {
		return nil
	}
	stations, err := p.stations.LoadStations(ctx)
	if err != nil {
		logger.Warn("station registry unavailable, continuing without stations", "error", err)
		p.metrics.StationsLoaded.Set(0)
		return nil
	}
	stations = domain.ResolveRegions(ctx, stations, p.geocoder, logger)
	p.metrics.StationsLoaded.Set(float64(len(stations)))
	return stations
}

func (p *Pipeline) joinClimate(ctx context.Context, cases []domain.ObservationRow, stations []domain.StationRecord, logger *slog.Logger) ([]domain.AnalysisRow, error) {
	cfg := p.opts.Climate
	if len(cfg.Paths) == 0 {
		return nil, nil
	}

	var raw []domain.ObservationRow
	for _, path := range cfg.Paths {
		table, err := p.loader.Load(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("climate file unavailable, skipping", "path", path, "error", err)
			continue
		}
		agg, err := domain.Aggregate(table, domain.AggregateOptions{
			EntityColumn: cfg.StationColumn,
			PeriodColumn: cfg.PeriodColumn,
			ValueColumn:  cfg.ValueColumn,
		})
		if err != nil {
			logger.Warn("climate schema rejected, skipping", "path", path, "error", err)
			continue
		}
		raw = append(raw, agg.Rows...)
	}

	regional := domain.RegionClimate(domain.MergeStations(domain.AggregateRows(raw), stations))
	return domain.JoinClimate(cases, regional), nil
}

// writeSinks delivers result to every sink, continuing past failures.
func (p *Pipeline) writeSinks(ctx context.Context, result domain.Result, logger *slog.Logger) error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.Write(ctx, result); err != nil {
			logger.Error("sink write failed", "sink", s.Name(), "error", err)
			p.metrics.SinkWrites.WithLabelValues(s.Name(), "error").Inc()
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		p.metrics.SinkWrites.WithLabelValues(s.Name(), "success").Inc()
	}
	return errors.Join(errs...)
}
