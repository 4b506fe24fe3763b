package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/cocci-climate-etl/internal/domain"
	"github.com/couchcryptid/cocci-climate-etl/internal/observability"
	"github.com/couchcryptid/cocci-climate-etl/internal/source"
)

// SourceLoader reads one raw tabular source.
type SourceLoader interface {
	Load(ctx context.Context, path string) (domain.Table, error)
}

// CompilerConfig selects and reduces the per-period case files.
type CompilerConfig struct {
	Naming       source.Naming
	Periods      []int
	EntityColumn string
	PeriodColumn string
	Detector     domain.Detector
	Threshold    float64
}

// Compiler builds the multi-period case table.
type Compiler struct {
	loader  SourceLoader
	cfg     CompilerConfig
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCompiler creates a Compiler reading through loader.
func NewCompiler(loader SourceLoader, cfg CompilerConfig, logger *slog.Logger, metrics *observability.Metrics) *Compiler {
	return &Compiler{loader: loader, cfg: cfg, logger: logger, metrics: metrics}
}

// Compile walks the configured periods in order. Unreadable and malformed
// files are skipped and recorded in the report; a period with no usable file
// contributes no rows. Only context cancellation returns an error.
func (c *Compiler) Compile(ctx context.Context) ([]domain.ObservationRow, domain.CompileReport, error) {
	var rows []domain.ObservationRow
	var report domain.CompileReport

	for _, period := range c.cfg.Periods {
		periodRows, pr, err := c.compilePeriod(ctx, period)
		if err != nil {
			return nil, report, err
		}
		report.Periods = append(report.Periods, pr)
		rows = append(rows, periodRows...)
	}
	return rows, report, nil
}

func (c *Compiler) compilePeriod(ctx context.Context, period int) ([]domain.ObservationRow, domain.PeriodReport, error) {
	pr := domain.PeriodReport{Period: period}
	var usable [][]domain.ObservationRow

	for _, path := range c.cfg.Naming.Paths(period) {
		if err := ctx.Err(); err != nil {
			return nil, pr, err
		}

		agg, sr, err := c.loadSource(ctx, path, period)
		if err != nil {
			return nil, pr, err
		}
		pr.Sources = append(pr.Sources, sr)
		c.metrics.SourceFiles.WithLabelValues(sr.Status).Inc()
		if sr.Status == domain.SourceLoaded {
			usable = append(usable, agg.Rows)
		}
	}

	switch len(usable) {
	case 0:
		c.logger.Warn("no usable sources for period, skipping", "period", period)
		return nil, pr, nil
	case 1:
		pr.Rows = len(usable[0])
		return usable[0], pr, nil
	}

	merged := usable[0]
	var stats domain.ReconcileStats
	for _, next := range usable[1:] {
		var s domain.ReconcileStats
		merged, s = domain.Reconcile(merged, next, c.cfg.Threshold)
		stats.Add(s)
	}
	c.recordReconcile(stats)
	c.logger.Info("reconciled period",
		"period", period,
		"sources", len(usable),
		"averaged", stats.Averaged,
		"minimum", stats.Minimum,
	)

	pr.Rows = len(merged)
	return merged, pr, nil
}

// loadSource reads and aggregates one file. The returned error is non-nil only
// when the context was cancelled; every other failure is folded into the report.
func (c *Compiler) loadSource(ctx context.Context, path string, period int) (domain.Aggregation, domain.SourceReport, error) {
	sr := domain.SourceReport{Path: path}

	table, err := c.loader.Load(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Aggregation{}, sr, ctxErr
		}
		if domain.IsFileAccess(err) {
			sr.Status = domain.SourceMissing
			c.logger.Warn("source file unavailable, skipping", "path", path, "period", period, "error", err)
		} else {
			sr.Status = domain.SourceSchemaError
			c.logger.Warn("source file unreadable, skipping", "path", path, "period", period, "error", err)
		}
		sr.Error = err.Error()
		return domain.Aggregation{}, sr, nil
	}

	agg, err := domain.Aggregate(table, domain.AggregateOptions{
		EntityColumn: c.cfg.EntityColumn,
		PeriodColumn: c.cfg.PeriodColumn,
		TargetPeriod: &period,
		Detector:     c.cfg.Detector,
	})
	if err != nil {
		sr.Status = domain.SourceSchemaError
		sr.Error = err.Error()
		c.logger.Warn("source schema rejected, skipping", "path", path, "period", period, "error", err)
		return domain.Aggregation{}, sr, nil
	}

	sr.Status = domain.SourceLoaded
	sr.Column = agg.Column
	sr.Rows = len(agg.Rows)
	return agg, sr, nil
}

func (c *Compiler) recordReconcile(s domain.ReconcileStats) {
	c.metrics.ReconcileOutcomes.WithLabelValues("averaged").Add(float64(s.Averaged))
	c.metrics.ReconcileOutcomes.WithLabelValues("minimum").Add(float64(s.Minimum))
	c.metrics.ReconcileOutcomes.WithLabelValues("single").Add(float64(s.Single))
	c.metrics.ReconcileOutcomes.WithLabelValues("empty").Add(float64(s.Empty))
}
