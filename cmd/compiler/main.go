// Command compiler builds the multi-period case table and publishes it to the
// configured sinks. With COMPILE_SCHEDULE set it keeps running and recompiles
// on that schedule; otherwise it compiles once and exits.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	csvout "github.com/couchcryptid/cocci-climate-etl/internal/adapter/csvout"
	httpadapter "github.com/couchcryptid/cocci-climate-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/cocci-climate-etl/internal/adapter/kafka"
	"github.com/couchcryptid/cocci-climate-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/cocci-climate-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/cocci-climate-etl/internal/cache"
	"github.com/couchcryptid/cocci-climate-etl/internal/config"
	"github.com/couchcryptid/cocci-climate-etl/internal/domain"
	"github.com/couchcryptid/cocci-climate-etl/internal/observability"
	"github.com/couchcryptid/cocci-climate-etl/internal/pipeline"
	"github.com/couchcryptid/cocci-climate-etl/internal/source"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if code := run(ctx, cfg, logger, metrics); code != 0 {
		stop()
		os.Exit(code)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) int {
	settings := cfg.Compile

	tables := cache.New[string, domain.Table](cfg.TableCacheSize)
	loader := source.NewLoader(tables, settings.Cases.Comma(), func(hit bool) {
		if hit {
			metrics.TableCache.WithLabelValues("hit").Inc()
			return
		}
		metrics.TableCache.WithLabelValues("miss").Inc()
	})

	// Geocoding is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, cfg.MapboxRateInterval, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	sinks, readiness, closers, err := buildSinks(ctx, cfg, logger)
	defer func() {
		for _, c := range closers {
			if err := c.close(); err != nil {
				logger.Error("sink close error", "sink", c.name, "error", err)
			}
		}
	}()
	if err != nil {
		logger.Error("failed to open sinks", "error", err)
		return 1
	}

	compiler := pipeline.NewCompiler(loader, pipeline.CompilerConfig{
		Naming: source.Naming{
			Dir:      cfg.DataDir,
			Prefix:   settings.Cases.Prefix,
			Suffix:   settings.Cases.Suffix,
			Variants: settings.Cases.Variants,
		},
		Periods:      settings.Periods.Periods(),
		EntityColumn: settings.Cases.EntityColumn,
		PeriodColumn: settings.Cases.PeriodColumn,
		Detector:     settings.Detector,
		Threshold:    settings.Threshold,
	}, logger, metrics)

	registry := source.Registry{
		Path:      cfg.StationsPath(),
		Layout:    settings.StationLayout,
		Directory: domain.DefaultRegionDirectory(),
	}

	p := pipeline.New(compiler, registry, loader, geocoder, sinks, pipeline.Options{
		Regions: settings.Regions,
		Climate: pipeline.ClimateConfig{
			Paths:         settings.ClimatePaths(cfg.DataDir),
			StationColumn: settings.Climate.StationColumn,
			PeriodColumn:  settings.Climate.PeriodColumn,
			ValueColumn:   settings.Climate.ValueColumn,
		},
	}, logger, metrics)

	if cfg.CompileSchedule == "" {
		if _, err := p.Run(ctx); err != nil {
			logger.Error("compilation failed", "error", err)
			return 1
		}
		hits, misses := tables.Stats()
		logger.Debug("table cache", "entries", tables.Len(), "hits", hits, "misses", misses)
		return 0
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, append(httpadapter.AllReady{p}, readiness...), p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Compile once at startup, then on schedule.
	if _, err := p.Run(ctx); err != nil {
		logger.Error("initial compilation failed", "error", err)
	}

	scheduler := pipeline.NewScheduler(p, logger)
	if err := scheduler.Start(ctx, cfg.CompileSchedule); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		return 1
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("compilation still running at shutdown deadline")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return 0
}

type closer struct {
	name  string
	close func() error
}

// buildSinks opens every configured sink. Closers for sinks opened before a
// failure are still returned.
func buildSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]pipeline.Sink, httpadapter.AllReady, []closer, error) {
	var (
		sinks     []pipeline.Sink
		readiness httpadapter.AllReady
		closers   []closer
	)

	if cfg.OutputCSV != "" {
		sinks = append(sinks, csvout.NewWriter(cfg.OutputCSV, logger))
		logger.Info("csv sink enabled", "path", cfg.OutputCSV)
	}

	if cfg.SinkDBDriver != "" {
		store, err := sqlstore.Open(ctx, cfg.SinkDBDriver, cfg.SinkDBDSN, logger)
		if err != nil {
			return nil, nil, closers, err
		}
		sinks = append(sinks, store)
		readiness = append(readiness, store)
		closers = append(closers, closer{name: store.Name(), close: store.Close})
		logger.Info("sql sink enabled", "driver", cfg.SinkDBDriver)
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, writer)
		closers = append(closers, closer{name: writer.Name(), close: writer.Close})
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}

	return sinks, readiness, closers, nil
}
