package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/robfig/cron/v3"
)

// Sink database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Config holds all service settings, populated from environment variables and
// the compile settings file.
type Config struct {
	ConfigFile      string
	DataDir         string
	StationsFile    string
	OutputCSV       string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	CompileSchedule string
	TableCacheSize  int

	// Optional sinks. Empty brokers or driver disables the sink.
	KafkaBrokers   []string
	KafkaSinkTopic string
	KafkaBatchSize int
	SinkDBDriver   string
	SinkDBDSN      string

	// Mapbox geocoding configuration.
	MapboxToken        string
	MapboxEnabled      bool
	MapboxTimeout      time.Duration
	MapboxCacheSize    int
	MapboxRateInterval time.Duration

	Compile CompileSettings
}

// Load reads configuration from environment variables, applying defaults where
// unset, then reads the compile settings file named by CONFIG_FILE.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	rateInterval, err := time.ParseDuration(sharedcfg.EnvOrDefault("MAPBOX_RATE_INTERVAL", "1s"))
	if err != nil || rateInterval < 0 {
		return nil, errors.New("invalid MAPBOX_RATE_INTERVAL")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	tableCacheSize, err := parsePositiveInt("TABLE_CACHE_SIZE", 64)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		ConfigFile:      sharedcfg.EnvOrDefault("CONFIG_FILE", "compiler.yaml"),
		DataDir:         sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		StationsFile:    sharedcfg.EnvOrDefault("STATIONS_FILE", "ghcnd-stations.txt"),
		OutputCSV:       os.Getenv("OUTPUT_CSV"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		CompileSchedule: os.Getenv("COMPILE_SCHEDULE"),
		TableCacheSize:  tableCacheSize,

		KafkaBrokers:   sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "compiled-case-counts"),
		KafkaBatchSize: batchSize,
		SinkDBDriver:   os.Getenv("SINK_DB_DRIVER"),
		SinkDBDSN:      os.Getenv("SINK_DB_DSN"),

		MapboxToken:        mapboxToken,
		MapboxEnabled:      mapboxEnabled,
		MapboxTimeout:      mapboxTimeout,
		MapboxCacheSize:    parseMapboxCacheSize(),
		MapboxRateInterval: rateInterval,
	}

	if cfg.CompileSchedule != "" {
		if _, err := cron.ParseStandard(cfg.CompileSchedule); err != nil {
			return nil, fmt.Errorf("invalid COMPILE_SCHEDULE: %w", err)
		}
	}
	switch cfg.SinkDBDriver {
	case "":
	case DriverSQLite, DriverPostgres:
		if cfg.SinkDBDSN == "" {
			return nil, errors.New("SINK_DB_DRIVER is set but SINK_DB_DSN is not")
		}
	default:
		return nil, fmt.Errorf("invalid SINK_DB_DRIVER %q: must be %s or %s", cfg.SinkDBDriver, DriverSQLite, DriverPostgres)
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	_, explicit := os.LookupEnv("CONFIG_FILE")
	settings, err := LoadCompileSettings(cfg.ConfigFile, !explicit)
	if err != nil {
		return nil, err
	}
	cfg.Compile = settings

	return cfg, nil
}

// StationsPath returns the station registry location. Relative names resolve
// against DataDir.
func (c *Config) StationsPath() string {
	return resolve(c.DataDir, c.StationsFile)
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
