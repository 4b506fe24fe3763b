//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/cocci-climate-etl/internal/adapter/kafka"
	"github.com/couchcryptid/cocci-climate-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/cocci-climate-etl/internal/cache"
	"github.com/couchcryptid/cocci-climate-etl/internal/config"
	"github.com/couchcryptid/cocci-climate-etl/internal/domain"
	"github.com/couchcryptid/cocci-climate-etl/internal/observability"
	"github.com/couchcryptid/cocci-climate-etl/internal/pipeline"
	"github.com/couchcryptid/cocci-climate-etl/internal/source"
)

const testSinkTopic = "test-compiled"

// compiledMessage holds a deserialized message read from the sink topic.
type compiledMessage struct {
	RunID   string   `json:"run_id"`
	Entity  string   `json:"entity"`
	Period  *int     `json:"period"`
	Value   *float64 `json:"value"`
	Key     string   `json:"-"`
	Headers map[string]string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("cocci-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	}))
}

func readCompiled(ctx context.Context, t *testing.T, consumer *kafkago.Reader) compiledMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	var cm compiledMessage
	require.NoError(t, json.Unmarshal(msg.Value, &cm), "unmarshal sink message")
	cm.Key = string(msg.Key)
	cm.Headers = make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		cm.Headers[h.Key] = string(h.Value)
	}
	return cm
}

// writeCaseFiles lays out two dual-source files for 2020 and one for 2021.
func writeCaseFiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"cases_2020_a.csv": "State,Year,Cum 2020\nArizona,2020,50\nNevada,2020,10\nPacific,2020,30\n",
		"cases_2020_b.csv": "State,Year,Cum 2020\nArizona,2020,52\nUtah,2020,4\n",
		"cases_2021.csv":   "State,Year,CUM\nArizona,2021,60\nOregon,2021,8\nPacific,2021,20\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

// TestPipelineEndToEnd compiles real files and publishes the table to Kafka
// and SQLite.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:   []string{broker},
		KafkaSinkTopic: testSinkTopic,
		KafkaBatchSize: 50,
	}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	store, err := sqlstore.Open(ctx, config.DriverSQLite, filepath.Join(t.TempDir(), "compiled.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	metrics := observability.NewMetricsForTesting()
	loader := source.NewLoader(cache.New[string, domain.Table](8), ',', nil)
	compiler := pipeline.NewCompiler(loader, pipeline.CompilerConfig{
		Naming: source.Naming{
			Dir:      writeCaseFiles(t),
			Prefix:   "cases_",
			Suffix:   ".csv",
			Variants: map[int][]string{2020: {"_a", "_b"}},
		},
		Periods:      []int{2020, 2021},
		EntityColumn: "State",
		PeriodColumn: "Year",
		Detector:     domain.Detector{Marker: "cum"},
		Threshold:    0.1,
	}, discardLogger(), metrics)

	p := pipeline.New(compiler, nil, loader, nil, []pipeline.Sink{writer, store}, pipeline.Options{
		Regions: domain.RegionMap{"Pacific": {"Oregon", "Washington"}},
	}, discardLogger(), metrics)

	result, err := p.Run(ctx)
	require.NoError(t, err)

	expected := map[string]float64{
		"Arizona|2020":    51,
		"Nevada|2020":     10,
		"Utah|2020":       4,
		"Oregon|2020":     15,
		"Washington|2020": 15,
		"Arizona|2021":    60,
		"Oregon|2021":     8,
		"Washington|2021": 12,
	}
	require.Len(t, result.Rows, len(expected))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := make(map[string]float64, len(expected))
	for len(received) < len(expected) {
		cm := readCompiled(ctx, t, consumer)
		require.NotNil(t, cm.Value, cm.Key)
		received[cm.Key] = *cm.Value

		assert.Equal(t, result.RunID, cm.RunID)
		assert.Equal(t, result.RunID, cm.Headers["run_id"])
		_, err := time.Parse(time.RFC3339, cm.Headers["compiled_at"])
		assert.NoError(t, err, "compiled_at should be valid RFC3339")
	}
	for key, want := range expected {
		assert.InDelta(t, want, received[key], 1e-9, key)
	}

	stored, err := store.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, stored, len(expected))
	for _, r := range stored {
		assert.NotEqual(t, "Pacific", r.Entity, "region rows must not be stored")
		assert.InDelta(t, expected[r.Key().String()], *r.Value, 1e-9)
	}
}
