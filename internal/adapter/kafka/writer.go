package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/cocci-climate-etl/internal/config"
	"github.com/couchcryptid/cocci-climate-etl/internal/domain"
)

const (
	maxAttempts    = 3
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

// messageWriter is the subset of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes every compiled row to a Kafka topic.
// It implements pipeline.Sink.
type Writer struct {
	writer    messageWriter
	batchSize int
	logger    *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.KafkaBatchSize,
	}
	return &Writer{writer: w, batchSize: cfg.KafkaBatchSize, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// Write publishes the rows of result in batches. The message key is
// "entity|period" so one key always lands on the same partition.
func (w *Writer) Write(ctx context.Context, result domain.Result) error {
	if len(result.Rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(result.Rows))
	for i, row := range result.Rows {
		msg, err := serializeToMessage(result, row)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	size := w.batchSize
	if size <= 0 {
		size = len(msgs)
	}
	for start := 0; start < len(msgs); start += size {
		end := min(start+size, len(msgs))
		if err := w.writeWithRetry(ctx, msgs[start:end]); err != nil {
			return err
		}
	}
	w.logger.Info("published compiled rows", "run_id", result.RunID, "messages", len(msgs))
	return nil
}

func (w *Writer) writeWithRetry(ctx context.Context, msgs []kafkago.Message) error {
	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = w.writer.WriteMessages(ctx, msgs...); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		w.logger.Warn("kafka write failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	return fmt.Errorf("write %d messages: %w", len(msgs), err)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// compiledRow is the message payload.
type compiledRow struct {
	RunID      string    `json:"run_id"`
	Entity     string    `json:"entity"`
	Period     *int      `json:"period"`
	Value      *float64  `json:"value"`
	CompiledAt time.Time `json:"compiled_at"`
}

// serializeToMessage marshals one compiled row into a Kafka message.
func serializeToMessage(result domain.Result, row domain.ObservationRow) (kafkago.Message, error) {
	data, err := json.Marshal(compiledRow{
		RunID:      result.RunID,
		Entity:     row.Entity,
		Period:     row.Period,
		Value:      row.Value,
		CompiledAt: result.CompiledAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize compiled row: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(row.Key().String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(result.RunID)},
			{Key: "compiled_at", Value: []byte(result.CompiledAt.Format(time.RFC3339))},
		},
	}, nil
}
