package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cocci-climate-etl/internal/config"
	"github.com/couchcryptid/cocci-climate-etl/internal/domain"
)

type fakeWriter struct {
	failures int
	batches  [][]kafkago.Message
	calls    int
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("leader not available")
	}
	f.batches = append(f.batches, msgs)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func testResult() domain.Result {
	return domain.Result{
		RunID:      "run-1",
		CompiledAt: time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC),
		Rows: []domain.ObservationRow{
			{Entity: "Arizona", Period: intPtr(2020), Value: floatPtr(51)},
			{Entity: "Nevada", Period: intPtr(2020), Value: nil},
			{Entity: "Utah", Period: intPtr(2021), Value: floatPtr(3)},
		},
	}
}

func testWriter(fw *fakeWriter, batchSize int) *Writer {
	return &Writer{writer: fw, batchSize: batchSize, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestSerializeToMessage(t *testing.T) {
	result := testResult()

	msg, err := serializeToMessage(result, result.Rows[0])
	require.NoError(t, err)

	assert.Equal(t, []byte("Arizona|2020"), msg.Key)
	assert.JSONEq(t, `{"run_id":"run-1","entity":"Arizona","period":2020,"value":51,"compiled_at":"2024-04-26T15:10:00Z"}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "run_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[0].Value)
	assert.Equal(t, "compiled_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(result.CompiledAt.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestSerializeToMessage_NullValue(t *testing.T) {
	result := testResult()
	msg, err := serializeToMessage(result, result.Rows[1])
	require.NoError(t, err)
	assert.Contains(t, string(msg.Value), `"value":null`)
}

func TestWriter_Batches(t *testing.T) {
	fw := &fakeWriter{}
	w := testWriter(fw, 2)

	require.NoError(t, w.Write(context.Background(), testResult()))
	require.Len(t, fw.batches, 2)
	assert.Len(t, fw.batches[0], 2)
	assert.Len(t, fw.batches[1], 1)
	assert.Equal(t, []byte("Utah|2021"), fw.batches[1][0].Key)
}

func TestWriter_RetriesTransientFailures(t *testing.T) {
	fw := &fakeWriter{failures: 1}
	w := testWriter(fw, 0)

	require.NoError(t, w.Write(context.Background(), testResult()))
	assert.Equal(t, 2, fw.calls)
	require.Len(t, fw.batches, 1)
}

func TestWriter_GivesUp(t *testing.T) {
	fw := &fakeWriter{failures: maxAttempts}
	w := testWriter(fw, 0)

	err := w.Write(context.Background(), testResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
	assert.Equal(t, maxAttempts, fw.calls)
}

func TestWriter_EmptyResult(t *testing.T) {
	fw := &fakeWriter{}
	require.NoError(t, testWriter(fw, 10).Write(context.Background(), domain.Result{}))
	assert.Equal(t, 0, fw.calls)
}

func TestWriter_NameAndClose(t *testing.T) {
	fw := &fakeWriter{}
	w := testWriter(fw, 10)
	assert.Equal(t, "kafka", w.Name())
	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}

func TestNewWriter(t *testing.T) {
	w := NewWriter(&config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaSinkTopic: "t", KafkaBatchSize: 25}, slog.Default())
	kw, ok := w.writer.(*kafkago.Writer)
	require.True(t, ok)
	assert.Equal(t, "t", kw.Topic)
	assert.Equal(t, 25, kw.BatchSize)
	assert.Equal(t, 25, w.batchSize)
}
