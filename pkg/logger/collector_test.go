package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestCollector_DeduplicatesUntilFlush(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, Topic: "auto_eye.logs", Publisher: pub})
	defer c.Close()

	fields := map[string]interface{}{"symbol": "EURUSD"}
	c.AddLog("error", "refresh failed", fields, "usecase/runner.go:10")
	c.AddLog("error", "refresh failed", fields, "usecase/runner.go:10")
	c.AddLog("warn", "quote unavailable", nil, "usecase/state_builder.go:20")
	assert.Equal(t, 2, c.Pending())

	c.Flush()
	assert.Equal(t, 0, c.Pending())

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "auto_eye.logs", pub.topic)
	require.Len(t, pub.batches[0], 2)
	counts := map[string]int{}
	for _, e := range pub.batches[0] {
		counts[e.Message] = e.Count
	}
	assert.Equal(t, 2, counts["refresh failed"])
	assert.Equal(t, 1, counts["quote unavailable"])
}

func TestCollector_CloseFlushesPending(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, Publisher: pub})
	c.AddLog("error", "boom", nil, "x.go:1")
	c.Close()
	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Len(t, pub.batches, 1)
}

func TestLogger_WarnAndErrorReachCollector(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel)
	pub := &capturePublisher{}
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, Publisher: pub})

	l.Info("cycle done", Int("timeframes", 2))
	l.Warn("lock held", String("key", "auto_eye:lock:/tmp"))
	l.Error("save failed", Error(errors.New("disk full")))
	assert.Equal(t, 2, l.collector.Pending())
	l.RemoveCollector()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	var last map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[2], &last))
	assert.Equal(t, "disk full", last["error"])
	assert.Equal(t, "error", last["level"])
}

func TestLogger_WithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel).With(String("cycle_id", "c1"))
	l.Debug("hidden")
	l.Info("shown", Duration("took", 1500*time.Millisecond))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "c1", entry["cycle_id"])
	assert.Equal(t, float64(1500), entry["took_ms"])
}
