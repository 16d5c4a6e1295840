package logger

import (
	"bytes"
	"context"
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
	batches [][]Digest
}

func (p *capturePublisher) PublishMessage(_ context.Context, _ string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, payload.([]Digest))
	return nil
}

func (p *capturePublisher) all() []Digest {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Digest
	for _, b := range p.batches {
		out = append(out, b...)
	}
	return out
}

func TestFieldsAreWrittenAsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{zl: zerolog.New(&buf)}
	l.Info("forecast done",
		String("symbol", "AAPL"),
		Int("days", 3),
		Duration("duration_ms", 1500*time.Millisecond),
		Error(errors.New("boom")),
	)
	out := buf.String()
	assert.Contains(t, out, `"symbol":"AAPL"`)
	assert.Contains(t, out, `"days":3`)
	assert.Contains(t, out, `"duration_ms":1500`)
	assert.Contains(t, out, `"error":"boom"`)
}

func TestCollectorFoldsRepeatedLines(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectorConfig{Interval: time.Hour, Threshold: 100, Topic: "logs", Service: "stockcast", Publisher: pub})

	for i := 0; i < 3; i++ {
		l.Warn("reload failed", String("symbol", "AAPL"))
	}
	l.Error("reload failed", String("symbol", "MSFT"))
	require.Equal(t, 2, l.collector.Pending())

	l.RemoveCollector()
	digests := pub.all()
	require.Len(t, digests, 2)
	counts := map[string]int{}
	for _, d := range digests {
		assert.Equal(t, "stockcast", d.Service)
		counts[d.Fields["symbol"].(string)] = d.Count
	}
	assert.Equal(t, map[string]int{"AAPL": 3, "MSFT": 1}, counts)
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewCollector(&CollectorConfig{Interval: time.Hour, Threshold: 2, Publisher: pub})
	defer c.Close()

	c.Add("warn", "a", nil, "x.go:1")
	c.Add("warn", "b", nil, "x.go:2")
	assert.Eventually(t, func() bool { return len(pub.all()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, c.Pending())
}

func TestDigestKeyIgnoresFieldOrder(t *testing.T) {
	a := digestKey("warn", "m", "c", map[string]any{"x": 1, "y": "z"})
	b := digestKey("warn", "m", "c", map[string]any{"y": "z", "x": 1})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, digestKey("error", "m", "c", map[string]any{"x": 1, "y": "z"}))
}
