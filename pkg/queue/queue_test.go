package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reportPayload struct {
	ID    string `json:"id"`
	Stock string `json:"stock"`
}

type countingJob struct {
	calls    atomic.Int32
	failures int32
	got      chan *reportPayload
}

func (j *countingJob) Name() string { return "counting" }
func (j *countingJob) Type() string { return "report.generate" }

func (j *countingJob) Handle(_ context.Context, payload interface{}) error {
	n := j.calls.Add(1)
	if n <= j.failures {
		return errors.New("transient")
	}
	p, err := ParsePayload[reportPayload](payload)
	if err != nil {
		return err
	}
	j.got <- p
	return nil
}

func TestParsePayloadShapes(t *testing.T) {
	want := reportPayload{ID: "1", Stock: "AAPL"}
	raw, _ := json.Marshal(want)

	for _, in := range []interface{}{want, &want, json.RawMessage(raw), raw, map[string]interface{}{"id": "1", "stock": "AAPL"}} {
		got, err := ParsePayload[reportPayload](in)
		require.NoError(t, err)
		assert.Equal(t, want, *got)
	}

	_, err := ParsePayload[reportPayload](42)
	assert.Error(t, err)
}

func TestMemoryQueueRunsJobWithRetries(t *testing.T) {
	q := NewMemoryQueue(nil, &QueueConfig{Workers: 2, RetryLimit: 3, RetryDelay: time.Millisecond})
	job := &countingJob{failures: 2, got: make(chan *reportPayload, 1)}
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	defer q.Stop(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), "report.generate", reportPayload{ID: "7", Stock: "MSFT"}))

	select {
	case p := <-job.got:
		assert.Equal(t, "MSFT", p.Stock)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	assert.Equal(t, int32(3), job.calls.Load())
}

func TestMemoryQueueRejects(t *testing.T) {
	q := NewMemoryQueue(nil, &QueueConfig{Workers: 1})
	assert.ErrorIs(t, q.Enqueue(context.Background(), "x", nil), ErrNotRunning)

	require.NoError(t, q.Start())
	defer q.Stop(context.Background())
	assert.ErrorIs(t, q.Enqueue(context.Background(), "x", nil), ErrUnknownType)
}

func TestEncodeMessageRoundTripsThroughParsePayload(t *testing.T) {
	data, err := encodeMessage("report.generate", reportPayload{ID: "9", Stock: "TSLA"})
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "report.generate", msg.Type)
	assert.Zero(t, msg.Attempts)

	p, err := ParsePayload[reportPayload](msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, "TSLA", p.Stock)
}

func TestRedisKeysAndModes(t *testing.T) {
	k := newRedisKeys("sc:queue")
	assert.Equal(t, "sc:queue:pending", k.pending)
	assert.Equal(t, "sc:queue:dead", k.dead)
	assert.Equal(t, "producer-only", ModeProducerOnly.String())
	assert.Equal(t, "producer-consumer", ModeProducerConsumer.String())
}

type panickingJob struct{}

func (panickingJob) Name() string { return "panicky" }
func (panickingJob) Type() string { return "panic" }

func (panickingJob) Handle(context.Context, interface{}) error { panic("boom") }

func TestRunJobRecoversPanics(t *testing.T) {
	err := runJob(context.Background(), panickingJob{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
