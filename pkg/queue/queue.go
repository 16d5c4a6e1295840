package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotRunning  = errors.New("queue: not running")
	ErrQueueFull   = errors.New("queue: full")
	ErrUnknownType = errors.New("queue: no job registered for type")
)

// Enqueuer is the producing side, all a use case needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload any) error
}

// Queue runs registered jobs on a worker pool.
type Queue interface {
	Enqueuer
	RegisterJob(job Job)
	Start() error
	Stop(ctx context.Context) error
}

// QueueConfig sizes a queue. Zero values fall back to the backend defaults.
type QueueConfig struct {
	Workers    int
	QueueSize  int // buffered messages, memory backend only
	RetryLimit int // attempts after the first one before a message is dead
	RetryDelay time.Duration
}

// Message is the envelope stored by the queue backends.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

// ParsePayload converts what a Job receives into *T. The memory queue hands over the value that was
// enqueued; the Redis queue hands over its JSON encoding.
func ParsePayload[T any](payload any) (*T, error) {
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		return unmarshalPayload[T](p)
	case []byte:
		return unmarshalPayload[T](p)
	}
	// anything else, e.g. a map decoded elsewhere, goes through a JSON round trip
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("payload of type %T: %w", payload, err)
	}
	return unmarshalPayload[T](raw)
}

func unmarshalPayload[T any](raw []byte) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return v, nil
}
