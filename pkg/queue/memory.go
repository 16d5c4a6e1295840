package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"StockCast/pkg/logger"
)

// MemoryQueue runs jobs on an in-process worker pool. Retries stay in process; exhausted jobs are dropped
// after logging. Used when Redis is disabled.
type MemoryQueue struct {
	logger    *logger.Logger
	config    *QueueConfig
	jobs      map[string]Job
	ch        chan Message
	payloads  sync.Map // message id -> original payload
	mu        sync.RWMutex
	wg        sync.WaitGroup
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewMemoryQueue creates an in-memory queue.
func NewMemoryQueue(lgr *logger.Logger, config *QueueConfig) *MemoryQueue {
	if config == nil {
		config = &QueueConfig{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if lgr == nil {
		lgr = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryQueue{
		logger: lgr,
		config: config,
		jobs:   make(map[string]Job),
		ch:     make(chan Message, config.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (q *MemoryQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.jobs[job.Type()]; exists {
		q.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	q.jobs[job.Type()] = job
}

func (q *MemoryQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.isRunning {
		return fmt.Errorf("queue already running")
	}
	q.isRunning = true

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.logger.Info("Memory queue started", logger.Int("workers", q.config.Workers))
	return nil
}

// Stop cancels running jobs and waits for the workers.
func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		return nil
	}
}

// Enqueue hands payload to a worker. It never blocks: a full buffer returns ErrQueueFull.
func (q *MemoryQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.isRunning {
		return ErrNotRunning
	}
	if _, exists := q.jobs[msgType]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownType, msgType)
	}

	msg := Message{ID: uuid.NewString(), Type: msgType, Timestamp: time.Now()}
	q.payloads.Store(msg.ID, payload)

	select {
	case q.ch <- msg:
		return nil
	default:
		q.payloads.Delete(msg.ID)
		return ErrQueueFull
	}
}

func (q *MemoryQueue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case msg := <-q.ch:
			q.process(msg)
		}
	}
}

func (q *MemoryQueue) process(msg Message) {
	q.mu.RLock()
	job := q.jobs[msg.Type]
	q.mu.RUnlock()

	payload, _ := q.payloads.LoadAndDelete(msg.ID)

	for {
		err := runJob(q.ctx, job, payload)
		if err == nil {
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		msg.Attempts++
		q.logger.Error("message processing error",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int("attempt", msg.Attempts),
			logger.Error(err))
		if msg.Attempts > q.config.RetryLimit {
			q.logger.Error("max retries reached", logger.String("id", msg.ID), logger.String("job", job.Name()))
			return
		}
		select {
		case <-time.After(q.config.RetryDelay):
		case <-q.ctx.Done():
			return
		}
	}
}

var _ Queue = (*MemoryQueue)(nil)
