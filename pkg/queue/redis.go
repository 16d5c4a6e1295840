package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"StockCast/pkg/logger"
)

// QueueMode defines the operation mode of the queue.
type QueueMode int

const (
	ModeProducerConsumer QueueMode = iota
	ModeProducerOnly
	ModeConsumerOnly
)

func (m QueueMode) String() string {
	switch m {
	case ModeProducerOnly:
		return "producer-only"
	case ModeConsumerOnly:
		return "consumer-only"
	default:
		return "producer-consumer"
	}
}

const (
	popTimeout       = time.Second
	promoteInterval  = 2 * time.Second
	defaultDeadLimit = 1000
)

// redisKeys are the lists backing one queue. A message lives in exactly one of them:
// pending (waiting), processing (claimed by a worker), retry (sorted by due time) or dead.
type redisKeys struct {
	pending    string
	processing string
	retry      string
	dead       string
}

func newRedisKeys(prefix string) redisKeys {
	return redisKeys{
		pending:    prefix + ":pending",
		processing: prefix + ":processing",
		retry:      prefix + ":retry",
		dead:       prefix + ":dead",
	}
}

// RedisQueue is a Redis list backed queue shared by every instance using the same key prefix.
// Workers claim messages with BLMOVE into a processing list and remove them once handled,
// so a crashed worker leaves its message in processing for Recover.
type RedisQueue struct {
	logger    *logger.Logger
	config    *QueueConfig
	client    *redis.Client
	mode      QueueMode
	keys      redisKeys
	deadLimit int64
	recover   bool

	mu        sync.RWMutex
	jobs      map[string]Job
	isRunning bool
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets the prefix of every queue key.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		r.keys = newRedisKeys(prefix)
	}
}

// WithDeadLetterLimit caps the dead letter list; older entries are trimmed.
func WithDeadLetterLimit(n int64) RedisQueueOption {
	return func(r *RedisQueue) {
		if n > 0 {
			r.deadLimit = n
		}
	}
}

// WithRecoverOnStart requeues messages left in processing when the consumer starts.
// Only safe when a single consumer instance shares the prefix.
func WithRecoverOnStart(enabled bool) RedisQueueOption {
	return func(r *RedisQueue) {
		r.recover = enabled
	}
}

// NewRedisQueue creates a new Redis queue.
func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, mode QueueMode, opts ...RedisQueueOption) *RedisQueue {
	if config == nil {
		config = &QueueConfig{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 10 * time.Second
	}
	if lgr == nil {
		lgr = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	rq := &RedisQueue{
		logger:    lgr,
		config:    config,
		client:    client,
		mode:      mode,
		keys:      newRedisKeys("stockcast:queue"),
		deadLimit: defaultDeadLimit,
		jobs:      make(map[string]Job),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(rq)
	}
	return rq
}

// RegisterJob registers a job handler. Producer-only queues keep no handlers.
func (r *RedisQueue) RegisterJob(job Job) {
	if r.mode == ModeProducerOnly {
		r.logger.Debug("job registration skipped in producer-only mode", logger.String("job", job.Name()))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.Type()]; exists {
		r.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.logger.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

// Start checks the connection and launches the workers and the retry promoter.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRunning {
		return fmt.Errorf("queue already running")
	}

	ctx, cancel := context.WithTimeout(r.ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	r.isRunning = true

	if r.mode == ModeProducerOnly {
		r.logger.Info("Redis queue started", logger.String("mode", r.mode.String()))
		return nil
	}

	if r.recover {
		if n, err := r.Recover(ctx); err != nil {
			r.logger.Warn("requeue of stranded messages failed", logger.Error(err))
		} else if n > 0 {
			r.logger.Warn("requeued stranded messages", logger.Int("count", n))
		}
	}

	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.promoter()

	r.logger.Info("Redis queue started",
		logger.Int("workers", r.config.Workers),
		logger.String("addr", r.client.Options().Addr),
		logger.String("mode", r.mode.String()))
	return nil
}

// Stop cancels in-flight jobs and waits for the workers.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		r.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		r.logger.Info("Redis queue stopped")
		return nil
	}
}

// Enqueue pushes a message onto the pending list. Consumers reject types they have no job for;
// a producer-only queue accepts any type.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.isRunning
	_, known := r.jobs[msgType]
	r.mu.RUnlock()

	if !running {
		return ErrNotRunning
	}
	if r.mode != ModeProducerOnly && !known {
		return fmt.Errorf("%w: %s", ErrUnknownType, msgType)
	}

	data, err := encodeMessage(msgType, payload)
	if err != nil {
		return err
	}
	if err := r.client.LPush(ctx, r.keys.pending, data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// Recover moves every message in processing back to pending and returns how many moved.
func (r *RedisQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := r.client.LMove(ctx, r.keys.processing, r.keys.pending, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("recover: %w", err)
		}
		n++
	}
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	r.logger.Debug("queue worker started", logger.Int("worker_id", id))

	for r.ctx.Err() == nil {
		raw, err := r.client.BLMove(r.ctx, r.keys.pending, r.keys.processing, "RIGHT", "LEFT", popTimeout).Result()
		switch {
		case err == nil:
			r.process(raw)
		case errors.Is(err, redis.Nil), errors.Is(err, context.Canceled):
		default:
			r.logger.Error("queue pop failed", logger.Int("worker_id", id), logger.Error(err))
			select {
			case <-time.After(time.Second):
			case <-r.ctx.Done():
			}
		}
	}
}

// process runs one claimed message and always removes it from processing afterwards,
// unless the queue is shutting down mid-job, in which case it stays there for Recover.
func (r *RedisQueue) process(raw string) {
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		r.logger.Error("undecodable queue message", logger.Error(err))
		r.deadLetter(raw, raw)
		return
	}

	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.logger.Error("no job registered for message", logger.String("type", msg.Type), logger.String("id", msg.ID))
		r.deadLetter(raw, raw)
		return
	}

	start := time.Now()
	err := runJob(r.ctx, job, msg.Payload)
	if err != nil && r.ctx.Err() != nil {
		r.logger.Warn("job interrupted by shutdown", logger.String("id", msg.ID), logger.String("job", job.Name()))
		return
	}

	if err == nil {
		r.ack(raw)
		r.logger.Debug("job done",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Duration("elapsed_ms", time.Since(start)))
		return
	}

	msg.Attempts++
	r.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.Error(err))

	next, encErr := json.Marshal(msg)
	if encErr != nil {
		r.deadLetter(raw, raw)
		return
	}
	if msg.Attempts > r.config.RetryLimit {
		r.logger.Error("max retries reached", logger.String("id", msg.ID), logger.String("job", job.Name()))
		r.deadLetter(raw, string(next))
		return
	}
	r.scheduleRetry(raw, string(next), time.Now().Add(r.config.RetryDelay))
}

func (r *RedisQueue) ack(raw string) {
	if err := r.client.LRem(context.Background(), r.keys.processing, 1, raw).Err(); err != nil {
		r.logger.Error("queue ack failed", logger.Error(err))
	}
}

func (r *RedisQueue) scheduleRetry(raw, next string, at time.Time) {
	ctx := context.Background()
	pipe := r.client.TxPipeline()
	pipe.LRem(ctx, r.keys.processing, 1, raw)
	pipe.ZAdd(ctx, r.keys.retry, redis.Z{Score: float64(at.UnixMilli()), Member: next})
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("schedule retry failed", logger.Error(err))
	}
}

func (r *RedisQueue) deadLetter(raw, final string) {
	ctx := context.Background()
	pipe := r.client.TxPipeline()
	pipe.LRem(ctx, r.keys.processing, 1, raw)
	pipe.LPush(ctx, r.keys.dead, final)
	pipe.LTrim(ctx, r.keys.dead, 0, r.deadLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("dead letter failed", logger.Error(err))
	}
}

// promoter moves due retries back to pending. ZREM decides which instance wins a message.
func (r *RedisQueue) promoter() {
	defer r.wg.Done()

	ticker := time.NewTicker(promoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if err := r.promoteDue(r.ctx, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("retry promotion failed", logger.Error(err))
			}
		}
	}
}

func (r *RedisQueue) promoteDue(ctx context.Context, now time.Time) error {
	due, err := r.client.ZRangeByScore(ctx, r.keys.retry, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: 100,
	}).Result()
	if err != nil {
		return err
	}
	for _, m := range due {
		removed, err := r.client.ZRem(ctx, r.keys.retry, m).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		if err := r.client.LPush(ctx, r.keys.pending, m).Err(); err != nil {
			return err
		}
	}
	return nil
}

func encodeMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	data, err := json.Marshal(Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return data, nil
}

var _ Queue = (*RedisQueue)(nil)
