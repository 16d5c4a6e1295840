package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"StockCast/pkg/logger"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type ctxKey string

// CtxRequestID holds the request id copied from message headers.
const CtxRequestID ctxKey = "kafka_request_id"

// RequestIDFromContext returns the request id of the message being handled, if any.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(CtxRequestID).(string)
	return v
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*consumerSettings)

type consumerSettings struct {
	brokers    []string
	groupID    string
	workers    int
	bufferSize int
	retryMax   int
	backoffMin time.Duration
	backoffMax time.Duration
	dlqTopic   string
	log        *logger.Logger
}

// WithConsumerBrokers sets the bootstrap brokers.
func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(s *consumerSettings) { s.brokers = brokers }
}

// WithConsumerGroupID sets the consumer group.
func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(s *consumerSettings) {
		if groupID != "" {
			s.groupID = groupID
		}
	}
}

// WithConsumerWorkers sets the number of handler goroutines.
func WithConsumerWorkers(n int) ConsumerOption {
	return func(s *consumerSettings) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithConsumerBufferSize sets the per-worker queue length.
func WithConsumerBufferSize(n int) ConsumerOption {
	return func(s *consumerSettings) {
		if n > 0 {
			s.bufferSize = n
		}
	}
}

// WithConsumerRetry sets how often a failed message is retried and the backoff range between tries.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(s *consumerSettings) {
		s.retryMax = max
		s.backoffMin = backoffMin
		s.backoffMax = backoffMax
	}
}

// WithConsumerDLQ routes messages that exhausted their retries to topic.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(s *consumerSettings) { s.dlqTopic = topic }
}

// WithConsumerLogger sets the logger.
func WithConsumerLogger(l *logger.Logger) ConsumerOption {
	return func(s *consumerSettings) {
		if l != nil {
			s.log = l
		}
	}
}

// Consumer reads the registered topics in one group. Each partition is pinned to one worker lane so
// messages of a partition are handled in order. Failures are retried with backoff, then sent to the DLQ.
type Consumer struct {
	set      consumerSettings
	log      *logger.Logger
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	lanes    []chan fetched
	dlq      *kafka.Writer

	cancel   context.CancelFunc
	fetchers sync.WaitGroup
	workers  sync.WaitGroup
	stopOnce sync.Once
}

type fetched struct {
	reader *kafka.Reader
	msg    kafka.Message
}

// NewConsumer validates the options; readers are created by Start.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	s := consumerSettings{
		groupID:    "stockcast",
		workers:    1,
		bufferSize: 10,
		retryMax:   3,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if len(s.brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}

	c := &Consumer{
		set:      s,
		log:      s.log,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
	}
	if s.dlqTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(s.brokers...), Topic: s.dlqTopic, Balancer: &kafka.Hash{}}
	}
	consumerMetrics.init()
	return c, nil
}

// RegisterHandler adds a handler for its topic. Call it before Start.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	topic := h.Topic()
	if _, dup := c.handlers[topic]; dup {
		c.log.Warn("kafka handler already registered", logger.String("topic", topic))
		return
	}
	c.handlers[topic] = h
}

// Start opens one reader per topic and the worker lanes.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("no kafka handlers registered")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.lanes = make([]chan fetched, c.set.workers)
	for i := range c.lanes {
		c.lanes[i] = make(chan fetched, c.set.bufferSize)
		c.workers.Add(1)
		go c.work(ctx, c.lanes[i])
	}

	for topic := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.set.brokers,
			Topic:       topic,
			GroupID:     c.set.groupID,
			StartOffset: kafka.LastOffset,
			MinBytes:    1,
			MaxBytes:    10e6,
		})
		c.readers[topic] = r
		c.fetchers.Add(1)
		go c.fetch(ctx, topic, r)
	}

	go func() {
		c.fetchers.Wait()
		for _, lane := range c.lanes {
			close(lane)
		}
	}()

	c.log.Info("kafka consumer started",
		logger.String("group_id", c.set.groupID),
		logger.Int("topics", len(c.readers)),
		logger.Int("workers", c.set.workers),
	)
	return nil
}

// Stop cancels fetching, waits for the lanes to drain within ctx, and closes readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		if c.cancel == nil {
			return
		}
		c.cancel()

		done := make(chan struct{})
		go func() {
			c.workers.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer stop: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Warn("kafka reader close failed", logger.String("topic", topic), logger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.log.Warn("kafka dlq writer close failed", logger.Error(cerr))
			}
		}
		if err == nil {
			c.log.Info("kafka consumer stopped")
		}
	})
	return err
}

func (c *Consumer) fetch(ctx context.Context, topic string, r *kafka.Reader) {
	defer c.fetchers.Done()
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka fetch failed", logger.String("topic", topic), logger.Error(err))
			select {
			case <-time.After(time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}
		lane := c.lanes[laneFor(topic, msg.Partition, len(c.lanes))]
		select {
		case lane <- fetched{reader: r, msg: msg}:
			consumerMetrics.depth.WithLabelValues(topic).Set(float64(len(lane)))
		case <-ctx.Done():
			return
		}
	}
}

// laneFor pins a topic partition to a worker.
func laneFor(topic string, partition, lanes int) int {
	if lanes <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	_, _ = h.Write([]byte(strconv.Itoa(partition)))
	return int(h.Sum32() % uint32(lanes))
}

func (c *Consumer) work(ctx context.Context, lane <-chan fetched) {
	defer c.workers.Done()
	for f := range lane {
		if h, ok := c.handlers[f.msg.Topic]; ok {
			c.process(ctx, h, f)
		}
	}
}

// process retries h until it succeeds or retryMax is exceeded. The offset is committed on success, or after a
// successful hand-off to the DLQ; a message abandoned by shutdown stays uncommitted and is redelivered.
func (c *Consumer) process(ctx context.Context, h MessageHandler, f fetched) {
	start := time.Now()
	topic := f.msg.Topic
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("kafka handler panic", logger.String("topic", topic), logger.Any("panic", r))
		}
		consumerMetrics.latency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	}()

	hctx := context.Background()
	if rid := headerValue(f.msg, HeaderRequestID); rid != "" {
		hctx = context.WithValue(hctx, CtxRequestID, rid)
	}

	var err error
	attempt := 0
	for {
		attempt++
		if err = h.Handle(hctx, f.msg.Value); err == nil || attempt > c.set.retryMax {
			break
		}
		select {
		case <-time.After(backoffWithJitter(c.set.backoffMin, c.set.backoffMax, attempt)):
		case <-ctx.Done():
			return
		}
	}

	if err != nil {
		c.log.Error("kafka message failed",
			logger.String("topic", topic),
			logger.Int("partition", f.msg.Partition),
			logger.Int64("offset", f.msg.Offset),
			logger.Int("attempts", attempt),
			logger.Error(err),
		)
		if !c.deadLetter(f.msg) {
			return
		}
	}
	c.commit(f)
}

func (c *Consumer) deadLetter(msg kafka.Message) bool {
	if c.dlq == nil {
		return false
	}
	headers := append(append([]kafka.Header{}, msg.Headers...), kafka.Header{Key: "source_topic", Value: []byte(msg.Topic)})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.dlq.WriteMessages(ctx, kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers}); err != nil {
		c.log.Error("kafka dlq write failed", logger.String("dlq_topic", c.set.dlqTopic), logger.Error(err))
		return false
	}
	return true
}

func (c *Consumer) commit(f fetched) {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = f.reader.CommitMessages(ctx, f.msg)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Error("kafka commit failed", logger.String("topic", f.msg.Topic), logger.Error(err))
}

func headerValue(km kafka.Message, key string) string {
	for _, h := range km.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// backoffWithJitter doubles min per attempt up to max and subtracts up to half as jitter.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := max
	if attempt < 1 {
		attempt = 1
	}
	if attempt < 32 {
		if e := min << uint(attempt-1); e > 0 && e < max {
			d = e
		}
	}
	return d - time.Duration(rand.Int63n(int64(d)/2+1))
}

type handleMetrics struct {
	once    sync.Once
	depth   *prometheus.GaugeVec
	latency *prometheus.HistogramVec
}

var consumerMetrics handleMetrics

func (m *handleMetrics) init() {
	m.once.Do(func() {
		m.depth = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stockcast_kafka_consumer_queue_depth",
			Help: "Messages waiting in a consumer lane",
		}, []string{"topic"})
		m.latency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name: "stockcast_kafka_consumer_handle_seconds",
			Help: "Handling time per message",
		}, []string{"topic"})
	})
}
