package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// HeaderRequestID carries the HTTP request id that caused a message.
const HeaderRequestID = "request_id"

// ProducerOption tunes the underlying kafka.Writer.
type ProducerOption func(*producerSettings)

type producerSettings struct {
	brokers     []string
	compression string
	writer      *kafka.Writer
}

// WithBrokers sets the bootstrap brokers.
func WithBrokers(brokers []string) ProducerOption {
	return func(s *producerSettings) { s.brokers = brokers }
}

// WithCompression accepts gzip, snappy, lz4 or zstd; anything else means gzip.
func WithCompression(codec string) ProducerOption {
	return func(s *producerSettings) {
		if codec != "" {
			s.compression = codec
		}
	}
}

// WithRequiredAcks sets the acks level (-1 waits for all replicas).
func WithRequiredAcks(acks int) ProducerOption {
	return func(s *producerSettings) { s.writer.RequiredAcks = kafka.RequiredAcks(acks) }
}

// WithMaxAttempts bounds the writer's own delivery retries.
func WithMaxAttempts(n int) ProducerOption {
	return func(s *producerSettings) {
		if n > 0 {
			s.writer.MaxAttempts = n
		}
	}
}

// WithBatchSize caps messages per batch.
func WithBatchSize(n int) ProducerOption {
	return func(s *producerSettings) {
		if n > 0 {
			s.writer.BatchSize = n
		}
	}
}

// WithBatchBytes caps the encoded size of a batch.
func WithBatchBytes(n int) ProducerOption {
	return func(s *producerSettings) {
		if n > 0 {
			s.writer.BatchBytes = int64(n)
		}
	}
}

// WithBatchTimeout is the linger before a partial batch is flushed.
func WithBatchTimeout(d time.Duration) ProducerOption {
	return func(s *producerSettings) {
		if d > 0 {
			s.writer.BatchTimeout = d
		}
	}
}

// WithTimeouts sets the writer write and read timeouts.
func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(s *producerSettings) {
		if write > 0 {
			s.writer.WriteTimeout = write
		}
		if read > 0 {
			s.writer.ReadTimeout = read
		}
	}
}

// WithAsync makes Publish return before the broker acknowledges.
func WithAsync(async bool) ProducerOption {
	return func(s *producerSettings) { s.writer.Async = async }
}

// WithHashByKey routes messages with the same key to the same partition.
func WithHashByKey(hash bool) ProducerOption {
	return func(s *producerSettings) {
		if hash {
			s.writer.Balancer = &kafka.Hash{}
		} else {
			s.writer.Balancer = &kafka.LeastBytes{}
		}
	}
}

func compressionCodec(name string) kafka.Compression {
	switch name {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}

// Producer publishes JSON or raw payloads to Kafka.
type Producer struct {
	writer *kafka.Writer
	codec  string
}

// NewProducer builds a producer; brokers are required.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	s := &producerSettings{
		compression: "gzip",
		writer: &kafka.Writer{
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  3,
			BatchSize:    100,
			BatchBytes:   1 << 20,
			BatchTimeout: 50 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			ReadTimeout:  10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}

	s.writer.Addr = kafka.TCP(s.brokers...)
	s.writer.Compression = compressionCodec(s.compression)

	producerMetrics.init()
	return &Producer{writer: s.writer, codec: s.compression}, nil
}

// Publish sends one message keyed by key. Values other than []byte and string are JSON encoded.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value any, headers ...kafka.Header) error {
	start := time.Now()
	payload, err := encodeValue(value)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   payload,
		Headers: headers,
		Time:    start,
	})
	producerMetrics.observe(topic, p.codec, len(payload), time.Since(start), err)
	return err
}

// PublishMessage publishes an unkeyed message. It satisfies logger.Publisher.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload any) error {
	return p.Publish(ctx, topic, nil, payload)
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encodeValue(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal kafka value: %w", err)
	}
	return b, nil
}

type publishMetrics struct {
	once     sync.Once
	messages *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var producerMetrics publishMetrics

func (m *publishMetrics) init() {
	m.once.Do(func() {
		m.messages = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stockcast_kafka_producer_messages_total",
			Help: "Messages published to Kafka by topic and result",
		}, []string{"topic", "compression", "result"})
		m.bytes = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stockcast_kafka_producer_bytes_total",
			Help: "Payload bytes published to Kafka",
		}, []string{"topic"})
		m.latency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockcast_kafka_producer_publish_seconds",
			Help:    "Publish latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
	})
}

func (m *publishMetrics) observe(topic, codec string, size int, d time.Duration, err error) {
	if m.messages == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.messages.WithLabelValues(topic, codec, result).Inc()
	m.bytes.WithLabelValues(topic).Add(float64(size))
	m.latency.WithLabelValues(topic).Observe(d.Seconds())
}
