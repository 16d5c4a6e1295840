package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships a batch of digests to a broker topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload any) error
}

type CollectorConfig struct {
	Interval  time.Duration // flush period
	Threshold int           // distinct entries that force an early flush
	Topic     string
	Service   string
	Publisher Publisher
}

// Digest is one distinct log line and how often it was seen since the last flush.
type Digest struct {
	Service   string         `json:"service,omitempty"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	Caller    string         `json:"caller"`
	Count     int            `json:"count"`
	FirstSeen time.Time      `json:"first_seen"`
	LastSeen  time.Time      `json:"last_seen"`
}

// Collector folds repeated warnings and errors into digests and publishes them in batches.
// One batch can wait behind the publish in flight; further batches are dropped until it finishes.
type Collector struct {
	cfg     CollectorConfig
	mu      sync.Mutex
	pending map[uint64]*Digest
	flush   chan struct{}
	batches chan []Digest
	stop    chan struct{}
	done    sync.WaitGroup
	once    sync.Once
}

func NewCollector(cfg *CollectorConfig) *Collector {
	c := &Collector{
		cfg:     *cfg,
		pending: make(map[uint64]*Digest),
		flush:   make(chan struct{}, 1),
		batches: make(chan []Digest, 1),
		stop:    make(chan struct{}),
	}
	if c.cfg.Interval <= 0 {
		c.cfg.Interval = 30 * time.Second
	}
	if c.cfg.Threshold <= 0 {
		c.cfg.Threshold = 100
	}
	c.done.Add(2)
	go c.tick()
	go c.publish()
	return c
}

func (c *Collector) Add(level, msg string, fields map[string]any, caller string) {
	key := digestKey(level, msg, caller, fields)
	now := time.Now()

	c.mu.Lock()
	if d, ok := c.pending[key]; ok {
		d.Count++
		d.LastSeen = now
	} else {
		c.pending[key] = &Digest{
			Service:   c.cfg.Service,
			Level:     level,
			Message:   msg,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	full := len(c.pending) >= c.cfg.Threshold
	c.mu.Unlock()

	if full {
		select {
		case c.flush <- struct{}{}:
		default:
		}
	}
}

// Pending returns the number of distinct entries waiting for the next flush.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close flushes what is buffered and waits for the last publish.
func (c *Collector) Close() {
	c.once.Do(func() {
		close(c.stop)
		c.done.Wait()
	})
}

func (c *Collector) drain() []Digest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil
	}
	out := make([]Digest, 0, len(c.pending))
	for _, d := range c.pending {
		out = append(out, *d)
	}
	c.pending = make(map[uint64]*Digest)
	return out
}

func (c *Collector) tick() {
	defer c.done.Done()
	t := time.NewTicker(c.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.handOff()
		case <-c.flush:
			c.handOff()
		case <-c.stop:
			if batch := c.drain(); batch != nil {
				c.batches <- batch
			}
			close(c.batches)
			return
		}
	}
}

func (c *Collector) handOff() {
	if batch := c.drain(); batch != nil {
		select {
		case c.batches <- batch:
		default:
		}
	}
}

func (c *Collector) publish() {
	defer c.done.Done()
	for batch := range c.batches {
		if c.cfg.Publisher == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
			// the logger cannot log its own shipping failure through itself
			fmt.Fprintf(os.Stderr, "log collector: publish %d digests: %v\n", len(batch), err)
		}
		cancel()
	}
}

func digestKey(level, msg, caller string, fields map[string]any) uint64 {
	h := fnv.New64a()
	for _, s := range []string{level, msg, caller} {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, _ := json.Marshal(fields[k])
		_, _ = h.Write([]byte(k))
		_, _ = h.Write(v)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
