// Package clickhouse wraps a native clickhouse-go connection with the schema and batch helpers
// the repositories need.
package clickhouse

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClientOption adjusts the connection options before the client dials.
type ClientOption func(*settings)

type settings struct {
	host     string
	port     int
	opts     clickhouse.Options
	pingWait time.Duration
}

// WithHost sets the server host.
func WithHost(host string) ClientOption {
	return func(s *settings) { s.host = host }
}

// WithPort sets the server port (9000 native, 8123 HTTP).
func WithPort(port int) ClientOption {
	return func(s *settings) {
		if port > 0 {
			s.port = port
		}
	}
}

// WithDatabase selects the default database of the session.
func WithDatabase(database string) ClientOption {
	return func(s *settings) {
		if database != "" {
			s.opts.Auth.Database = database
		}
	}
}

// WithCredentials sets username and password.
func WithCredentials(user, password string) ClientOption {
	return func(s *settings) {
		s.opts.Auth.Username = user
		s.opts.Auth.Password = password
	}
}

// WithMaxConnections bounds the pool.
func WithMaxConnections(maxOpen, maxIdle int) ClientOption {
	return func(s *settings) {
		if maxOpen > 0 {
			s.opts.MaxOpenConns = maxOpen
		}
		if maxIdle > 0 {
			s.opts.MaxIdleConns = maxIdle
		}
	}
}

// WithTimeouts sets dial and read timeouts; the dial timeout also bounds the startup ping.
func WithTimeouts(dial, read time.Duration) ClientOption {
	return func(s *settings) {
		if dial > 0 {
			s.opts.DialTimeout = dial
			s.pingWait = dial
		}
		if read > 0 {
			s.opts.ReadTimeout = read
		}
	}
}

// WithHTTP switches from the native protocol to HTTP.
func WithHTTP(useHTTP bool) ClientOption {
	return func(s *settings) {
		if useHTTP {
			s.opts.Protocol = clickhouse.HTTP
		} else {
			s.opts.Protocol = clickhouse.Native
		}
	}
}

// WithAsyncInsert lets the server buffer small inserts; wait makes the insert return after the flush.
func WithAsyncInsert(enabled, wait bool) ClientOption {
	return func(s *settings) {
		if !enabled {
			delete(s.opts.Settings, "async_insert")
			delete(s.opts.Settings, "wait_for_async_insert")
			return
		}
		s.opts.Settings["async_insert"] = 1
		s.opts.Settings["wait_for_async_insert"] = boolSetting(wait)
	}
}

// WithMaxExecutionTime caps every query on the server side.
func WithMaxExecutionTime(d time.Duration) ClientOption {
	return func(s *settings) {
		if d >= time.Second {
			s.opts.Settings["max_execution_time"] = int(d.Seconds())
		}
	}
}

func boolSetting(b bool) int {
	if b {
		return 1
	}
	return 0
}

func defaultSettings() *settings {
	return &settings{
		port:     9000,
		pingWait: 5 * time.Second,
		opts: clickhouse.Options{
			Protocol:        clickhouse.Native,
			Auth:            clickhouse.Auth{Database: "default", Username: "default"},
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			DialTimeout:     5 * time.Second,
			ReadTimeout:     10 * time.Second,
			Compression:     &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
			Settings:        clickhouse.Settings{},
		},
	}
}

// buildOptions applies opts over the defaults and resolves the address.
func buildOptions(opts ...ClientOption) (*clickhouse.Options, time.Duration, error) {
	s := defaultSettings()
	for _, opt := range opts {
		opt(s)
	}
	if s.host == "" {
		return nil, 0, fmt.Errorf("clickhouse host is required")
	}
	if s.opts.Protocol == clickhouse.HTTP {
		// LZ4 over HTTP needs server side support; keep HTTP uncompressed
		s.opts.Compression = nil
	}
	s.opts.Addr = []string{net.JoinHostPort(s.host, strconv.Itoa(s.port))}
	return &s.opts, s.pingWait, nil
}

// Client owns one pooled ClickHouse connection.
type Client struct {
	conn     driver.Conn
	database string
}

// NewClient opens the pool and pings the server.
func NewClient(ctx context.Context, opts ...ClientOption) (*Client, error) {
	options, pingWait, err := buildOptions(opts...)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingWait)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &Client{conn: conn, database: options.Auth.Database}, nil
}

// Database returns the session database.
func (c *Client) Database() string { return c.database }

// Health pings the server.
func (c *Client) Health(ctx context.Context) error { return c.conn.Ping(ctx) }

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// InitSchema runs idempotent DDL statements in order.
func (c *Client) InitSchema(ctx context.Context, stmts ...string) error {
	for i, stmt := range stmts {
		if err := c.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema statement %d: %w", i, err)
		}
	}
	return nil
}

// InsertBatch sends rows as one block. stmt is an "INSERT INTO table (cols)" without VALUES.
func (c *Client) InsertBatch(ctx context.Context, stmt string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := c.conn.PrepareBatch(ctx, stmt)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, row := range rows {
		if err := batch.Append(row...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append batch row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Query runs a SELECT with positional (?) arguments.
func (c *Client) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return c.conn.Query(ctx, query, args...)
}
