package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

func TestBuildOptions(t *testing.T) {
	opts, ping, err := buildOptions(
		WithHost("ch.local"),
		WithDatabase("stockcast"),
		WithCredentials("svc", "p@ss"),
		WithTimeouts(3*time.Second, 0),
		WithMaxExecutionTime(30*time.Second),
		WithAsyncInsert(true, true),
	)
	if err != nil {
		t.Fatalf("buildOptions: %v", err)
	}
	if len(opts.Addr) != 1 || opts.Addr[0] != "ch.local:9000" {
		t.Fatalf("unexpected addr %v", opts.Addr)
	}
	if opts.Auth.Database != "stockcast" || opts.Auth.Username != "svc" || opts.Auth.Password != "p@ss" {
		t.Fatalf("unexpected auth %+v", opts.Auth)
	}
	if ping != 3*time.Second || opts.DialTimeout != 3*time.Second || opts.ReadTimeout != 10*time.Second {
		t.Fatalf("unexpected timeouts ping=%s dial=%s read=%s", ping, opts.DialTimeout, opts.ReadTimeout)
	}
	if opts.Settings["max_execution_time"] != 30 || opts.Settings["async_insert"] != 1 || opts.Settings["wait_for_async_insert"] != 1 {
		t.Fatalf("unexpected settings %v", opts.Settings)
	}
	if opts.Compression == nil || opts.Compression.Method != clickhouse.CompressionLZ4 {
		t.Fatalf("native protocol should compress")
	}
}

func TestBuildOptionsHTTP(t *testing.T) {
	opts, _, err := buildOptions(WithHost("h"), WithPort(8123), WithHTTP(true))
	if err != nil {
		t.Fatalf("buildOptions: %v", err)
	}
	if opts.Protocol != clickhouse.HTTP || opts.Addr[0] != "h:8123" {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.Compression != nil {
		t.Fatalf("http should not compress")
	}
	if len(opts.Settings) != 0 {
		t.Fatalf("expected no settings, got %v", opts.Settings)
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(context.Background()); err == nil {
		t.Fatalf("expected error without host")
	}
}
