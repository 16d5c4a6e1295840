package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowRespectsBurstPerKey(t *testing.T) {
	l := New(0.001, 2)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	assert.True(t, l.Allow("b"))
	assert.Equal(t, 2, l.Len())
}

func TestSweepDropsIdleKeys(t *testing.T) {
	now := time.Now()
	l := New(1, 1)
	l.now = func() time.Time { return now }
	l.Allow("old")

	now = now.Add(time.Hour)
	l.Allow("fresh")

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
}

func TestWaitHonoursContext(t *testing.T) {
	l := New(0.001, 1)
	require.True(t, l.Allow("k"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "k"))
}
