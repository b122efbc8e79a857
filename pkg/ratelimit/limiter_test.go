package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalBurst(t *testing.T) {
	iv := NewInterval(time.Hour, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, iv.Wait(ctx))
	require.NoError(t, iv.Wait(ctx))
	// the third event would have to wait an hour
	assert.Error(t, iv.Wait(ctx))
}

func TestIntervalSpacing(t *testing.T) {
	iv := NewInterval(30*time.Millisecond, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, iv.Wait(ctx))
	}
	// first is immediate, the next two are spaced
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestIntervalWaitCancelled(t *testing.T) {
	iv := NewInterval(time.Hour, 1)
	require.NoError(t, iv.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, iv.Wait(ctx))
}

func TestUnlimited(t *testing.T) {
	l := Unlimited()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	for i := 0; i < 1000; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestNonPositiveBurst(t *testing.T) {
	iv := NewInterval(time.Hour, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	require.NoError(t, iv.Wait(ctx))
	assert.Error(t, iv.Wait(ctx))
}
