package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireUnconfiguredModelNeverBlocks(t *testing.T) {
	l := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Acquire(ctx, "unknown-model"))
}

func TestConfigureNilOrNonPositiveMeansUnlimited(t *testing.T) {
	l := New()
	rate := 5.0
	l.Configure("m", &rate)
	require.NotNil(t, l.limiterFor("m"))

	l.Configure("m", nil)
	require.Nil(t, l.limiterFor("m"))

	zero := 0.0
	l.Configure("m", &zero)
	require.Nil(t, l.limiterFor("m"))
}

func TestAcquireRespectsCapacityOneBucket(t *testing.T) {
	l := New()
	rate := 1000.0 // fast refill so the test doesn't actually wait long
	l.Configure("m", &rate)

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, "m"))
	require.NoError(t, l.Acquire(ctx, "m"))
}

func TestAcquireCancelledContext(t *testing.T) {
	l := New()
	rate := 0.001 // effectively never refills within the test window
	l.Configure("m", &rate)

	// drain the single token
	require.NoError(t, l.Acquire(context.Background(), "m"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx, "m")
	require.Error(t, err)
}
