//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/pkg/testutil/containers"
)

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	defer rc.Terminate(ctx)

	store := NewRedis(rc.Client)

	for i := 0; i < 3; i++ {
		result, err := store.Allow(ctx, "ip:10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 2-i, result.Remaining)
	}

	result, err := store.Allow(ctx, "ip:10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)

	// Another key gets its own window.
	result, err = store.Allow(ctx, "ip:10.0.0.2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRedisStoreWindowExpires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	defer rc.Terminate(ctx)

	store := NewRedis(rc.Client)

	result, err := store.Allow(ctx, "ip:10.0.0.1", 1, time.Second)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = store.Allow(ctx, "ip:10.0.0.1", 1, time.Second)
	require.NoError(t, err)
	require.False(t, result.Allowed)

	time.Sleep(1500 * time.Millisecond)

	result, err = store.Allow(ctx, "ip:10.0.0.1", 1, time.Second)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "a fresh fixed window opens after expiry")
}
