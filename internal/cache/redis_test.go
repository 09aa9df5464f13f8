package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connectOrSkip needs a live server; set REDIS_ADDR to run these.
func connectOrSkip(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	r, err := Connect(context.Background(), addr, 0, "lovetree_test_"+uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestPresenceLifecycle(t *testing.T) {
	r := connectOrSkip(t)
	ctx := context.Background()
	id := uuid.New()

	p, err := r.Presence(ctx, []uuid.UUID{id})
	require.NoError(t, err)
	assert.False(t, p[id].Online)
	assert.Nil(t, p[id].LastSeen)

	require.NoError(t, r.Touch(ctx, id))
	p, err = r.Presence(ctx, []uuid.UUID{id})
	require.NoError(t, err)
	assert.True(t, p[id].Online)
	require.NotNil(t, p[id].LastSeen)

	require.NoError(t, r.Leave(ctx, id))
	p, err = r.Presence(ctx, []uuid.UUID{id})
	require.NoError(t, err)
	assert.False(t, p[id].Online)
	assert.NotNil(t, p[id].LastSeen)
}

func TestPublishSubscribe(t *testing.T) {
	r := connectOrSkip(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan []byte, 1)
	go r.Subscribe(ctx, func(b []byte) { got <- b })

	// retry until the subscriber is registered
	deadline := time.After(3 * time.Second)
	for {
		require.NoError(t, r.Publish(ctx, []byte(`{"hello":"world"}`)))
		select {
		case b := <-got:
			assert.JSONEq(t, `{"hello":"world"}`, string(b))
			return
		case <-deadline:
			t.Fatal("no message received")
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func TestConnectFailsFast(t *testing.T) {
	_, err := Connect(context.Background(), "127.0.0.1:1", 0, "x")
	assert.Error(t, err)
}
