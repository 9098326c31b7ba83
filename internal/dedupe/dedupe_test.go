package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, prefix string, ttl time.Duration) (*miniredis.Miniredis, *Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient("redis://"+mr.Addr(), prefix, ttl, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not-a-url::", "", 0, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewClientAppliesDefaults(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient("redis://"+mr.Addr(), "", 0, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, "tada:dedupe:", client.prefix)
	assert.Equal(t, 10*time.Minute, client.ttl)
}

func TestSeenFirstTimeThenDuplicate(t *testing.T) {
	_, client := newTestClient(t, "test:", time.Hour)
	ctx := context.Background()

	assert.False(t, client.Seen(ctx, "evt-1"))
	assert.True(t, client.Seen(ctx, "evt-1"))
}

func TestSeenIsIsolatedPerKey(t *testing.T) {
	_, client := newTestClient(t, "test:", time.Hour)
	ctx := context.Background()

	assert.False(t, client.Seen(ctx, "evt-1"))
	assert.False(t, client.Seen(ctx, "evt-2"))
}

func TestSeenTreatsRedisFailureAsUnseen(t *testing.T) {
	mr, client := newTestClient(t, "test:", time.Hour)
	mr.Close()

	assert.False(t, client.Seen(context.Background(), "evt-1"))
}
