package dispatcher

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostPoolAcquireAllowsFreshHost(t *testing.T) {
	pool := NewHostPool(zerolog.Nop())
	client, allowed := pool.Acquire("example.com")
	require.True(t, allowed)
	assert.NotNil(t, client)
}

func TestHostPoolMarkUnhealthyBlocksAcquire(t *testing.T) {
	pool := NewHostPool(zerolog.Nop())
	pool.MarkUnhealthy("example.com")
	_, allowed := pool.Acquire("example.com")
	assert.False(t, allowed)
}

func TestHostPoolMarkHealthyClearsCooldownAndUnhealthy(t *testing.T) {
	pool := NewHostPool(zerolog.Nop())
	pool.MarkUnhealthy("example.com")
	pool.Cooldown("example.com", time.Hour)
	pool.MarkHealthy("example.com")

	_, allowed := pool.Acquire("example.com")
	assert.True(t, allowed)
}

func TestHostPoolCooldownBlocksUntilExpiry(t *testing.T) {
	pool := NewHostPool(zerolog.Nop())
	pool.Cooldown("example.com", 20*time.Millisecond)

	_, allowed := pool.Acquire("example.com")
	assert.False(t, allowed)

	time.Sleep(30 * time.Millisecond)
	_, allowed = pool.Acquire("example.com")
	assert.True(t, allowed)
}
