package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientLimiterEvictsIdleClients(t *testing.T) {
	c := newClientLimiter(1, 1)
	c.get("192.0.2.1")
	c.get("192.0.2.2")

	// Age one entry past the idle timeout, keep the other fresh.
	c.mu.Lock()
	c.limiters["192.0.2.1"].lastSeen = time.Now().Add(-2 * clientIdleTimeout)
	c.mu.Unlock()

	// A new address triggers the sweep.
	c.get("192.0.2.3")

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.NotContains(t, c.limiters, "192.0.2.1")
	assert.Contains(t, c.limiters, "192.0.2.2")
	assert.Contains(t, c.limiters, "192.0.2.3")
}

func TestClientLimiterKeepsPerClientState(t *testing.T) {
	c := newClientLimiter(1, 1)

	// Each address has its own bucket; exhausting one leaves the other full.
	assert.True(t, c.get("192.0.2.1").Allow())
	assert.False(t, c.get("192.0.2.1").Allow())
	assert.True(t, c.get("192.0.2.2").Allow())
}
