package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	assert.Equal(t, 1*time.Second, Backoff(0))
	assert.Equal(t, 2*time.Second, Backoff(1))
	assert.Equal(t, 32*time.Second, Backoff(5))
	assert.Equal(t, 1024*time.Second, Backoff(10))

	// Capped at one hour from attempt 12 onward.
	assert.Equal(t, time.Hour, Backoff(12))
	assert.Equal(t, time.Hour, Backoff(40))
}
