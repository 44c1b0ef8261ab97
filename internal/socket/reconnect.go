package socket

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/ebarros/parley/internal/config"
)

// reconnector tracks automatic retry budget and delays. Attempts grow the
// delay exponentially from the base, capped at maxDelay; a connection that
// stayed up for a minute earns a fresh budget. It carries its own lock:
// markConnected fires from the dial path while next and reset run from the
// retry scheduler.
type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int

	mu          sync.Mutex
	attempt     int
	connectedAt time.Time
}

const reconnectMaxDelay = 30 * time.Second

func newReconnector(policy config.Reconnect) *reconnector {
	return &reconnector{
		baseDelay:   policy.BaseDelay(),
		maxDelay:    reconnectMaxDelay,
		maxAttempts: policy.MaxAttempts,
	}
}

func (r *reconnector) shouldReconnect() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxAttempts == 0 || r.attempt < r.maxAttempts
}

func (r *reconnector) markConnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectedAt = time.Now()
}

// next returns the delay before the upcoming attempt and its 1-based number.
func (r *reconnector) next() (time.Duration, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > 60*time.Second {
		r.attempt = 0
	}
	jitter := time.Duration(rand.Float64() * float64(r.baseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.maxDelay),
	))
	r.attempt++
	return delay, r.attempt
}

func (r *reconnector) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempt = 0
	r.connectedAt = time.Time{}
}
