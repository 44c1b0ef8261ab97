package socket

import (
	"sync"
	"testing"
	"time"

	"github.com/ebarros/parley/internal/config"
)

func TestReconnectorBudget(t *testing.T) {
	r := newReconnector(config.Reconnect{MaxAttempts: 3, BaseDelayMS: 10})

	for i := 0; i < 3; i++ {
		if !r.shouldReconnect() {
			t.Fatalf("budget exhausted after %d attempts, want 3", i)
		}
		r.next()
	}
	if r.shouldReconnect() {
		t.Fatalf("budget not exhausted after 3 attempts")
	}

	r.reset()
	if !r.shouldReconnect() {
		t.Errorf("reset did not restore the budget")
	}
}

func TestReconnectorUnlimitedWhenZero(t *testing.T) {
	r := newReconnector(config.Reconnect{MaxAttempts: 0, BaseDelayMS: 10})
	for i := 0; i < 50; i++ {
		if !r.shouldReconnect() {
			t.Fatalf("zero max attempts must never exhaust, stopped at %d", i)
		}
		r.next()
	}
}

func TestReconnectorBackoffBounds(t *testing.T) {
	base := 10 * time.Millisecond
	r := newReconnector(config.Reconnect{MaxAttempts: 0, BaseDelayMS: 10})

	for i := 0; i < 4; i++ {
		delay, attempt := r.next()
		if attempt != i+1 {
			t.Fatalf("attempt = %d, want %d", attempt, i+1)
		}
		min := base << i
		max := min + base/2
		if delay < min || delay > max {
			t.Errorf("attempt %d delay = %v, want within [%v, %v]", attempt, delay, min, max)
		}
	}
}

func TestReconnectorDelayCapped(t *testing.T) {
	r := newReconnector(config.Reconnect{MaxAttempts: 0, BaseDelayMS: 10000})
	for i := 0; i < 10; i++ {
		if delay, _ := r.next(); delay > reconnectMaxDelay {
			t.Fatalf("delay %v exceeds cap %v", delay, reconnectMaxDelay)
		}
	}
}

// markConnected fires from the dial path while next, reset and
// shouldReconnect run from the retry scheduler; hammer them together.
func TestReconnectorConcurrentAccess(t *testing.T) {
	r := newReconnector(config.Reconnect{MaxAttempts: 0, BaseDelayMS: 1})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				r.markConnected()
				r.shouldReconnect()
				r.next()
				r.reset()
			}
		}()
	}
	wg.Wait()
}
