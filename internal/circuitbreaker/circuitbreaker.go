// Package circuitbreaker guards a shop endpoint against being polled while
// it is failing. A breaker trips on a weighted error rate over the most
// recent checks, rejects checks while open, and lets one probe through
// after a cool-down.
package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows all checks through.
	StateClosed State = iota
	// StateOpen rejects all checks.
	StateOpen
	// StateHalfOpen allows a single probe check.
	StateHalfOpen
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker parameters.
type Config struct {
	ErrorThreshold float64       // weighted error rate to trip (e.g. 0.5)
	MinSamples     int           // outcomes required before the breaker can open
	Window         int           // number of most recent outcomes considered
	OpenTimeout    time.Duration // time in OPEN before a probe is allowed
}

// DefaultConfig returns defaults sized for checks that run minutes apart.
func DefaultConfig() Config {
	return Config{
		ErrorThreshold: 0.5,
		MinSamples:     4,
		Window:         10,
		OpenTimeout:    5 * time.Minute,
	}
}

// window is a ring of the last N outcome weights. Weight 0 is success.
type window struct {
	weights []float64
	next    int
	filled  int
}

func newWindow(size int) window {
	if size <= 0 {
		size = DefaultConfig().Window
	}
	return window{weights: make([]float64, size)}
}

func (w *window) record(weight float64) {
	w.weights[w.next] = weight
	w.next = (w.next + 1) % len(w.weights)
	w.filled = min(w.filled+1, len(w.weights))
}

// errorRate returns the mean weight and the number of recorded outcomes.
func (w *window) errorRate() (rate float64, samples int) {
	if w.filled == 0 {
		return 0, 0
	}
	var sum float64
	for i := range w.filled {
		sum += w.weights[i]
	}
	return sum / float64(w.filled), w.filled
}

func (w *window) reset() {
	clear(w.weights)
	w.next = 0
	w.filled = 0
}

// Breaker is a circuit breaker state machine. It is safe for concurrent use.
type Breaker struct {
	mu       sync.Mutex
	cfg      Config
	state    State
	window   window
	openedAt time.Time
	probing  bool
	now      func() time.Time
}

// NewBreaker creates a breaker with the given config.
func NewBreaker(cfg Config) *Breaker {
	return &Breaker{
		cfg:    cfg,
		window: newWindow(cfg.Window),
		now:    time.Now,
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a check may proceed. In HALF_OPEN exactly one
// probe is admitted until its outcome is recorded.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.OpenTimeout {
			return false
		}
		b.state = StateHalfOpen
		b.probing = true
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return false
}

// Record feeds one check outcome with the given error weight into the
// breaker. Weight 0 is a success.
func (b *Breaker) Record(weight float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.probing = false
		if weight > 0 {
			b.trip()
			return
		}
		b.state = StateClosed
		b.window.reset()
		return
	}

	b.window.record(weight)
	if b.state != StateClosed || weight == 0 {
		return
	}
	rate, samples := b.window.errorRate()
	if samples >= b.cfg.MinSamples && rate >= b.cfg.ErrorThreshold {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
}
