// Package tracker implements the stock tracker worker: a background loop that
// performs one check per queued request and reports each outcome to a
// callback until it is stopped.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	stockwatch "github.com/eugener/stockwatch/internal"
)

// State is the lifecycle position of a Tracker.
type State int

const (
	Created State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrorPolicy decides what the loop does when a check returns an error.
type ErrorPolicy int

const (
	// ContinueOnError logs the error, skips the callback and keeps serving requests.
	ContinueOnError ErrorPolicy = iota
	// StopOnError ends the loop and returns the error from Run.
	StopOnError
)

// ParseErrorPolicy maps a config value ("continue", "stop") to an ErrorPolicy.
// The empty string selects ContinueOnError.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch s {
	case "", "continue":
		return ContinueOnError, nil
	case "stop":
		return StopOnError, nil
	default:
		return 0, fmt.Errorf("unknown error policy %q: %w", s, stockwatch.ErrBadRequest)
	}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithCallback sets the initial result handler.
func WithCallback(cb stockwatch.Callback) Option {
	return func(t *Tracker) {
		if cb != nil {
			t.callback = cb
		}
	}
}

// WithErrorPolicy sets how check errors are handled.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(t *Tracker) { t.policy = p }
}

// WithTestMode marks the tracker as running against test fixtures. It only
// adds an attribute to the tracker's log lines.
func WithTestMode(on bool) Option {
	return func(t *Tracker) { t.testMode = on }
}

// WithDrainOnStop controls whether requests queued before Stop are still
// served. When false the loop exits at its first wake-up after Stop.
func WithDrainOnStop(drain bool) Option {
	return func(t *Tracker) { t.drain = drain }
}

// WithLogger sets the logger used for lifecycle and diagnostic messages.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// Tracker runs checks on request. The gate counts pending requests; Run
// blocks only while the gate is zero. Stop is one-shot and wakes the loop
// through the gate, so a stopped tracker never stays blocked.
//
// A Tracker is not restartable: once Run returns it stays Stopped.
type Tracker struct {
	name     string
	checker  stockwatch.Checker
	policy   ErrorPolicy
	testMode bool
	drain    bool
	logger   *slog.Logger

	mu       sync.Mutex
	wake     *sync.Cond
	gate     int // pending wake-ups, never negative
	stopped  bool
	owed     int // requests queued before Stop that are still served
	state    State
	callback stockwatch.Callback
}

// New creates a Tracker. A nil checker leaves the tracker unspecialized:
// its first check panics with ErrAbstractCheck.
func New(name string, checker stockwatch.Checker, opts ...Option) *Tracker {
	t := &Tracker{
		name:   name,
		drain:  true,
		logger: slog.Default(),
	}
	if checker == nil {
		checker = Unimplemented{Name: name}
	}
	t.checker = checker
	t.callback = t.defaultCallback
	t.wake = sync.NewCond(&t.mu)
	for _, o := range opts {
		o(t)
	}
	t.logger = t.logger.With(slog.String("tracker", name))
	if t.testMode {
		t.logger = t.logger.With(slog.Bool("test_mode", true))
	}
	return t
}

// Name returns the tracker identifier.
func (t *Tracker) Name() string { return t.name }

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Pending returns the number of queued wake-ups not yet consumed by the loop.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gate
}

// Stopped reports whether Stop has been called.
func (t *Tracker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// RequestCheck queues one check. N calls queue N checks. It never blocks.
func (t *Tracker) RequestCheck() {
	t.mu.Lock()
	t.gate++
	t.mu.Unlock()
	t.wake.Signal()
}

// Stop prevents new checks from starting and makes Run return once the
// check in flight, if any, completes. Requests queued before the first Stop
// are still served unless draining is disabled. Calling Stop again only
// issues another wake-up.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.stopped {
		t.stopped = true
		if t.drain {
			t.owed = t.gate
		}
		if t.state == Running {
			t.state = Stopping
		}
	}
	t.mu.Unlock()
	t.RequestCheck()
	t.logger.Info("stop requested")
}

// SetCallback replaces the result handler; nil restores the default. The
// loop picks the handler up when it dequeues its next request, so a check
// already in flight still reports to the previous handler. Concurrent calls
// to SetCallback from several goroutines are the caller's to serialize.
func (t *Tracker) SetCallback(cb stockwatch.Callback) {
	if cb == nil {
		cb = t.defaultCallback
	}
	t.mu.Lock()
	t.callback = cb
	t.mu.Unlock()
}

// Check runs the tracker's check capability once, outside the loop.
// On an unspecialized tracker it panics with ErrAbstractCheck.
func (t *Tracker) Check(ctx context.Context) (*stockwatch.DropResult, error) {
	return t.checker.Check(ctx)
}

// Run is the tracker loop. It blocks until Stop is called (or ctx is
// cancelled, which calls Stop) and the last check completes. Cancelling ctx
// does not interrupt a check in flight.
func (t *Tracker) Run(ctx context.Context) error {
	t.mu.Lock()
	switch {
	case t.state == Stopped:
		t.mu.Unlock()
		return fmt.Errorf("tracker %q: %w", t.name, stockwatch.ErrStopped)
	case t.state != Created:
		t.mu.Unlock()
		return fmt.Errorf("tracker %q: %w", t.name, stockwatch.ErrAlreadyStarted)
	case t.stopped:
		t.state = Stopping
	default:
		t.state = Running
	}
	t.mu.Unlock()

	stopOnCancel := context.AfterFunc(ctx, t.Stop)
	defer stopOnCancel()

	t.logger.Info("tracker started")
	defer func() {
		t.mu.Lock()
		t.state = Stopped
		t.mu.Unlock()
		t.logger.Info("tracker exiting")
	}()

	checkCtx := stockwatch.ContextWithTracker(context.WithoutCancel(ctx), t.name)
	for {
		cb, ok := t.next()
		if !ok {
			return nil
		}
		if err := t.runCheck(checkCtx, cb); err != nil {
			return err
		}
	}
}

// next blocks until the gate is non-zero and consumes one wake-up. It
// returns false when the loop should exit.
func (t *Tracker) next() (stockwatch.Callback, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.gate == 0 {
		t.wake.Wait()
	}
	t.gate--
	if t.stopped {
		if t.owed == 0 {
			return nil, false
		}
		t.owed--
	}
	return t.callback, true
}

func (t *Tracker) runCheck(ctx context.Context, cb stockwatch.Callback) error {
	id := uuid.Must(uuid.NewV7()).String()
	ctx = stockwatch.ContextWithCheckID(ctx, id)

	result, err := t.checker.Check(ctx)
	if err != nil {
		if t.policy == StopOnError {
			return fmt.Errorf("tracker %q: check: %w", t.name, err)
		}
		t.logger.LogAttrs(ctx, slog.LevelError, "check failed",
			slog.String("check_id", id),
			slog.String("error", err.Error()),
		)
		return nil
	}
	cb(ctx, result)
	return nil
}

func (t *Tracker) defaultCallback(ctx context.Context, _ *stockwatch.DropResult) {
	t.logger.LogAttrs(ctx, slog.LevelWarn, "callback unimplemented")
}

// Unimplemented is the checker of an unspecialized tracker. Invoking it is a
// programming error and always panics.
type Unimplemented struct {
	Name string
}

// Check panics with an error wrapping ErrAbstractCheck.
func (u Unimplemented) Check(context.Context) (*stockwatch.DropResult, error) {
	panic(fmt.Errorf("tracker %q: %w", u.Name, stockwatch.ErrAbstractCheck))
}
