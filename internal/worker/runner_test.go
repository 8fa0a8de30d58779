package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	stockwatch "github.com/eugener/stockwatch/internal"
	"github.com/eugener/stockwatch/internal/testutil"
	"github.com/eugener/stockwatch/internal/tracker"
)

type fakeWorker struct {
	runFn func(ctx context.Context) error
}

func (f *fakeWorker) Run(ctx context.Context) error {
	if f.runFn != nil {
		return f.runFn(ctx)
	}
	<-ctx.Done()
	return nil
}

func TestRunner_StopOnCancel(t *testing.T) {
	t.Parallel()
	w := &fakeWorker{}
	r := NewRunner(w)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}

func TestRunner_PropagateError(t *testing.T) {
	t.Parallel()
	testErr := errors.New("worker failed")
	w := &fakeWorker{runFn: func(context.Context) error { return testErr }}
	r := NewRunner(w)

	ctx := t.Context()

	err := r.Run(ctx)
	if !errors.Is(err, testErr) {
		t.Errorf("err = %v, want %v", err, testErr)
	}
}

func TestRunner_MultipleWorkers(t *testing.T) {
	t.Parallel()
	var count atomic.Int32
	w1 := &fakeWorker{runFn: func(ctx context.Context) error { count.Add(1); <-ctx.Done(); return nil }}
	w2 := &fakeWorker{runFn: func(ctx context.Context) error { count.Add(1); <-ctx.Done(); return nil }}
	r := NewRunner(w1, w2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if count.Load() != 2 {
			t.Errorf("count = %d, want 2", count.Load())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunner_StopsTrackersOnCancel(t *testing.T) {
	t.Parallel()
	checker := &testutil.FakeChecker{}
	tr := tracker.New("shop", checker,
		tracker.WithCallback(func(context.Context, *stockwatch.DropResult) {}),
		tracker.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	r := NewRunner()
	r.Add(tr, NewScheduler(Schedule{Target: tr, Immediate: true}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for checker.Calls() < 1 {
		select {
		case <-deadline:
			t.Fatal("immediate check did not run")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	if tr.State() != tracker.Stopped {
		t.Errorf("tracker state = %v, want stopped", tr.State())
	}
}

func TestRunner_TrackerErrorCancelsSiblings(t *testing.T) {
	t.Parallel()
	checkErr := errors.New("upstream gone")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	failing := tracker.New("failing", &testutil.FakeChecker{
		CheckFn: func(context.Context, int) (*stockwatch.DropResult, error) { return nil, checkErr },
	}, tracker.WithErrorPolicy(tracker.StopOnError), tracker.WithLogger(logger))
	healthy := tracker.New("healthy", &testutil.FakeChecker{}, tracker.WithLogger(logger))

	failing.RequestCheck()
	r := NewRunner(failing, healthy)

	err := r.Run(t.Context())
	if !errors.Is(err, checkErr) {
		t.Fatalf("err = %v, want %v", err, checkErr)
	}
	if healthy.State() != tracker.Stopped {
		t.Errorf("sibling state = %v, want stopped", healthy.State())
	}
}

func TestWorkerName(t *testing.T) {
	t.Parallel()
	tr := tracker.New("named", nil)
	if got := workerName(tr); got != "named" {
		t.Errorf("name = %q, want named", got)
	}
	if got := workerName(&fakeWorker{}); got != "unknown" {
		t.Errorf("name = %q, want unknown", got)
	}
}

func TestRunner_DownstreamDeliversFinalDrops(t *testing.T) {
	t.Parallel()
	entered := make(chan struct{})
	release := make(chan struct{})
	checker := &testutil.FakeChecker{
		CheckFn: func(_ context.Context, n int) (*stockwatch.DropResult, error) {
			if n == 1 {
				close(entered)
				<-release
			}
			return stockwatch.NewDropResult(time.Now(), nil, "last"), nil
		},
	}
	sink := &sinkRecorder{}
	dispatcher := NewDispatcher(sink.callback)
	tr := tracker.New("shop", checker,
		tracker.WithCallback(dispatcher.Callback()),
		tracker.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	tr.RequestCheck()

	r := NewRunner(tr)
	r.AddDownstream(dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	<-entered
	cancel()
	// Give the dispatcher a chance to exit early if it were cancelled with
	// the trackers.
	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	if got := sink.len(); got != 1 {
		t.Fatalf("drops delivered after shutdown = %d, want 1", got)
	}
	if sink.infos[0] != "last" || sink.trackers[0] != "shop" {
		t.Errorf("delivered %q from %q", sink.infos[0], sink.trackers[0])
	}
}

func TestRunner_DownstreamFailureCancelsGroup(t *testing.T) {
	t.Parallel()
	downErr := errors.New("sink broken")
	upstream := &fakeWorker{}
	downstream := &fakeWorker{runFn: func(context.Context) error { return downErr }}
	r := NewRunner(upstream)
	r.AddDownstream(downstream)

	done := make(chan error, 1)
	go func() { done <- r.Run(t.Context()) }()

	select {
	case err := <-done:
		if !errors.Is(err, downErr) {
			t.Errorf("err = %v, want %v", err, downErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after downstream failure")
	}
}

func TestRunner_DownstreamStopsWithGroup(t *testing.T) {
	t.Parallel()
	var downStopped atomic.Bool
	downstream := &fakeWorker{runFn: func(ctx context.Context) error {
		<-ctx.Done()
		downStopped.Store(true)
		return nil
	}}
	r := NewRunner(&fakeWorker{runFn: func(context.Context) error { return nil }})
	r.AddDownstream(downstream)

	if err := r.Run(t.Context()); err != nil {
		t.Fatal(err)
	}
	if !downStopped.Load() {
		t.Error("downstream should be cancelled once the group returns")
	}
}
