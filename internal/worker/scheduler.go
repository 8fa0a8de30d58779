package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Requester receives check requests from the Scheduler.
type Requester interface {
	Name() string
	RequestCheck()
}

// stopper is implemented by targets that can report a stop request. The
// scheduler ends a target's schedule once it has been stopped.
type stopper interface {
	Stopped() bool
}

// Schedule asks Target for a check every Interval. A zero Interval means
// the target is only checked on demand (and at startup when Immediate).
type Schedule struct {
	Target    Requester
	Interval  time.Duration
	Immediate bool
}

// Scheduler periodically requests checks from trackers. It only queues
// requests; the trackers decide when each check actually runs.
type Scheduler struct {
	schedules []Schedule
}

// NewScheduler creates a Scheduler for the given schedules.
func NewScheduler(schedules ...Schedule) *Scheduler {
	return &Scheduler{schedules: schedules}
}

// Name returns the worker identifier.
func (s *Scheduler) Name() string { return "scheduler" }

// Run issues check requests until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, sc := range s.schedules {
		if sc.Immediate {
			sc.Target.RequestCheck()
		}
		if sc.Interval <= 0 {
			continue
		}
		wg.Go(func() { s.tick(ctx, sc) })
	}
	<-ctx.Done()
	wg.Wait()
	return nil
}

func (s *Scheduler) tick(ctx context.Context, sc Schedule) {
	slog.LogAttrs(ctx, slog.LevelDebug, "schedule started",
		slog.String("tracker", sc.Target.Name()),
		slog.Duration("interval", sc.Interval),
	)

	ticker := time.NewTicker(sc.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if st, ok := sc.Target.(stopper); ok && st.Stopped() {
				slog.LogAttrs(ctx, slog.LevelDebug, "schedule ended, tracker stopped",
					slog.String("tracker", sc.Target.Name()),
				)
				return
			}
			sc.Target.RequestCheck()
		case <-ctx.Done():
			return
		}
	}
}
