package worker

import (
	"context"
	"log/slog"
	"time"

	stockwatch "github.com/eugener/stockwatch/internal"
)

const (
	dispatchChanSize  = 256
	dispatchDrainTime = 30 * time.Second
)

type dispatch struct {
	ctx context.Context
	res *stockwatch.DropResult
}

// Dispatcher moves slow notification callbacks off the tracker loop. Its
// Callback enqueues each result and Run delivers them to the sink in arrival
// order. Results are dropped when the queue is full.
type Dispatcher struct {
	ch   chan dispatch
	sink stockwatch.Callback
}

// NewDispatcher creates a Dispatcher delivering to sink.
func NewDispatcher(sink stockwatch.Callback) *Dispatcher {
	return &Dispatcher{
		ch:   make(chan dispatch, dispatchChanSize),
		sink: sink,
	}
}

// Name returns the worker identifier.
func (d *Dispatcher) Name() string { return "dispatcher" }

// Callback returns a handler that enqueues results. It never blocks.
// Context values (tracker, check ID) travel with the result; cancellation
// does not.
func (d *Dispatcher) Callback() stockwatch.Callback {
	return func(ctx context.Context, res *stockwatch.DropResult) {
		select {
		case d.ch <- dispatch{ctx: context.WithoutCancel(ctx), res: res}:
		default:
			slog.LogAttrs(ctx, slog.LevelWarn, "notification dropped, queue full",
				slog.String("tracker", stockwatch.TrackerFromContext(ctx)),
				slog.String("check_id", stockwatch.CheckIDFromContext(ctx)),
			)
		}
	}
}

// Run delivers queued results until ctx is cancelled, then drains what is
// left within a bounded time.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case n := <-d.ch:
			d.sink(n.ctx, n.res)
		case <-ctx.Done():
			d.drain()
			return nil
		}
	}
}

func (d *Dispatcher) drain() {
	deadline := time.Now().Add(dispatchDrainTime)
	for {
		select {
		case n := <-d.ch:
			if time.Now().After(deadline) {
				slog.Warn("dispatcher drain timed out", "remaining", len(d.ch)+1)
				return
			}
			d.sink(n.ctx, n.res)
		default:
			return
		}
	}
}
