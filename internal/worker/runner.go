package worker

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Runner runs a group of workers and tears the whole group down when one
// of them fails. Downstream workers consume what the group produces: they
// start with it but are cancelled only after every group worker returned.
type Runner struct {
	workers    []Worker
	downstream []Worker
}

// NewRunner creates a Runner with the given workers.
func NewRunner(workers ...Worker) *Runner {
	return &Runner{workers: workers}
}

// Add appends workers. It must not be called once Run has started.
func (r *Runner) Add(workers ...Worker) {
	r.workers = append(r.workers, workers...)
}

// AddDownstream appends workers that are shut down after the group. It must
// not be called once Run has started.
func (r *Runner) AddDownstream(workers ...Worker) {
	r.downstream = append(r.downstream, workers...)
}

// Run blocks until every worker has returned. The first worker error
// cancels the shared context and is returned, annotated with the worker
// name. A worker returning nil does not affect its siblings. A downstream
// failure also cancels the group.
func (r *Runner) Run(ctx context.Context) error {
	groupCtx, cancelGroup := context.WithCancel(ctx)
	defer cancelGroup()
	downCtx, cancelDown := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelDown()

	downErr := make(chan error, 1)
	go func() {
		err := runGroup(downCtx, r.downstream)
		if err != nil {
			cancelGroup()
		}
		downErr <- err
	}()

	err := runGroup(groupCtx, r.workers)
	cancelDown()
	if derr := <-downErr; err == nil {
		err = derr
	}
	return err
}

func runGroup(ctx context.Context, workers []Worker) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		name := workerName(w)
		slog.LogAttrs(ctx, slog.LevelInfo, "worker started", slog.String("name", name))
		g.Go(func() error {
			if err := w.Run(ctx); err != nil {
				slog.LogAttrs(ctx, slog.LevelError, "worker failed",
					slog.String("name", name),
					slog.String("error", err.Error()),
				)
				return fmt.Errorf("worker %s: %w", name, err)
			}
			slog.LogAttrs(ctx, slog.LevelDebug, "worker stopped", slog.String("name", name))
			return nil
		})
	}
	return g.Wait()
}

func workerName(w Worker) string {
	if n, ok := w.(Named); ok {
		return n.Name()
	}
	return "unknown"
}
