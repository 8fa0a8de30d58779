// Package worker runs stockwatch's long-lived goroutines: trackers, the
// check scheduler and the notification dispatcher.
package worker

import "context"

// Worker is a long-running background task. Run blocks until ctx is
// cancelled or the task fails.
type Worker interface {
	Run(ctx context.Context) error
}

// Named is implemented by workers that report an identifier for logs.
type Named interface {
	Name() string
}
