// Package task runs fire-and-forget side effects (usage logging, login
// timestamps) off the request path. Each task gets its own detached context
// and error channel: failures are logged, never propagated to the caller.
package task

import (
	"context"
	"log"
	"sync"
	"time"
)

const defaultTimeout = 10 * time.Second

type Runner struct {
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewRunner() *Runner {
	return &Runner{timeout: defaultTimeout}
}

// Go fires fn in the background. The context is detached from the caller so
// the task survives the originating request; it is bounded by the runner's
// timeout instead. Panics are recovered and logged.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[task] %s panicked: %v", name, rec)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			log.Printf("[task] %s failed: %v", name, err)
		}
	}()
}

// Wait blocks until all fired tasks finish. Used to drain during shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}
