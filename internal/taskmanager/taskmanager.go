// Package taskmanager owns the single background goroutine a transport
// runs its eventloop on, and stops it when Close is called. Dropping the
// last handle does not stop it; Close must be called explicitly. It is
// the Go realization of the CancellationToken +
// spawned-task pattern the teacher's daemon lifecycle uses (start the
// worker goroutine, cancel a context on shutdown, wait with a timeout).
package taskmanager

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultShutdownTimeout matches the transport's default shutdown_timeout.
const DefaultShutdownTimeout = 10 * time.Second

// TaskManager runs exactly one task and cancels it when Close is called.
// Nothing cancels it when the handle that owns it goes out of scope; only
// an explicit Close does. Close is idempotent and safe to call from
// multiple goroutines; only the first call triggers cancellation.
type TaskManager struct {
	cancel  context.CancelFunc
	done    chan struct{}
	timeout time.Duration

	closeOnce sync.Once
}

// New creates a TaskManager and immediately spawns fn in a goroutine,
// passing it a context that is cancelled when Close is called.
func New(shutdownTimeout time.Duration, fn func(ctx context.Context)) *TaskManager {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	tm := &TaskManager{
		cancel:  cancel,
		done:    make(chan struct{}),
		timeout: shutdownTimeout,
	}
	go func() {
		defer close(tm.done)
		fn(ctx)
	}()
	return tm
}

// Close cancels the task and waits up to the configured shutdown timeout
// for it to exit. A task that doesn't exit in time is abandoned with a
// warning log rather than blocking the caller forever.
func (tm *TaskManager) Close() {
	tm.closeOnce.Do(func() {
		tm.cancel()
		select {
		case <-tm.done:
		case <-time.After(tm.timeout):
			slog.Warn("task did not shut down within timeout", "timeout", tm.timeout)
		}
	})
}
