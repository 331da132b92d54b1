package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher sends notifications in the background so a committed write
// never waits on, or fails because of, the notification service.
//
// LIFECYCLE:
// Dispatch starts one goroutine per message. Each send gets its own timeout
// and a context detached from the request, because the request is usually
// finished before the send is. Wait blocks until every in-flight send is
// done; after Close, new messages are dropped.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	logger   *slog.Logger

	// OnResult, if set, is called once per send with its outcome.
	OnResult func(err error)

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. timeout bounds each individual send.
func NewDispatcher(n Notifier, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		notifier: n,
		timeout:  timeout,
		logger:   logger.With(slog.String("component", "notify.Dispatcher")),
	}
}

// Dispatch queues message for username and returns immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, username, message string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.WarnContext(ctx, "dispatcher closed, dropping notification",
			slog.String("username", username))
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	// Keep request-scoped values (request id) for logging, drop cancellation.
	sendCtx := context.WithoutCancel(ctx)

	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(sendCtx, d.timeout)
		defer cancel()

		err := d.notifier.Notify(ctx, username, message)
		if err != nil {
			d.logger.ErrorContext(ctx, "notification failed",
				slog.String("username", username),
				slog.Any("error", err),
			)
		}
		if d.OnResult != nil {
			d.OnResult(err)
		}
	}()
}

// Wait blocks until in-flight sends finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages and waits for in-flight sends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return d.Wait(ctx)
}
