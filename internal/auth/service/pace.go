package service

import (
	"context"
	"time"
)

const (
	// DefaultResponseFloor is how long the mail-sending request endpoints
	// take, whether or not the address has an account.
	DefaultResponseFloor = 500 * time.Millisecond

	detachedWorkTimeout = 30 * time.Second
)

// respondAfter runs work so that its duration never shows in the caller's
// latency. With a positive floor the work is detached from ctx cancellation
// and the call returns once floor has passed; work still running then
// finishes in the background. A floor of zero or less runs work inline.
func respondAfter(ctx context.Context, floor time.Duration, work func(ctx context.Context)) {
	if floor <= 0 {
		work(ctx)
		return
	}

	timer := time.NewTimer(floor)
	defer timer.Stop()

	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedWorkTimeout)
	go func() {
		defer cancel()
		work(detached)
	}()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
