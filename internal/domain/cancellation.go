package domain

import "sync/atomic"

// CancellationToken is the cooperative cancellation flag of a single run.
// The scheduler polls it between test contexts and never interrupts a running one.
type CancellationToken struct {
	cancelled atomic.Bool
}

// NewCancellationToken returns an unset token.
func NewCancellationToken() *CancellationToken {
	return &CancellationToken{}
}

// Cancel sets the token. It is safe to call from any goroutine, any number of times.
func (t *CancellationToken) Cancel() {
	t.cancelled.Store(true)
}

// IsCancelled reports whether Cancel was called.
func (t *CancellationToken) IsCancelled() bool {
	return t != nil && t.cancelled.Load()
}
