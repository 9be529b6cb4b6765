package campaign

import "context"

// ChanSemaphore is the production callcontroller.Semaphore: a buffered
// channel of empty structs bounds concurrently active calls to its
// capacity (§5 concurrency cap). One instance is shared by every call the
// Runner dispatches for all campaigns, matching the spec's single
// process-wide `max_concurrent_calls`.
type ChanSemaphore struct {
	slots chan struct{}
}

// NewChanSemaphore builds a ChanSemaphore with room for n concurrently
// active calls.
func NewChanSemaphore(n int) *ChanSemaphore {
	if n <= 0 {
		n = 1
	}
	return &ChanSemaphore{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or ctx is cancelled.
func (s *ChanSemaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees one slot. Safe to call even if Acquire was never called
// successfully only when paired correctly by the caller; RunCall always
// pairs its Acquire/Release with a defer.
func (s *ChanSemaphore) Release() {
	select {
	case <-s.slots:
	default:
	}
}

// InUse reports the number of slots currently held, for metrics/logging.
func (s *ChanSemaphore) InUse() int { return len(s.slots) }
