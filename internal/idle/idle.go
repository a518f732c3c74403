// Package idle grants short cooperative time slices for non-urgent
// background work, approximating a host environment's idle callbacks.
package idle

import (
	"context"
	"time"
)

// Slice is one bounded window of background work. The receiver should stop
// (or bound its own work by) Remaining.
type Slice struct {
	deadline time.Time
}

// SliceFor returns a slice ending after the given length, measured from now.
func SliceFor(length time.Duration) Slice {
	return Slice{deadline: time.Now().Add(length)}
}

// Deadline returns the slice's end time.
func (s Slice) Deadline() time.Time {
	return s.deadline
}

// Remaining returns the time left in the slice, never negative.
func (s Slice) Remaining() time.Duration {
	d := time.Until(s.deadline)
	if d < 0 {
		return 0
	}
	return d
}

// Scheduler hands out idle slices. Next blocks until a slice is granted or
// the context ends.
type Scheduler interface {
	Next(ctx context.Context) (Slice, error)
}

// TimerScheduler grants fixed-length slices after a short delay, yielding
// the cpu between grants.
type TimerScheduler struct {
	Delay  time.Duration // wait before a slice is granted
	Length time.Duration // length of each granted slice
}

// NewTimerScheduler creates a scheduler with the given delay and slice length.
func NewTimerScheduler(delay, length time.Duration) *TimerScheduler {
	return &TimerScheduler{Delay: delay, Length: length}
}

// Next waits for the configured delay, then grants a slice.
func (t *TimerScheduler) Next(ctx context.Context) (Slice, error) {
	timer := time.NewTimer(t.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Slice{}, ctx.Err()
	case <-timer.C:
	}
	return SliceFor(t.Length), nil
}

// ManualScheduler grants slices only when Grant is called. Useful for tests
// and embedders that drive their own scheduling loop.
type ManualScheduler struct {
	slices  chan Slice
	waiting chan struct{}
}

// NewManualScheduler creates an ungranted manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{
		slices:  make(chan Slice),
		waiting: make(chan struct{}, 1),
	}
}

// Grant hands one slice of the given length to a waiting Next call. Blocks
// until a waiter takes it.
func (m *ManualScheduler) Grant(length time.Duration) {
	m.slices <- SliceFor(length)
}

// Waiting signals each time a Next call starts waiting for a grant.
func (m *ManualScheduler) Waiting() <-chan struct{} {
	return m.waiting
}

// Next blocks until a slice is granted or the context ends.
func (m *ManualScheduler) Next(ctx context.Context) (Slice, error) {
	select {
	case m.waiting <- struct{}{}:
	default:
	}
	select {
	case <-ctx.Done():
		return Slice{}, ctx.Err()
	case slice := <-m.slices:
		return slice, nil
	}
}

var (
	_ Scheduler = (*TimerScheduler)(nil)
	_ Scheduler = (*ManualScheduler)(nil)
)
