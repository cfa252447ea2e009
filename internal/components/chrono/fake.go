package chrono

import (
	"context"
	"sync"
	"time"
)

// FakeTime is a TimeAPI whose clock only moves when Sleep or Advance is called.
// Every requested sleep is recorded so loops can be asserted on without waiting.
type FakeTime struct {
	mutex    sync.Mutex
	now      time.Time
	sleeps   []time.Duration
	onSleep  func(d time.Duration)
	location *time.Location
}

func NewFakeTime(start time.Time) *FakeTime {
	return &FakeTime{now: start, location: start.Location()}
}

// OnSleep registers a hook that runs after every recorded sleep, tests use it to
// cancel a loop after a given number of iterations.
func (f *FakeTime) OnSleep(fn func(d time.Duration)) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.onSleep = fn
}

func (f *FakeTime) Now() time.Time {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.now
}

func (f *FakeTime) Location() *time.Location {
	return f.location
}

func (f *FakeTime) Advance(d time.Duration) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.now = f.now.Add(d)
}

func (f *FakeTime) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mutex.Lock()
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	hook := f.onSleep
	f.mutex.Unlock()

	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

// Sleeps returns a copy of every duration passed to Sleep so far.
func (f *FakeTime) Sleeps() []time.Duration {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}
