package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flxmf365/hospital-booking-bot/internal/components/assert"
	"github.com/flxmf365/hospital-booking-bot/internal/components/telemetry"
)

const (
	report_fanout_notify = "fanout.notify"
)

// Sink delivers a notification somewhere a human will see it.
type Sink interface {
	Notify(ctx context.Context, title, body string) error
}

type SinkFunc func(ctx context.Context, title, body string) error

func (f SinkFunc) Notify(ctx context.Context, title, body string) error {
	return f(ctx, title, body)
}

type NamedSink struct {
	Name string
	Sink Sink
}

// SinkError wraps a failure of a single sink.
type SinkError struct {
	Sink string
	Err  error
}

func (e SinkError) Error() string {
	return fmt.Sprintf("notification sink %s: %s", e.Sink, e.Err.Error())
}

func (e SinkError) Unwrap() error {
	return e.Err
}

const DefaultFanoutTimeout = 10 * time.Second

// Fanout delivers to every sink concurrently and waits at most timeout.
// Failures are reported to telemetry and swallowed, Notify never returns an error.
type Fanout struct {
	sinks   []NamedSink
	timeout time.Duration
	tel     telemetry.API
}

func NewFanout(timeout time.Duration, tel telemetry.API, sinks ...NamedSink) *Fanout {
	assert.NotNil(tel)
	assert.Positive(timeout, "fanout timeout")

	return &Fanout{
		sinks:   sinks,
		timeout: timeout,
		tel:     telemetry.NewScopedAPI("notifier", tel),
	}
}

func (f *Fanout) Len() int {
	return len(f.sinks)
}

func (f *Fanout) notifyOne(ctx context.Context, sink NamedSink, title, body string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return sink.Sink.Notify(ctx, title, body)
}

func (f *Fanout) Notify(ctx context.Context, title, body string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()

	wg := sync.WaitGroup{}
	for _, sink := range f.sinks {
		wg.Add(1)
		go func(sink NamedSink) {
			defer wg.Done()

			err := f.notifyOne(ctx, sink, title, body)
			if err != nil {
				f.tel.ReportWarning(report_fanout_notify, SinkError{Sink: sink.Name, Err: err})
			}
		}(sink)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		f.tel.ReportWarning(report_fanout_notify, fmt.Errorf("gave up waiting on sinks after %s", f.timeout))
	}
	return nil
}
