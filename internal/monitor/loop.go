package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/flxmf365/hospital-booking-bot/internal/components/assert"
	"github.com/flxmf365/hospital-booking-bot/internal/components/chrono"
	"github.com/flxmf365/hospital-booking-bot/internal/components/telemetry"
	"github.com/flxmf365/hospital-booking-bot/internal/notifier"
	"github.com/flxmf365/hospital-booking-bot/internal/prober"
)

const (
	report_loop_probe   = "loop.probe"
	report_loop_login   = "loop.login-required"
	report_loop_backoff = "loop.backoff"
	report_loop_record  = "loop.record"
)

// ProbeAPI checks a target once, failures are reported inside the snapshot.
//
// note: fault injection point
type ProbeAPI interface {
	Probe(ctx context.Context, target prober.Target) prober.SlotSnapshot
}

// Observer consumes successful snapshots and keeps the edge state moving.
type Observer interface {
	Observe(ctx context.Context, target prober.Target, lastAvailable bool, snapshot prober.SlotSnapshot) (bool, *notifier.Event)
}

// ProbeRecorder persists probe outcomes, it is optional.
type ProbeRecorder interface {
	RecordProbe(ctx context.Context, snapshot prober.SlotSnapshot) error
}

// Loop polls a single target until its context is cancelled.
type Loop struct {
	target   prober.Target
	prober   ProbeAPI
	observer Observer
	recorder ProbeRecorder
	policy   Policy
	time     chrono.TimeAPI
	tel      telemetry.API

	state stateHolder
}

func NewLoop(
	target prober.Target,
	probe ProbeAPI,
	observer Observer,
	recorder ProbeRecorder,
	policy Policy,
	time chrono.TimeAPI,
	tel telemetry.API,
) *Loop {
	assert.NotNil(probe)
	assert.NotNil(observer)
	assert.NotNil(time)
	assert.NotNil(tel)
	assert.NotEmptyStr(target.ID)
	assert.Positive(policy.Interval, "poll interval")

	l := &Loop{
		target:   target,
		prober:   probe,
		observer: observer,
		recorder: recorder,
		policy:   policy,
		time:     time,
		tel:      telemetry.NewScopedAPI(fmt.Sprintf("monitor[%s]", target.ID), tel),
	}
	l.state.publish(MonitorState{TargetID: target.ID, Phase: PhaseIdle})
	return l
}

func (l *Loop) Target() prober.Target {
	return l.target
}

// State returns a copy of the loop's current state, it is safe to call from any goroutine.
func (l *Loop) State() MonitorState {
	return l.state.get()
}

func (l *Loop) probe(ctx context.Context) (snapshot prober.SlotSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			snapshot = prober.SlotSnapshot{
				Target:   l.target.ID,
				ProbedAt: l.time.Now(),
				Err: &prober.ProbeError{
					Reason: prober.ReasonFetchFailed,
					Cause:  fmt.Errorf("probe panicked: %v", r),
				},
			}
		}
	}()
	return l.prober.Probe(ctx, l.target)
}

// Run polls until ctx is cancelled, it always returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	state := l.State()
	state.Phase = PhaseIdle
	state.StartedAt = l.time.Now()
	l.state.publish(state)

	defer func() {
		state.Phase = PhaseIdle
		l.state.publish(state)
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		state.Phase = PhaseProbing
		l.state.publish(state)

		snapshot := l.probe(ctx)
		if err := ctx.Err(); err != nil {
			// an interrupted probe says nothing about the target
			return err
		}
		state.Probes++
		l.record(ctx, snapshot)

		delay := l.policy.Interval
		resetAfterSleep := false

		if snapshot.Failed() {
			state.Phase = PhaseFailure
			state.ConsecutiveErrors++
			state.LastError = snapshot.Err.Error()

			if errors.Is(snapshot.Err, prober.ErrAuthRequired) {
				l.tel.ReportWarning(report_loop_login, snapshot.URL, state.ConsecutiveErrors)
			} else {
				l.tel.ReportWarning(report_loop_probe, snapshot.Err, state.ConsecutiveErrors)
			}

			delay, resetAfterSleep = l.policy.FailureDelay(state.ConsecutiveErrors)
			if resetAfterSleep {
				l.tel.ReportWarning(report_loop_backoff, state.ConsecutiveErrors, delay.String())
			}
		} else {
			state.Phase = PhaseSuccess
			state.ConsecutiveErrors = 0
			state.LastError = ""
			state.LastSuccess = l.time.Now()
			state.LastLabels = snapshot.Labels
			state.LastAvailable, _ = l.observer.Observe(ctx, l.target, state.LastAvailable, snapshot)
		}
		l.state.publish(state)

		if err := l.time.Sleep(ctx, delay); err != nil {
			return err
		}
		if resetAfterSleep {
			state.ConsecutiveErrors = 0
			l.state.publish(state)
		}
	}
}

func (l *Loop) record(ctx context.Context, snapshot prober.SlotSnapshot) {
	if l.recorder == nil {
		return
	}
	err := l.recorder.RecordProbe(ctx, snapshot)
	if err != nil {
		l.tel.ReportBroken(report_loop_record, err)
	}
}
