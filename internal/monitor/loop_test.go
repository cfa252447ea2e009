package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flxmf365/hospital-booking-bot/internal/components/chrono"
	"github.com/flxmf365/hospital-booking-bot/internal/components/telemetry"
	"github.com/flxmf365/hospital-booking-bot/internal/notifier"
	"github.com/flxmf365/hospital-booking-bot/internal/prober"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var testTarget = prober.Target{ID: "consultation", Name: "심층상담", URLTemplate: "https://example.com/{date}"}

type probeFunc func(ctx context.Context, target prober.Target) prober.SlotSnapshot

func (f probeFunc) Probe(ctx context.Context, target prober.Target) prober.SlotSnapshot {
	return f(ctx, target)
}

type fakeObserver struct {
	mutex    sync.Mutex
	calls    int
	received []bool
}

func (o *fakeObserver) Observe(ctx context.Context, target prober.Target, last bool, snapshot prober.SlotSnapshot) (bool, *notifier.Event) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.calls++
	o.received = append(o.received, last)
	return snapshot.Available, nil
}

func (o *fakeObserver) Calls() int {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.calls
}

func failed(reason prober.Reason) prober.SlotSnapshot {
	return prober.SlotSnapshot{
		Target: testTarget.ID,
		Err:    &prober.ProbeError{Reason: reason, Cause: errors.New("boom")},
	}
}

func ok(labels ...string) prober.SlotSnapshot {
	if labels == nil {
		labels = []string{}
	}
	return prober.SlotSnapshot{Target: testTarget.ID, Available: len(labels) > 0, Labels: labels}
}

func TestPolicyFailureDelay(t *testing.T) {
	policy := DefaultPolicy()

	cases := []struct {
		consecutive int
		delay       time.Duration
		reset       bool
	}{
		{consecutive: 1, delay: 30 * time.Second},
		{consecutive: 2, delay: 30 * time.Second},
		{consecutive: 3, delay: 180 * time.Second, reset: true},
		{consecutive: 4, delay: 240 * time.Second, reset: true},
		{consecutive: 5, delay: 300 * time.Second, reset: true},
		{consecutive: 9, delay: 300 * time.Second, reset: true},
	}

	for _, c := range cases {
		delay, reset := policy.FailureDelay(c.consecutive)
		require.Equal(t, c.delay, delay, "consecutive %d", c.consecutive)
		require.Equal(t, c.reset, reset, "consecutive %d", c.consecutive)
	}

	require.Equal(t, 120*time.Second, policy.StaleAfter())
}

func TestLoopBackoffAndReset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := chrono.NewFakeTime(time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC))
	observer := &fakeObserver{}

	var loop *Loop
	probes := 0
	var fourth MonitorState

	probe := probeFunc(func(ctx context.Context, target prober.Target) prober.SlotSnapshot {
		probes++
		if probes == 4 {
			fourth = loop.State()
			cancel()
		}
		return failed(prober.ReasonFetchFailed)
	})

	tel := telemetry.NewRecorder()
	loop = NewLoop(testTarget, probe, observer, nil, DefaultPolicy(), clock, tel)

	err := loop.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	diff := cmp.Diff(
		[]time.Duration{30 * time.Second, 30 * time.Second, 180 * time.Second},
		clock.Sleeps(),
	)
	if diff != "" {
		t.Fatal(diff)
	}
	require.Equal(t, 0, fourth.ConsecutiveErrors)
	require.Equal(t, PhaseProbing, fourth.Phase)
	require.Equal(t, 0, observer.Calls())
	require.True(t, tel.Has(telemetry.KindWarning, report_loop_backoff))

	state := loop.State()
	require.Equal(t, PhaseIdle, state.Phase)
	require.EqualValues(t, 3, state.Probes)
}

func TestLoopSuccessSleepsInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := chrono.NewFakeTime(time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC))
	clock.OnSleep(func(d time.Duration) {
		if len(clock.Sleeps()) == 3 {
			cancel()
		}
	})

	responses := []prober.SlotSnapshot{ok(), ok("15"), ok("15", "16")}
	probes := 0
	probe := probeFunc(func(ctx context.Context, target prober.Target) prober.SlotSnapshot {
		s := responses[probes]
		probes++
		return s
	})

	observer := &fakeObserver{}
	loop := NewLoop(testTarget, probe, observer, nil, DefaultPolicy(), clock, telemetry.NewRecorder())
	loop.Run(ctx)

	diff := cmp.Diff(
		[]time.Duration{time.Minute, time.Minute, time.Minute},
		clock.Sleeps(),
	)
	if diff != "" {
		t.Fatal(diff)
	}
	require.Equal(t, []bool{false, false, true}, observer.received)

	state := loop.State()
	require.True(t, state.LastAvailable)
	require.Equal(t, []string{"15", "16"}, state.LastLabels)
	require.False(t, state.LastSuccess.IsZero())
}

func TestLoopErrorsKeepEdgeState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := chrono.NewFakeTime(time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC))
	clock.OnSleep(func(d time.Duration) {
		if len(clock.Sleeps()) == 4 {
			cancel()
		}
	})

	responses := []prober.SlotSnapshot{
		ok("3"),
		failed(prober.ReasonStructureUnrecognized),
		failed(prober.ReasonLoginRequired),
		ok("3"),
	}
	probes := 0
	probe := probeFunc(func(ctx context.Context, target prober.Target) prober.SlotSnapshot {
		s := responses[probes]
		probes++
		return s
	})

	tel := telemetry.NewRecorder()
	observer := &fakeObserver{}
	loop := NewLoop(testTarget, probe, observer, nil, DefaultPolicy(), clock, tel)
	loop.Run(ctx)

	// the failures in between must not reset the edge memory
	require.Equal(t, []bool{false, true}, observer.received)
	require.True(t, tel.Has(telemetry.KindWarning, report_loop_login))
	require.True(t, tel.Has(telemetry.KindWarning, report_loop_probe))

	state := loop.State()
	require.Equal(t, 0, state.ConsecutiveErrors)
	require.Equal(t, "", state.LastError)
}

func TestLoopRecoversFromProbePanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := chrono.NewFakeTime(time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC))
	clock.OnSleep(func(d time.Duration) { cancel() })

	probe := probeFunc(func(ctx context.Context, target prober.Target) prober.SlotSnapshot {
		panic("renderer crashed")
	})

	loop := NewLoop(testTarget, probe, &fakeObserver{}, nil, DefaultPolicy(), clock, telemetry.NewRecorder())
	loop.Run(ctx)

	state := loop.State()
	require.Equal(t, 1, state.ConsecutiveErrors)
	require.Contains(t, state.LastError, "fetch_failed")
	require.Contains(t, state.LastError, "renderer crashed")
	require.Equal(t, []time.Duration{30 * time.Second}, clock.Sleeps())
}

type fakeProbeRecorder struct {
	mutex     sync.Mutex
	snapshots []prober.SlotSnapshot
	err       error
}

func (r *fakeProbeRecorder) RecordProbe(ctx context.Context, snapshot prober.SlotSnapshot) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.snapshots = append(r.snapshots, snapshot)
	return r.err
}

func TestLoopRecordsProbes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := chrono.NewFakeTime(time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC))
	clock.OnSleep(func(d time.Duration) {
		if len(clock.Sleeps()) == 2 {
			cancel()
		}
	})

	probe := probeFunc(func(ctx context.Context, target prober.Target) prober.SlotSnapshot {
		return ok("7")
	})
	recorder := &fakeProbeRecorder{err: errors.New("disk full")}
	tel := telemetry.NewRecorder()

	loop := NewLoop(testTarget, probe, &fakeObserver{}, recorder, DefaultPolicy(), clock, tel)
	loop.Run(ctx)

	require.Len(t, recorder.snapshots, 2)
	// a broken recorder never stops polling
	require.True(t, tel.Has(telemetry.KindBroken, report_loop_record))
	require.True(t, loop.State().LastAvailable)
}

func TestLoopStopsWhileProbing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	clock := chrono.NewFakeTime(time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC))
	probe := probeFunc(func(ctx context.Context, target prober.Target) prober.SlotSnapshot {
		cancel()
		<-ctx.Done()
		return failed(prober.ReasonFetchFailed)
	})

	observer := &fakeObserver{}
	loop := NewLoop(testTarget, probe, observer, nil, DefaultPolicy(), clock, telemetry.NewRecorder())
	err := loop.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	state := loop.State()
	require.Equal(t, 0, state.ConsecutiveErrors)
	require.EqualValues(t, 0, state.Probes)
	require.Empty(t, clock.Sleeps())
}

func TestMonitorStateStale(t *testing.T) {
	now := time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC)

	require.False(t, MonitorState{}.Stale(now, time.Minute))
	require.False(t, MonitorState{StartedAt: now.Add(-30 * time.Second)}.Stale(now, time.Minute))
	require.True(t, MonitorState{StartedAt: now.Add(-2 * time.Minute)}.Stale(now, time.Minute))
	require.False(t, MonitorState{
		StartedAt:   now.Add(-time.Hour),
		LastSuccess: now.Add(-10 * time.Second),
	}.Stale(now, time.Minute))
}
