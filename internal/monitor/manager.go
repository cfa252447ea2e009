package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/flxmf365/hospital-booking-bot/internal/components/assert"
	"github.com/flxmf365/hospital-booking-bot/internal/components/chrono"
	"github.com/flxmf365/hospital-booking-bot/internal/components/telemetry"
	"github.com/flxmf365/hospital-booking-bot/internal/prober"

	"github.com/antzucaro/matchr"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	report_manager_health_check = "manager.health-check"
	report_manager_running      = "manager.running-loops"
)

var ErrUnknownTarget = errors.New("unknown target")

// minSimilarity is the lowest Jaro-Winkler score Resolve accepts for a fuzzy match.
const minSimilarity = 0.8

type ManagerOptions struct {
	Prober   ProbeAPI
	Observer Observer
	Recorder ProbeRecorder
	Policy   Policy
	Time     chrono.TimeAPI
	Tel      telemetry.API
	// CheckTTL is how long a CheckNow result is reused.
	CheckTTL time.Duration
}

type runningLoop struct {
	loop   *Loop
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager starts and stops one poll loop per target and answers control commands.
type Manager struct {
	ctx     context.Context
	targets []prober.Target
	options ManagerOptions
	tel     telemetry.API
	checks  *expirable.LRU[string, prober.SlotSnapshot]

	mutex     sync.Mutex
	running   map[string]*runningLoop
	lastState map[string]MonitorState
}

// NewManager creates a manager whose loops live at most as long as ctx.
func NewManager(ctx context.Context, targets []prober.Target, options ManagerOptions) *Manager {
	assert.NotNil(options.Prober)
	assert.NotNil(options.Observer)
	assert.NotNil(options.Time)
	assert.NotNil(options.Tel)

	ttl := options.CheckTTL
	if ttl <= 0 {
		ttl = time.Second
	}

	return &Manager{
		ctx:       ctx,
		targets:   targets,
		options:   options,
		tel:       telemetry.NewScopedAPI("monitor", options.Tel),
		checks:    expirable.NewLRU[string, prober.SlotSnapshot](len(targets)+1, nil, ttl),
		running:   map[string]*runningLoop{},
		lastState: map[string]MonitorState{},
	}
}

func (m *Manager) Targets() []prober.Target {
	return append([]prober.Target(nil), m.targets...)
}

// Resolve finds a target by id or name, falling back to the most similar one.
func (m *Manager) Resolve(query string) (prober.Target, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return prober.Target{}, fmt.Errorf("%w: empty name", ErrUnknownTarget)
	}
	for _, t := range m.targets {
		if strings.ToLower(t.ID) == query || strings.ToLower(t.Name) == query {
			return t, nil
		}
		for _, alias := range t.Aliases {
			if strings.ToLower(alias) == query {
				return t, nil
			}
		}
	}

	var best prober.Target
	var bestScore float64
	for _, t := range m.targets {
		for _, candidate := range []string{t.ID, t.Name} {
			if candidate == "" {
				continue
			}
			score := matchr.JaroWinkler(query, strings.ToLower(candidate), false)
			if score > bestScore {
				bestScore = score
				best = t
			}
		}
	}
	if bestScore < minSimilarity {
		return prober.Target{}, fmt.Errorf("%w: %q", ErrUnknownTarget, query)
	}
	return best, nil
}

func (m *Manager) find(id string) (prober.Target, bool) {
	for _, t := range m.targets {
		if t.ID == id {
			return t, true
		}
	}
	return prober.Target{}, false
}

// Start starts the loop of target id, it returns false if the loop was already running.
func (m *Manager) Start(id string) (bool, error) {
	target, ok := m.find(id)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownTarget, id)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, running := m.running[id]; running {
		return false, nil
	}

	loop := NewLoop(
		target,
		m.options.Prober,
		m.options.Observer,
		m.options.Recorder,
		m.options.Policy,
		m.options.Time,
		m.options.Tel,
	)
	ctx, cancel := context.WithCancel(m.ctx)
	entry := &runningLoop{loop: loop, cancel: cancel, done: make(chan struct{})}
	m.running[id] = entry

	go func() {
		defer close(entry.done)
		loop.Run(ctx)

		m.mutex.Lock()
		defer m.mutex.Unlock()
		m.lastState[id] = loop.State()
		if m.running[id] == entry {
			delete(m.running, id)
		}
	}()

	m.tel.ReportCount(report_manager_running, int64(len(m.running)))
	return true, nil
}

// Stop cancels the loop of target id and waits for it to exit, it returns false
// if the loop was not running.
func (m *Manager) Stop(id string) (bool, error) {
	if _, ok := m.find(id); !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownTarget, id)
	}

	m.mutex.Lock()
	entry, running := m.running[id]
	m.mutex.Unlock()
	if !running {
		return false, nil
	}

	entry.cancel()
	<-entry.done
	return true, nil
}

type ToggleResult struct {
	Target  prober.Target
	Changed bool
}

func (m *Manager) StartAll() []ToggleResult {
	results := make([]ToggleResult, len(m.targets))
	for i, t := range m.targets {
		started, _ := m.Start(t.ID)
		results[i] = ToggleResult{Target: t, Changed: started}
	}
	return results
}

func (m *Manager) StopAll() []ToggleResult {
	results := make([]ToggleResult, len(m.targets))
	for i, t := range m.targets {
		stopped, _ := m.Stop(t.ID)
		results[i] = ToggleResult{Target: t, Changed: stopped}
	}
	return results
}

type Status struct {
	Target  prober.Target
	Running bool
	State   MonitorState
	Stale   bool
}

func (m *Manager) Status(id string) (Status, error) {
	target, ok := m.find(id)
	if !ok {
		return Status{}, fmt.Errorf("%w: %q", ErrUnknownTarget, id)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	status := Status{Target: target}
	if entry, running := m.running[id]; running {
		status.Running = true
		status.State = entry.loop.State()
		status.Stale = status.State.Stale(m.options.Time.Now(), m.options.Policy.StaleAfter())
		return status, nil
	}
	if last, ok := m.lastState[id]; ok {
		status.State = last
		return status, nil
	}
	status.State = MonitorState{TargetID: id, Phase: PhaseIdle}
	return status, nil
}

func (m *Manager) StatusAll() []Status {
	out := make([]Status, len(m.targets))
	for i, t := range m.targets {
		out[i], _ = m.Status(t.ID)
	}
	return out
}

// CheckNow probes target id once outside of its loop, it does not touch edge state.
// Results are reused for CheckTTL.
func (m *Manager) CheckNow(ctx context.Context, id string) (prober.SlotSnapshot, error) {
	target, ok := m.find(id)
	if !ok {
		return prober.SlotSnapshot{}, fmt.Errorf("%w: %q", ErrUnknownTarget, id)
	}
	if cached, hit := m.checks.Get(id); hit {
		return cached, nil
	}

	snapshot := m.options.Prober.Probe(ctx, target)
	if !snapshot.Failed() {
		m.checks.Add(id, snapshot)
	}
	return snapshot, nil
}

type CheckResult struct {
	Target   prober.Target
	Snapshot prober.SlotSnapshot
}

// CheckAll probes every target concurrently.
func (m *Manager) CheckAll(ctx context.Context) []CheckResult {
	results := make([]CheckResult, len(m.targets))
	wg := sync.WaitGroup{}
	for i, t := range m.targets {
		wg.Add(1)
		go func(i int, t prober.Target) {
			defer wg.Done()
			snapshot, _ := m.CheckNow(ctx, t.ID)
			results[i] = CheckResult{Target: t, Snapshot: snapshot}
		}(i, t)
	}
	wg.Wait()
	return results
}

// HealthCheck reports every running loop that has gone too long without a successful probe.
func (m *Manager) HealthCheck() []Status {
	var stale []Status
	for _, status := range m.StatusAll() {
		if !status.Stale {
			continue
		}
		stale = append(stale, status)
		m.tel.ReportWarning(
			report_manager_health_check,
			status.Target.ID,
			status.State.LastSuccess,
			status.State.LastError,
		)
	}
	return stale
}

// Wait blocks until every running loop has exited.
func (m *Manager) Wait() {
	m.mutex.Lock()
	entries := make([]*runningLoop, 0, len(m.running))
	for _, entry := range m.running {
		entries = append(entries, entry)
	}
	m.mutex.Unlock()

	for _, entry := range entries {
		<-entry.done
	}
}
