package control

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/flxmf365/hospital-booking-bot/internal/components/assert"
	"github.com/flxmf365/hospital-booking-bot/internal/components/chrono"
	"github.com/flxmf365/hospital-booking-bot/internal/monitor"
	"github.com/flxmf365/hospital-booking-bot/internal/notifier"
	"github.com/flxmf365/hospital-booking-bot/internal/prober"
)

const (
	// SingleCheckCap is how many dates a single target check lists.
	SingleCheckCap = 5
	// AggregateCheckCap is how many dates each target lists in a check of every target.
	AggregateCheckCap = 3
)

// Controller is the part of monitor.Manager the chat commands drive.
type Controller interface {
	Targets() []prober.Target
	Resolve(query string) (prober.Target, error)
	Start(id string) (bool, error)
	Stop(id string) (bool, error)
	StartAll() []monitor.ToggleResult
	StopAll() []monitor.ToggleResult
	StatusAll() []monitor.Status
	CheckNow(ctx context.Context, id string) (prober.SlotSnapshot, error)
	CheckAll(ctx context.Context) []monitor.CheckResult
}

type DispatcherOptions struct {
	// Place is the clinic name shown in replies.
	Place    string
	Interval time.Duration
}

// Dispatcher executes commands against a Controller and renders HTML replies.
type Dispatcher struct {
	controller Controller
	options    DispatcherOptions
	time       chrono.TimeAPI
	startedAt  time.Time
}

func NewDispatcher(controller Controller, options DispatcherOptions, time chrono.TimeAPI) Dispatcher {
	assert.NotNil(controller)
	assert.NotNil(time)

	return Dispatcher{
		controller: controller,
		options:    options,
		time:       time,
		startedAt:  time.Now(),
	}
}

func (d Dispatcher) Handle(ctx context.Context, text string) string {
	return d.Execute(ctx, Parse(text))
}

func (d Dispatcher) Execute(ctx context.Context, cmd Command) string {
	switch cmd.Verb {
	case VerbStart:
		if cmd.All {
			return d.startAll()
		}
		return d.withTarget(cmd.Query, d.start)
	case VerbStop:
		if cmd.All {
			return d.stopAll()
		}
		return d.withTarget(cmd.Query, d.stop)
	case VerbStatus:
		return d.status(cmd)
	case VerbCheck:
		if cmd.All {
			return d.checkAll(ctx)
		}
		return d.withTarget(cmd.Query, func(target prober.Target) string {
			return d.check(ctx, target)
		})
	case VerbServer:
		return d.server()
	default:
		if cmd.Query != "" {
			if target, err := d.controller.Resolve(cmd.Query); err == nil {
				return d.start(target)
			}
		}
		return d.Help()
	}
}

func (d Dispatcher) withTarget(query string, fn func(target prober.Target) string) string {
	target, err := d.controller.Resolve(query)
	if err != nil {
		return d.unknownTarget(query)
	}
	return fn(target)
}

func (d Dispatcher) unknownTarget(query string) string {
	names := make([]string, 0)
	for _, t := range d.controller.Targets() {
		names = append(names, fmt.Sprintf("• %s (%s)", html.EscapeString(t.DisplayName()), html.EscapeString(t.ID)))
	}
	return fmt.Sprintf(
		"❓ 알 수 없는 대상: %s\n\n사용 가능한 대상:\n%s",
		html.EscapeString(query),
		strings.Join(names, "\n"),
	)
}

func (d Dispatcher) footer() string {
	var lines []string
	if d.options.Place != "" {
		lines = append(lines, fmt.Sprintf("🏥 %s", html.EscapeString(d.options.Place)))
	}
	if d.options.Interval > 0 {
		lines = append(lines, fmt.Sprintf("⏰ %s마다 자동 확인", formatDuration(d.options.Interval)))
	}
	lines = append(lines, "🔔 예약 가능 시 즉시 알림")
	return strings.Join(lines, "\n")
}

func (d Dispatcher) start(target prober.Target) string {
	name := html.EscapeString(target.DisplayName())
	started, err := d.controller.Start(target.ID)
	if err != nil {
		return fmt.Sprintf("❌ %s 모니터링 시작 실패: %s", name, html.EscapeString(err.Error()))
	}
	if !started {
		return fmt.Sprintf("⚠️ %s 모니터링이 이미 실행 중입니다.", name)
	}
	return fmt.Sprintf("🚀 <b>%s 모니터링 시작!</b>\n\n%s", name, d.footer())
}

func (d Dispatcher) stop(target prober.Target) string {
	name := html.EscapeString(target.DisplayName())
	stopped, err := d.controller.Stop(target.ID)
	if err != nil {
		return fmt.Sprintf("❌ %s 모니터링 중지 실패: %s", name, html.EscapeString(err.Error()))
	}
	if !stopped {
		return fmt.Sprintf("⚠️ %s 모니터링이 실행되고 있지 않습니다.", name)
	}
	return fmt.Sprintf("🛑 <b>%s 모니터링 중지</b>", name)
}

func (d Dispatcher) startAll() string {
	var lines []string
	for _, res := range d.controller.StartAll() {
		name := html.EscapeString(res.Target.DisplayName())
		if res.Changed {
			lines = append(lines, fmt.Sprintf("• %s: 시작", name))
		} else {
			lines = append(lines, fmt.Sprintf("• %s: 이미 실행 중", name))
		}
	}
	return fmt.Sprintf("🚀 <b>전체 모니터링 시작!</b>\n\n%s\n\n%s", strings.Join(lines, "\n"), d.footer())
}

func (d Dispatcher) stopAll() string {
	var lines []string
	for _, res := range d.controller.StopAll() {
		name := html.EscapeString(res.Target.DisplayName())
		if res.Changed {
			lines = append(lines, fmt.Sprintf("• %s: 중지", name))
		} else {
			lines = append(lines, fmt.Sprintf("• %s: 실행 중 아님", name))
		}
	}
	return fmt.Sprintf("🛑 <b>전체 모니터링 중지</b>\n\n%s", strings.Join(lines, "\n"))
}

func (d Dispatcher) statusLine(status monitor.Status) string {
	name := html.EscapeString(status.Target.DisplayName())
	if !status.Running {
		return fmt.Sprintf("• %s: ❌ 중지됨", name)
	}

	line := fmt.Sprintf("• %s: ✅ 실행 중", name)
	state := status.State
	if !state.LastSuccess.IsZero() {
		line += fmt.Sprintf(" (마지막 확인 %s", state.LastSuccess.In(d.time.Location()).Format(time.TimeOnly))
		if state.LastAvailable {
			line += ", 예약 가능"
		}
		line += ")"
	}
	if state.ConsecutiveErrors > 0 {
		line += fmt.Sprintf(" ⚠️ 연속 오류 %d회", state.ConsecutiveErrors)
	}
	if status.Stale {
		line += " ⚠️ 응답 지연"
	}
	return line
}

func (d Dispatcher) status(cmd Command) string {
	statuses := d.controller.StatusAll()
	if !cmd.All {
		target, err := d.controller.Resolve(cmd.Query)
		if err != nil {
			return d.unknownTarget(cmd.Query)
		}
		filtered := statuses[:0:0]
		for _, status := range statuses {
			if status.Target.ID == target.ID {
				filtered = append(filtered, status)
			}
		}
		statuses = filtered
	}

	lines := make([]string, len(statuses))
	for i, status := range statuses {
		lines[i] = d.statusLine(status)
	}

	now := d.time.Now().In(d.time.Location())
	return fmt.Sprintf(
		"📊 <b>모니터링 상태</b>\n\n%s\n\n⏰ 현재 시간: %s",
		strings.Join(lines, "\n"),
		now.Format(time.DateTime),
	)
}

func (d Dispatcher) check(ctx context.Context, target prober.Target) string {
	name := html.EscapeString(target.DisplayName())
	snapshot, err := d.controller.CheckNow(ctx, target.ID)
	if err != nil {
		return fmt.Sprintf("❌ %s 확인 실패: %s", name, html.EscapeString(err.Error()))
	}
	if snapshot.Failed() {
		return fmt.Sprintf("❌ %s 확인 실패: %s", name, html.EscapeString(describeFailure(snapshot.Err)))
	}

	checkedAt := snapshot.ProbedAt.In(d.time.Location()).Format(time.DateTime)
	if snapshot.Available {
		msg := fmt.Sprintf(
			"✅ <b>%s 예약 가능!</b>\n\n📅 날짜: %s\n⏰ 확인 시간: %s",
			name,
			notifier.CapLabels(snapshot.Labels, SingleCheckCap),
			checkedAt,
		)
		if snapshot.URL != "" {
			msg += "\n🔗 " + html.EscapeString(snapshot.URL)
		}
		return msg
	}
	return fmt.Sprintf(
		"❌ <b>%s 예약 불가</b>\n\n📅 현재 예약 가능한 날짜 없음\n⏰ 확인 시간: %s",
		name,
		checkedAt,
	)
}

func (d Dispatcher) checkAll(ctx context.Context) string {
	results := d.controller.CheckAll(ctx)

	lines := make([]string, len(results))
	for i, res := range results {
		name := html.EscapeString(res.Target.DisplayName())
		switch {
		case res.Snapshot.Failed():
			lines[i] = fmt.Sprintf("• %s: ⚠️ 확인 실패", name)
		case res.Snapshot.Available:
			lines[i] = fmt.Sprintf("• %s: ✅ 가능 (%s)", name, notifier.CapLabels(res.Snapshot.Labels, AggregateCheckCap))
		default:
			lines[i] = fmt.Sprintf("• %s: ❌ 불가능", name)
		}
	}

	now := d.time.Now().In(d.time.Location())
	return fmt.Sprintf(
		"📊 <b>전체 예약 상태</b>\n\n%s\n\n⏰ 확인 시간: %s",
		strings.Join(lines, "\n"),
		now.Format(time.TimeOnly),
	)
}

func (d Dispatcher) server() string {
	running := 0
	statuses := d.controller.StatusAll()
	for _, status := range statuses {
		if status.Running {
			running++
		}
	}

	now := d.time.Now()
	return fmt.Sprintf(
		"🖥️ <b>서버 상태</b>\n\n⏰ 서버 시간: %s\n⌛ 가동 시간: %s\n▶️ 실행 중인 모니터: %d/%d",
		now.In(d.time.Location()).Format(time.DateTime),
		formatDuration(now.Sub(d.startedAt)),
		running,
		len(statuses),
	)
}

// Help lists every command, including the per-target shorthands.
func (d Dispatcher) Help() string {
	var b strings.Builder
	b.WriteString("🤖 <b>예약 모니터링 봇</b>\n\n")
	b.WriteString("<b>/start</b> [대상|all] (시작) - 모니터링 시작\n")
	b.WriteString("<b>/stop</b> [대상|all] (중지) - 모니터링 중지\n")
	b.WriteString("<b>/status</b> [대상] (상태) - 현재 상태\n")
	b.WriteString("<b>/check</b> [대상|all] (체크) - 즉시 확인\n")
	b.WriteString("<b>/server</b> (서버상태) - 서버 상태\n")
	b.WriteString("<b>/help</b> (도움) - 이 도움말\n\n")
	b.WriteString("<b>대상:</b>\n")
	for _, t := range d.controller.Targets() {
		short := t.ID
		if len(t.Aliases) > 0 {
			short = t.Aliases[0]
		}
		fmt.Fprintf(
			&b,
			"• %s (%s) 예: /%s시작\n",
			html.EscapeString(t.DisplayName()),
			html.EscapeString(t.ID),
			html.EscapeString(short),
		)
	}
	if d.options.Place != "" {
		fmt.Fprintf(&b, "\n🏥 %s", html.EscapeString(d.options.Place))
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeFailure(err *prober.ProbeError) string {
	switch {
	case errors.Is(err, prober.ErrAuthRequired):
		return "로그인이 필요한 페이지로 이동했습니다"
	case errors.Is(err, prober.ErrStructureUnrecognized):
		return "예약 페이지 구조를 인식할 수 없습니다"
	default:
		return err.Error()
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%d시간", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d분", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d초", seconds))
	}
	return strings.Join(parts, " ")
}
