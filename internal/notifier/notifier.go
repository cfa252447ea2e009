package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flxmf365/hospital-booking-bot/internal/components/assert"
	"github.com/flxmf365/hospital-booking-bot/internal/components/telemetry"
	"github.com/flxmf365/hospital-booking-bot/internal/prober"
)

const (
	report_notifier_observe  = "notifier.observe"
	report_notifier_announce = "notifier.announce"
)

// EventRecorder persists events, it is optional.
type EventRecorder interface {
	RecordEvent(ctx context.Context, ev Event) error
}

type Options struct {
	DisplayCap int
	// Place is the clinic name shown in messages.
	Place string
}

// Notifier turns snapshots into events and delivers BecameAvailable events to its sink.
type Notifier struct {
	sink     Sink
	recorder EventRecorder
	options  Options
	tel      telemetry.API
}

func NewNotifier(sink Sink, recorder EventRecorder, options Options, tel telemetry.API) Notifier {
	assert.NotNil(sink)
	assert.NotNil(tel)
	if options.DisplayCap <= 0 {
		options.DisplayCap = DisplayCap
	}

	return Notifier{
		sink:     sink,
		recorder: recorder,
		options:  options,
		tel:      telemetry.NewScopedAPI("notifier", tel),
	}
}

// Observe feeds one snapshot of target through Transition and acts on the resulting event.
// It returns the next edge state along with the event, if one fired.
func (n Notifier) Observe(ctx context.Context, target prober.Target, lastAvailable bool, snapshot prober.SlotSnapshot) (bool, *Event) {
	next, ev, fired := Transition(lastAvailable, snapshot, n.options.DisplayCap)
	if !fired {
		return next, nil
	}

	if n.recorder != nil {
		err := n.recorder.RecordEvent(ctx, ev)
		if err != nil {
			n.tel.ReportBroken(report_notifier_observe, fmt.Errorf("record event: %w", err), target.ID)
		}
	}

	switch ev.Kind {
	case BecameAvailable:
		n.tel.ReportDebug("slots opened", target.ID, ev.Labels)
		title, body := n.FormatAvailable(target, ev)
		err := n.sink.Notify(ctx, title, body)
		if err != nil {
			n.tel.ReportWarning(report_notifier_observe, fmt.Errorf("notify: %w", err), target.ID)
		}
	case BecameUnavailable:
		n.tel.ReportDebug("slots closed", target.ID)
	}
	return next, &ev
}

// Announce sends a free form message (start up, shut down) through the sink.
func (n Notifier) Announce(ctx context.Context, title, body string) {
	err := n.sink.Notify(ctx, title, body)
	if err != nil {
		n.tel.ReportWarning(report_notifier_announce, fmt.Errorf("notify: %w", err), title)
	}
}

func (n Notifier) FormatAvailable(target prober.Target, ev Event) (string, string) {
	title := fmt.Sprintf("%s 예약 가능!", target.DisplayName())

	lines := []string{fmt.Sprintf("날짜: %s", JoinLabels(ev.Labels, ev.Total))}
	if n.options.Place != "" {
		lines = append(lines, fmt.Sprintf("병원: %s", n.options.Place))
	}
	lines = append(lines, fmt.Sprintf("시간: %s", ev.At.Format(time.DateTime)))
	if ev.URL != "" {
		lines = append(lines, ev.URL)
	}
	return title, strings.Join(lines, "\n")
}

// JoinLabels lists labels comma separated and mentions how many of total were left out.
func JoinLabels(labels []string, total int) string {
	dates := strings.Join(labels, ", ")
	if total > len(labels) {
		dates = fmt.Sprintf("%s 외 %d일", dates, total-len(labels))
	}
	return dates
}

// CapLabels is JoinLabels over at most limit of labels.
func CapLabels(labels []string, limit int) string {
	if limit > 0 && len(labels) > limit {
		return JoinLabels(labels[:limit], len(labels))
	}
	return JoinLabels(labels, len(labels))
}
