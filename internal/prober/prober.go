package prober

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/flxmf365/hospital-booking-bot/internal/components/assert"
	"github.com/flxmf365/hospital-booking-bot/internal/components/chrono"
	"github.com/flxmf365/hospital-booking-bot/internal/components/telemetry"
)

const (
	report_prober_probe = "prober.probe"
	report_prober_count = "prober.available-labels"
)

// Page is what an accessor saw after rendering a booking page.
type Page struct {
	// FinalURL is the location after redirects.
	FinalURL string
	// MarkersFound is false when the slot markers did not appear within the accessor's wait.
	MarkersFound bool
	Slots        []SlotElement
	// Text is the visible text of the page body.
	Text string
}

// Accessor renders a booking page, it is the only part of probing that touches the network.
//
// note: fault injection point
type Accessor interface {
	Render(ctx context.Context, url string) (Page, error)
}

type Options struct {
	Classifier Classifier
	// LoginMarkers are substrings of a final url that indicate a login redirect.
	LoginMarkers []string
	// BookedPhrases are texts shown when every slot is taken and the calendar is not rendered.
	BookedPhrases []string
}

func DefaultOptions() Options {
	return Options{
		Classifier:    DefaultHeuristic(),
		LoginMarkers:  []string{"login", "auth", "nid.naver.com"},
		BookedPhrases: []string{"예약이 마감", "예약 불가"},
	}
}

// Prober turns a rendered page into a SlotSnapshot.
type Prober struct {
	accessor Accessor
	options  Options
	time     chrono.TimeAPI
	tel      telemetry.API
}

func NewProber(accessor Accessor, options Options, time chrono.TimeAPI, tel telemetry.API) Prober {
	assert.NotNil(accessor)
	assert.NotNil(options.Classifier)
	assert.NotNil(time)
	assert.NotNil(tel)

	return Prober{
		accessor: accessor,
		options:  options,
		time:     time,
		tel:      telemetry.NewScopedAPI("prober", tel),
	}
}

func (p Prober) render(ctx context.Context, url string) (page Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("accessor panicked: %v", r)
		}
	}()
	return p.accessor.Render(ctx, url)
}

// Probe checks a target once. It never returns an error directly, failures are
// carried in the snapshot's Err field.
func (p Prober) Probe(ctx context.Context, target Target) SlotSnapshot {
	now := p.time.Now()
	url := target.URL(now)

	ctx, span := telemetry.StartSpan(ctx, "Probe", "target", target.ID, "url", url)
	defer span.End()

	snapshot := SlotSnapshot{
		Target:   target.ID,
		URL:      url,
		ProbedAt: now,
		Labels:   []string{},
	}

	page, err := p.render(ctx, url)
	if err != nil {
		snapshot.Err = newProbeError(ReasonFetchFailed, err)
		telemetry.FailSpan(span, err, "render failed")
		p.tel.ReportWarning(report_prober_probe, target.ID, snapshot.Err)
		return snapshot
	}

	if p.isLoginPage(page.FinalURL) {
		snapshot.Err = newProbeError(ReasonLoginRequired, fmt.Errorf("redirected to %s", page.FinalURL))
		telemetry.FailSpan(span, snapshot.Err, "login required")
		p.tel.ReportWarning(report_prober_probe, target.ID, snapshot.Err)
		return snapshot
	}

	if !page.MarkersFound {
		if p.isFullyBooked(page.Text) {
			p.tel.ReportDebug("fully booked notice found", target.ID)
			return snapshot
		}
		snapshot.Err = newProbeError(ReasonStructureUnrecognized, nil)
		telemetry.FailSpan(span, snapshot.Err, "no slot markers")
		p.tel.ReportWarning(report_prober_probe, target.ID, snapshot.Err)
		return snapshot
	}

	snapshot.Labels = AvailableLabels(p.options.Classifier, page.Slots)
	snapshot.Available = len(snapshot.Labels) > 0

	p.tel.ReportDebug("probed", target.ID, len(page.Slots), snapshot.Labels)
	p.tel.ReportCount(report_prober_count, int64(len(snapshot.Labels)))
	return snapshot
}

// isLoginPage only looks at http(s) locations, saved pages live under paths that
// may contain anything.
func (p Prober) isLoginPage(finalURL string) bool {
	u, err := url.Parse(finalURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	lower := strings.ToLower(finalURL)
	for _, marker := range p.options.LoginMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

func (p Prober) isFullyBooked(text string) bool {
	for _, phrase := range p.options.BookedPhrases {
		if phrase != "" && strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
