package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeteredAPI forwards every report to an inner API and mirrors it onto otel instruments:
// broken and warning reports increment a counter, counts are recorded as a histogram.
// Debug reports are not metered.
type MeteredAPI struct {
	inner   API
	reports metric.Int64Counter
	counts  metric.Int64Histogram
}

func NewMeteredAPI(inner API, meter metric.Meter) (MeteredAPI, error) {
	reports, err := meter.Int64Counter(
		"bookingbot.reports",
		metric.WithDescription("Broken and warning reports by component."),
	)
	if err != nil {
		return MeteredAPI{}, err
	}
	counts, err := meter.Int64Histogram(
		"bookingbot.counts",
		metric.WithDescription("Values reported through ReportCount."),
	)
	if err != nil {
		return MeteredAPI{}, err
	}
	return MeteredAPI{inner: inner, reports: reports, counts: counts}, nil
}

// scopeOf splits "monitor: manager.running-loops" into its scope and id.
func scopeOf(id string) (string, string) {
	scope, rest, found := strings.Cut(id, ": ")
	if !found {
		return "", id
	}
	return scope, rest
}

func (m MeteredAPI) attributes(kind, id string) metric.MeasurementOption {
	scope, rest := scopeOf(id)
	return metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("scope", scope),
		attribute.String("id", rest),
	)
}

func (m MeteredAPI) ReportBroken(id string, params ...any) {
	m.reports.Add(context.Background(), 1, m.attributes("broken", id))
	m.inner.ReportBroken(id, params...)
}

func (m MeteredAPI) ReportWarning(id string, params ...any) {
	m.reports.Add(context.Background(), 1, m.attributes("warning", id))
	m.inner.ReportWarning(id, params...)
}

func (m MeteredAPI) ReportDebug(msg string, params ...any) {
	m.inner.ReportDebug(msg, params...)
}

func (m MeteredAPI) ReportCount(id string, count int64) {
	m.counts.Record(context.Background(), count, m.attributes("count", id))
	m.inner.ReportCount(id, count)
}
