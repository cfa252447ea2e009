package notifier

import (
	"time"

	"github.com/flxmf365/hospital-booking-bot/internal/prober"
)

// DisplayCap is the default number of labels carried by a BecameAvailable event.
const DisplayCap = 5

type EventKind string

const (
	BecameAvailable   EventKind = "became_available"
	BecameUnavailable EventKind = "became_unavailable"
)

type Event struct {
	Kind   EventKind
	Target string
	URL    string
	At     time.Time
	// Labels holds at most the display cap of open labels.
	Labels []string
	// Total is the number of open labels before capping.
	Total int
}

// Transition applies one snapshot to the edge detection memory. Failed snapshots
// never change state and never fire.
func Transition(lastAvailable bool, snapshot prober.SlotSnapshot, displayCap int) (next bool, ev Event, fired bool) {
	if snapshot.Failed() {
		return lastAvailable, Event{}, false
	}

	switch {
	case snapshot.Available && !lastAvailable:
		labels := snapshot.Labels
		if displayCap > 0 && len(labels) > displayCap {
			labels = labels[:displayCap]
		}
		return true, Event{
			Kind:   BecameAvailable,
			Target: snapshot.Target,
			URL:    snapshot.URL,
			At:     snapshot.ProbedAt,
			Labels: append([]string(nil), labels...),
			Total:  len(snapshot.Labels),
		}, true
	case !snapshot.Available && lastAvailable:
		return false, Event{
			Kind:   BecameUnavailable,
			Target: snapshot.Target,
			URL:    snapshot.URL,
			At:     snapshot.ProbedAt,
		}, true
	default:
		return lastAvailable, Event{}, false
	}
}
