package prober

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SlotElement is one calendar cell as seen by a page accessor.
type SlotElement struct {
	Label   string
	Classes string
	Enabled bool
	// Color is the rendered foreground color of the label, in css notation.
	Color string
}

// Classifier decides whether a slot element is bookable.
//
// note: fault injection point
type Classifier interface {
	Classify(el SlotElement) bool
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(el SlotElement) bool

func (f ClassifierFunc) Classify(el SlotElement) bool {
	return f(el)
}

// RGB is a color with the alpha channel dropped.
type RGB struct {
	R, G, B int
}

func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

var rgbPattern = regexp.MustCompile(`^rgba?\(\s*(\d{1,3})\s*[, ]\s*(\d{1,3})\s*[, ]\s*(\d{1,3})\s*(?:[,/]\s*[\d.]+%?\s*)?\)$`)

// ParseColor parses `rgb(...)`, `rgba(...)`, `#rgb` and `#rrggbb` notations.
func ParseColor(value string) (RGB, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if strings.HasPrefix(value, "#") {
		return parseHexColor(value[1:])
	}

	groups := rgbPattern.FindStringSubmatch(value)
	if len(groups) != 4 {
		return RGB{}, false
	}
	var channels [3]int
	for i := range channels {
		n, err := strconv.Atoi(groups[i+1])
		if err != nil || n > 255 {
			return RGB{}, false
		}
		channels[i] = n
	}
	return RGB{R: channels[0], G: channels[1], B: channels[2]}, true
}

func parseHexColor(hex string) (RGB, bool) {
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return RGB{}, false
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, false
	}
	return RGB{R: int(n >> 16 & 0xff), G: int(n >> 8 & 0xff), B: int(n & 0xff)}, true
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Heuristic is the class/enabled/color rule used to decide availability.
// Every field comes from configuration, DefaultHeuristic holds the values
// observed on the booking site.
type Heuristic struct {
	MarkerClass  string
	DenyClasses  []string
	ActiveColors []RGB
	// ColorTolerance is the largest per-channel distance still considered a match.
	ColorTolerance int
}

func DefaultHeuristic() Heuristic {
	return Heuristic{
		MarkerClass: "calendar_date",
		DenyClasses: []string{"unselectable", "dayoff", "closed"},
		ActiveColors: []RGB{
			{R: 34, G: 34, B: 37},
			{R: 0, G: 0, B: 0},
		},
	}
}

// Verdict is the outcome of a classification along with a short explanation.
type Verdict struct {
	Available bool
	Reason    string
}

// Explain classifies el and says which rule decided it.
func (h Heuristic) Explain(el SlotElement) Verdict {
	classes := strings.Fields(el.Classes)

	hasMarker := false
	for _, c := range classes {
		if c == h.MarkerClass {
			hasMarker = true
			break
		}
	}
	if !hasMarker {
		return Verdict{Reason: fmt.Sprintf("missing marker class %q", h.MarkerClass)}
	}

	for _, c := range classes {
		for _, deny := range h.DenyClasses {
			if deny != "" && strings.Contains(c, deny) {
				return Verdict{Reason: fmt.Sprintf("denied class %q", c)}
			}
		}
	}

	if !el.Enabled {
		return Verdict{Reason: "disabled"}
	}

	color, ok := ParseColor(el.Color)
	if !ok {
		return Verdict{Reason: fmt.Sprintf("unparsable color %q", el.Color)}
	}
	for _, active := range h.ActiveColors {
		if absInt(color.R-active.R) <= h.ColorTolerance &&
			absInt(color.G-active.G) <= h.ColorTolerance &&
			absInt(color.B-active.B) <= h.ColorTolerance {
			return Verdict{Available: true, Reason: fmt.Sprintf("active color %s", color)}
		}
	}
	return Verdict{Reason: fmt.Sprintf("dimmed color %s", color)}
}

func (h Heuristic) Classify(el SlotElement) bool {
	return h.Explain(el).Available
}
