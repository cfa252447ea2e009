package prober

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	table := []struct {
		input    string
		expected RGB
		ok       bool
	}{
		{input: "rgb(34, 34, 37)", expected: RGB{34, 34, 37}, ok: true},
		{input: "rgb(34,34,37)", expected: RGB{34, 34, 37}, ok: true},
		{input: "rgba(34, 34, 37, 0.88)", expected: RGB{34, 34, 37}, ok: true},
		{input: " RGB(0, 0, 0) ", expected: RGB{0, 0, 0}, ok: true},
		{input: "rgb(153 153 153 / 50%)", expected: RGB{153, 153, 153}, ok: true},
		{input: "#222225", expected: RGB{34, 34, 37}, ok: true},
		{input: "#999", expected: RGB{153, 153, 153}, ok: true},
		{input: "rgb(256, 0, 0)", ok: false},
		{input: "black", ok: false},
		{input: "", ok: false},
		{input: "#12345", ok: false},
	}

	for _, row := range table {
		color, ok := ParseColor(row.input)
		require.Equal(t, row.ok, ok, row.input)
		if row.ok {
			require.Equal(t, row.expected, color, row.input)
		}
	}
}

func TestHeuristicScenarios(t *testing.T) {
	h := DefaultHeuristic()
	h.MarkerClass = "slot"

	table := []struct {
		name      string
		element   SlotElement
		available bool
	}{
		{
			name:      "active near black",
			element:   SlotElement{Label: "12", Classes: "slot active", Enabled: true, Color: "rgb(34,34,37)"},
			available: true,
		},
		{
			name:      "unselectable with active color",
			element:   SlotElement{Label: "12", Classes: "slot unselectable", Enabled: true, Color: "rgb(34,34,37)"},
			available: false,
		},
		{
			name:      "dimmed gray",
			element:   SlotElement{Label: "12", Classes: "slot active", Enabled: true, Color: "rgb(153,153,153)"},
			available: false,
		},
		{
			name:      "pure black",
			element:   SlotElement{Label: "3", Classes: "slot", Enabled: true, Color: "rgb(0, 0, 0)"},
			available: true,
		},
		{
			name:      "translucent near black",
			element:   SlotElement{Label: "3", Classes: "slot", Enabled: true, Color: "rgba(34, 34, 37, 0.9)"},
			available: true,
		},
		{
			name:      "disabled",
			element:   SlotElement{Label: "3", Classes: "slot", Enabled: false, Color: "rgb(0, 0, 0)"},
			available: false,
		},
		{
			name:      "missing marker",
			element:   SlotElement{Label: "3", Classes: "other active", Enabled: true, Color: "rgb(0, 0, 0)"},
			available: false,
		},
		{
			name:      "marker is a whole class, not a substring",
			element:   SlotElement{Label: "3", Classes: "slotted", Enabled: true, Color: "rgb(0, 0, 0)"},
			available: false,
		},
		{
			name:      "day off",
			element:   SlotElement{Label: "3", Classes: "slot dayoff", Enabled: true, Color: "rgb(0, 0, 0)"},
			available: false,
		},
		{
			name:      "closed variant",
			element:   SlotElement{Label: "3", Classes: "slot is-closed", Enabled: true, Color: "rgb(0, 0, 0)"},
			available: false,
		},
		{
			name:      "unknown color",
			element:   SlotElement{Label: "3", Classes: "slot", Enabled: true, Color: ""},
			available: false,
		},
	}

	for _, row := range table {
		require.Equal(t, row.available, h.Classify(row.element), row.name)
	}
}

func TestHeuristicTolerance(t *testing.T) {
	h := DefaultHeuristic()
	el := SlotElement{Label: "9", Classes: "calendar_date", Enabled: true, Color: "rgb(40, 40, 40)"}

	require.False(t, h.Classify(el))

	h.ColorTolerance = 6
	require.True(t, h.Classify(el))
}

func TestHeuristicExplain(t *testing.T) {
	h := DefaultHeuristic()

	verdict := h.Explain(SlotElement{Classes: "calendar_date unselectable", Enabled: true, Color: "rgb(0,0,0)"})
	require.False(t, verdict.Available)
	require.Contains(t, verdict.Reason, "unselectable")

	verdict = h.Explain(SlotElement{Classes: "calendar_date", Enabled: true, Color: "rgb(153,153,153)"})
	require.False(t, verdict.Available)
	require.Contains(t, verdict.Reason, "dimmed")

	verdict = h.Explain(SlotElement{Classes: "calendar_date", Enabled: true, Color: "rgb(34, 34, 37)"})
	require.True(t, verdict.Available)
}

func TestClassifierReplaceable(t *testing.T) {
	twoDigit := ClassifierFunc(func(el SlotElement) bool {
		label, ok := NormalizeLabel(el.Label)
		return ok && len(label) == 2
	})

	labels := AvailableLabels(twoDigit, []SlotElement{
		{Label: "5"},
		{Label: "15"},
		{Label: "21"},
	})
	require.Equal(t, []string{"15", "21"}, labels)
}
