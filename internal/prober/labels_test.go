package prober

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeLabel(t *testing.T) {
	table := []struct {
		input    string
		expected string
		ok       bool
	}{
		{input: "1", expected: "1", ok: true},
		{input: " 31\n", expected: "31", ok: true},
		{input: "07", expected: "7", ok: true},
		{input: "0", ok: false},
		{input: "32", ok: false},
		{input: "00", ok: false},
		{input: "2024", ok: false},
		{input: "-3", ok: false},
		{input: "+3", ok: false},
		{input: "3일", ok: false},
		{input: "１", ok: false},
		{input: "", ok: false},
		{input: "오늘", ok: false},
	}

	for _, row := range table {
		label, ok := NormalizeLabel(row.input)
		require.Equal(t, row.ok, ok, row.input)
		require.Equal(t, row.expected, label, row.input)
	}
}

func TestAvailableLabels(t *testing.T) {
	h := DefaultHeuristic()
	open := func(label string) SlotElement {
		return SlotElement{Label: label, Classes: "calendar_date", Enabled: true, Color: "rgb(34, 34, 37)"}
	}
	closed := func(label string) SlotElement {
		return SlotElement{Label: label, Classes: "calendar_date unselectable", Enabled: true, Color: "rgb(34, 34, 37)"}
	}

	labels := AvailableLabels(h, []SlotElement{
		open("14"),
		closed("15"),
		open("3"),
		open("14"),
		open("0"),
		open("32"),
		open("예약"),
		open("03"),
		open("28"),
	})
	require.Equal(t, []string{"14", "3", "28"}, labels)

	require.Empty(t, AvailableLabels(h, nil))
	require.NotNil(t, AvailableLabels(h, nil))
}
