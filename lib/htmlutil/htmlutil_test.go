package htmlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestGetText(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<html><body>
		<p>현재 <b>예약이 마감</b>되었습니다</p>
		<script>var x = "hidden";</script>
	</body></html>`))
	require.NoError(t, err)

	text := CleanText(GetText(doc))
	require.Equal(t, "현재 예약이 마감되었습니다", text)
}

func TestInlineColor(t *testing.T) {
	table := []struct {
		style    string
		expected string
	}{
		{style: "color: rgb(34, 34, 37)", expected: "rgb(34, 34, 37)"},
		{style: "background-color: #fff; color:#999;", expected: "#999"},
		{style: "background-color: #fff", expected: ""},
		{style: "font-weight: bold; COLOR: rgba(0,0,0,0.5) !important", expected: "rgba(0,0,0,0.5)"},
		{style: "", expected: ""},
	}

	for _, row := range table {
		require.Equal(t, row.expected, InlineColor(row.style), row.style)
	}
}
