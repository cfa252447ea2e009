package prober

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTargetURL(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	// 23:30 UTC is already the next day in Seoul
	asOf := time.Date(2024, 7, 14, 23, 30, 0, 0, time.UTC).In(seoul)

	target := Target{
		ID:          "infant-checkup",
		URLTemplate: "https://m.booking.naver.com/booking/13/bizes/635057/items/4867274?lang=ko&startDate={date}&theme=place",
	}
	require.Equal(
		t,
		"https://m.booking.naver.com/booking/13/bizes/635057/items/4867274?lang=ko&startDate=2024-07-15&theme=place",
		target.URL(asOf),
	)
	require.Equal(t, "infant-checkup", target.DisplayName())

	verbatim := Target{ID: "x", Name: "영유아검진", URLTemplate: "https://naver.me/5TQg0RuJ"}
	require.Equal(t, "https://naver.me/5TQg0RuJ", verbatim.URL(asOf))
	require.Equal(t, "영유아검진", verbatim.DisplayName())
}
