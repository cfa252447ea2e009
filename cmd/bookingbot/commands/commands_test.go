package commands

import (
	"testing"
	"time"

	"github.com/flxmf365/hospital-booking-bot/internal/config"
	"github.com/flxmf365/hospital-booking-bot/internal/monitor"
	"github.com/flxmf365/hospital-booking-bot/internal/prober"

	"github.com/stretchr/testify/require"
)

func TestBuildSinks(t *testing.T) {
	cfg := config.Defaults()
	sinks := buildSinks(cfg, nil)
	require.Len(t, sinks, 1)
	require.Equal(t, "log", sinks[0].Name)

	cfg.Sinks.Email.Server = "smtp.example.com"
	cfg.Sinks.Email.To = []string{"parent@example.com"}
	cfg.Sinks.Desktop.Enabled = true
	cfg.Sinks.Desktop.Command = []string{"say", "{title}"}
	sinks = buildSinks(cfg, nil)

	names := []string{}
	for _, sink := range sinks {
		names = append(names, sink.Name)
	}
	require.Equal(t, []string{"email", "desktop", "log"}, names)
}

func TestSummaryBody(t *testing.T) {
	lastSuccess := time.Date(2024, 8, 1, 9, 30, 0, 0, time.UTC)
	body := summaryBody([]monitor.Status{
		{
			Target:  prober.Target{ID: "consultation", Name: "심층상담"},
			Running: true,
			State: monitor.MonitorState{
				LastAvailable: true,
				LastSuccess:   lastSuccess,
				LastLabels:    []string{"12", "13"},
			},
		},
		{
			Target:  prober.Target{ID: "infant-checkup", Name: "영유아검진"},
			Running: true,
			Stale:   true,
		},
		{
			Target: prober.Target{ID: "vaccination"},
		},
	})

	require.Equal(t,
		"심층상담: 실행 중, 마지막 확인 09:30:00, 예약 가능 (12, 13)\n"+
			"영유아검진: 실행 중, 응답 지연\n"+
			"vaccination: 중지됨",
		body,
	)
}
