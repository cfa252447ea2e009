package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flxmf365/hospital-booking-bot/internal/monitor"
	"github.com/flxmf365/hospital-booking-bot/internal/prober"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	config := Defaults()
	require.NoError(t, config.Validate())

	diff := cmp.Diff(monitor.DefaultPolicy(), config.Policy())
	if diff != "" {
		t.Fatal(diff)
	}

	heuristic, err := config.BuildHeuristic()
	require.NoError(t, err)
	diff = cmp.Diff(prober.DefaultHeuristic(), heuristic)
	if diff != "" {
		t.Fatal(diff)
	}

	targets := config.ProberTargets()
	require.Len(t, targets, 2)
	require.Equal(t, "consultation", targets[0].ID)
	require.Equal(t, "영유아검진", targets[1].Name)
	require.Equal(t, []string{"영유아"}, targets[1].Aliases)

	require.True(t, config.ChromeOptions().Headless)
	require.True(t, config.StaticOptions().BypassCloudflare)
	require.True(t, config.LogSink())
	require.True(t, config.ShouldAutoStart())
	require.Equal(t, 15*time.Second, config.CheckCacheTTL())
	require.Equal(t, 10*time.Second, config.FanoutTimeout())
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bookingbot.json5")
	err := os.WriteFile(path, []byte(`{
		poll: { interval_seconds: 120 },
		browser: { mode: "static", headless: false },
		sinks: {
			telegram: { token: "123:abc", chat_id: "42" },
		},
		notify_on_shutdown: false,
	}`), 0600)
	require.NoError(t, err)

	err = os.WriteFile(filepath.Join(dir, "bookingbot.local.json5"), []byte(`{
		control: { telegram: true },
	}`), 0600)
	require.NoError(t, err)

	config, err := Read(path)
	require.NoError(t, err)
	require.NoError(t, config.Validate())

	policy := config.Policy()
	require.Equal(t, 2*time.Minute, policy.Interval)
	require.Equal(t, 30*time.Second, policy.RetryDelay)
	require.Equal(t, 3, policy.MaxConsecutiveErrors)

	require.Equal(t, BrowserStatic, config.Browser.Mode)
	require.False(t, config.ChromeOptions().Headless)
	require.Equal(t, "button.calendar_date", config.Browser.SlotSelector)

	require.True(t, config.Sinks.Telegram.Enabled())
	require.Equal(t, "https://api.telegram.org", config.TelegramOptions().APIBase)
	require.True(t, config.Control.Telegram)
	require.Equal(t, "42", config.PollerOptions().ChatID)

	require.True(t, config.ShouldNotifyOnStart())
	require.False(t, config.ShouldNotifyOnShutdown())
	require.Len(t, config.Targets, 2)
	require.Equal(t, "Asia/Seoul", config.TimeZone)
}

func TestReadTurnsSwitchesOff(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bookingbot.json5")
	err := os.WriteFile(path, []byte(`{
		browser: { headless: true, bypass_cloudflare: false },
		sinks: { log: false },
		auto_start: false,
		notify_on_start: false,
	}`), 0600)
	require.NoError(t, err)

	err = os.WriteFile(filepath.Join(dir, "bookingbot.local.json5"), []byte(`{
		browser: { headless: false },
		notify_on_shutdown: false,
	}`), 0600)
	require.NoError(t, err)

	config, err := Read(path)
	require.NoError(t, err)

	require.False(t, config.ChromeOptions().Headless)
	require.False(t, config.StaticOptions().BypassCloudflare)
	require.False(t, config.LogSink())
	require.False(t, config.ShouldAutoStart())
	require.False(t, config.ShouldNotifyOnStart())
	require.False(t, config.ShouldNotifyOnShutdown())
}

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "bookingbot.json5"))
	require.True(t, os.IsNotExist(err))
}

func TestValidateReportsEverything(t *testing.T) {
	config := Defaults()
	config.TimeZone = "Mars/Olympus"
	config.Targets = append(config.Targets, TargetConfig{ID: "consultation", URL: "ftp://example.com"})
	config.Poll.IntervalSeconds = 0
	config.Heuristic.ActiveColors = []string{"not a color"}
	config.Browser.Mode = "firefox"
	config.Sinks.Telegram.Token = "123:abc"
	config.Control.Telegram = true
	config.HealthCheckCron = "every now and then"

	err := config.Validate()
	require.Error(t, err)

	msg := err.Error()
	for _, expected := range []string{
		"timezone",
		`duplicate id "consultation"`,
		`url "ftp://example.com" is not http(s)`,
		"poll.interval_seconds",
		"heuristic.active_colors[0]",
		"browser.mode",
		"token and chat_id must be set together",
		"control.telegram",
		"health_check_cron",
	} {
		require.Contains(t, msg, expected)
	}
}

func TestValidateNoTargets(t *testing.T) {
	config := Defaults()
	config.Targets = nil
	require.ErrorContains(t, config.Validate(), "at least one target")
}
