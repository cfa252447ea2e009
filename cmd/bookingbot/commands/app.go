package commands

import (
	"context"
	"log/slog"
	"os"
	"runtime"

	"github.com/flxmf365/hospital-booking-bot/internal/components/chrono"
	"github.com/flxmf365/hospital-booking-bot/internal/components/telemetry"
	"github.com/flxmf365/hospital-booking-bot/internal/config"
	"github.com/flxmf365/hospital-booking-bot/internal/notifier"
	"github.com/flxmf365/hospital-booking-bot/internal/prober"
	"github.com/flxmf365/hospital-booking-bot/internal/sinks"
	"github.com/flxmf365/hospital-booking-bot/internal/telegram"
	"github.com/flxmf365/hospital-booking-bot/lib/util/serviceutil"
)

func loadConfig() config.Config {
	cfg, err := config.Read(*configPath)
	if os.IsNotExist(err) {
		slog.Warn("config file not found, using defaults", "path", *configPath)
		cfg = config.Defaults()
	} else if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if err := cfg.Validate(); err != nil {
		serviceutil.Fatal("invalid config", err)
	}
	return cfg
}

func newTime(cfg config.Config) chrono.StandardTime {
	clock, err := chrono.NewStandardTime(cfg.TimeZone)
	if err != nil {
		serviceutil.Fatal("failed to load timezone", err)
	}
	return clock
}

// openAccessor returns the page accessor picked by browser.mode and a func releasing it.
func openAccessor(ctx context.Context, cfg config.Config, tel telemetry.API) (prober.Accessor, func()) {
	if cfg.Browser.Mode == config.BrowserStatic {
		return prober.NewStaticAccessor(cfg.StaticOptions(), tel), func() {}
	}

	chrome, err := prober.NewChromeAccessor(ctx, cfg.ChromeOptions(), tel)
	if err != nil {
		serviceutil.Fatal("failed to start chrome", err)
	}
	return chrome, func() {
		err := chrome.Close()
		if err != nil {
			slog.Warn("failed to close chrome", "err", err)
		}
	}
}

func newProber(cfg config.Config, accessor prober.Accessor, clock chrono.TimeAPI, tel telemetry.API) prober.Prober {
	options, err := cfg.ProberOptions()
	if err != nil {
		serviceutil.Fatal("invalid heuristic", err)
	}
	return prober.NewProber(accessor, options, clock, tel)
}

func newTelegramClient(cfg config.Config, tel telemetry.API) *telegram.Client {
	if !cfg.Sinks.Telegram.Enabled() {
		return nil
	}
	client, err := telegram.NewClient(cfg.TelegramOptions(), tel)
	if err != nil {
		serviceutil.Fatal("failed to create telegram client", err)
	}
	return client
}

func buildSinks(cfg config.Config, bot *telegram.Client) []notifier.NamedSink {
	var out []notifier.NamedSink
	if bot != nil {
		out = append(out, notifier.NamedSink{
			Name: "telegram",
			Sink: sinks.NewTelegram(bot, cfg.Sinks.Telegram.ChatID),
		})
	}
	if cfg.Sinks.Email.Enabled() {
		out = append(out, notifier.NamedSink{
			Name: "email",
			Sink: sinks.NewEmail(cfg.SmtpOptions()),
		})
	}
	if cfg.Sinks.Desktop.Enabled {
		argv := cfg.Sinks.Desktop.Command
		if len(argv) == 0 {
			argv = sinks.DefaultDesktopCommand(runtime.GOOS)
		}
		if len(argv) == 0 {
			slog.Warn("desktop notifications are not supported here", "os", runtime.GOOS)
		} else {
			out = append(out, notifier.NamedSink{Name: "desktop", Sink: sinks.NewDesktop(argv)})
		}
	}
	if cfg.LogSink() {
		out = append(out, notifier.NamedSink{Name: "log", Sink: sinks.NewLog(slog.Default())})
	}
	if len(out) == 0 {
		slog.Warn("no notification sinks are configured")
	}
	return out
}
