package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flxmf365/hospital-booking-bot/internal/components/chrono"
	"github.com/flxmf365/hospital-booking-bot/internal/components/telemetry"
	"github.com/flxmf365/hospital-booking-bot/internal/config"
	"github.com/flxmf365/hospital-booking-bot/internal/control"
	"github.com/flxmf365/hospital-booking-bot/internal/monitor"
	"github.com/flxmf365/hospital-booking-bot/internal/notifier"
	"github.com/flxmf365/hospital-booking-bot/internal/store"
	otelsetup "github.com/flxmf365/hospital-booking-bot/lib/telemetry"
	"github.com/flxmf365/hospital-booking-bot/lib/util/serviceutil"

	random "github.com/mazen160/go-random"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

var runIdle *bool

func init() {
	runIdle = runCmd.Flags().Bool("idle", false, "Do not start any monitor, wait for chat commands instead.")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--idle]",
	Short: "Monitors every configured target until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := loadConfig()

		providers, err := otelsetup.SetupFromEnv(ctx, "bookingbot")
		if err != nil {
			serviceutil.Fatal("failed to setup telemetry", err)
		}
		defer providers.Shutdown(context.Background())
		otelsetup.InstrumentPerfStats(ctx, time.Minute)

		tel, err := telemetry.NewMeteredAPI(telemetry.SlogAPI{}, otel.Meter("bookingbot"))
		if err != nil {
			serviceutil.Fatal("failed to create meters", err)
		}
		clock := newTime(cfg)

		runID, err := random.String(8)
		if err != nil {
			serviceutil.Fatal("failed to generate run id", err)
		}

		accessor, closeAccessor := openAccessor(ctx, cfg, tel)
		defer closeAccessor()
		probe := newProber(cfg, accessor, clock, tel)

		bot := newTelegramClient(cfg, tel)
		fanout := notifier.NewFanout(cfg.FanoutTimeout(), tel, buildSinks(cfg, bot)...)

		var probeRecorder monitor.ProbeRecorder
		var eventRecorder notifier.EventRecorder
		if cfg.Store.Path != "" {
			history, err := store.Open(ctx, cfg.Store.Path, runID)
			if err != nil {
				serviceutil.Fatal("failed to open history", err)
			}
			defer history.Close()
			probeRecorder = history
			eventRecorder = history
		}

		notify := notifier.NewNotifier(fanout, eventRecorder, notifier.Options{Place: cfg.Place}, tel)
		manager := monitor.NewManager(ctx, cfg.ProberTargets(), monitor.ManagerOptions{
			Prober:   probe,
			Observer: notify,
			Recorder: probeRecorder,
			Policy:   cfg.Policy(),
			Time:     clock,
			Tel:      tel,
			CheckTTL: cfg.CheckCacheTTL(),
		})

		cron := scheduleJobs(ctx, cfg, clock, tel, manager, notify)
		defer cron.Stop()

		if cfg.Control.Telegram {
			dispatcher := control.NewDispatcher(manager, control.DispatcherOptions{
				Place:    cfg.Place,
				Interval: cfg.Policy().Interval,
			}, clock)
			poller := control.NewTelegramPoller(bot, dispatcher, cfg.PollerOptions(), clock, tel)
			go poller.Run(ctx)
		}

		started := 0
		if cfg.ShouldAutoStart() && !*runIdle {
			for _, res := range manager.StartAll() {
				if res.Changed {
					started++
				}
			}
		}
		slog.Info("bookingbot running", "run_id", runID, "targets", len(manager.Targets()), "started", started)

		if cfg.ShouldNotifyOnStart() {
			notify.Announce(ctx, "예약 모니터링 봇 시작", startupBody(cfg, manager, started))
		}

		<-ctx.Done()

		manager.StopAll()
		manager.Wait()

		if cfg.ShouldNotifyOnShutdown() {
			notify.Announce(context.Background(), "예약 모니터링 봇 종료", "모든 모니터링이 중지되었습니다.")
		}
	},
}

func scheduleJobs(
	ctx context.Context,
	cfg config.Config,
	clock chrono.StandardTime,
	tel telemetry.API,
	manager *monitor.Manager,
	notify notifier.Notifier,
) chrono.StandardCron {
	cron := chrono.NewStandardCron(clock.Location(), tel)

	err := cron.Cron(cfg.HealthCheckCron, func() {
		manager.HealthCheck()
	})
	if err != nil {
		serviceutil.Fatal("failed to schedule health check", err)
	}

	if cfg.SummaryCron != "" {
		err = cron.Cron(cfg.SummaryCron, func() {
			notify.Announce(ctx, "예약 모니터링 현황", summaryBody(manager.StatusAll()))
		})
		if err != nil {
			serviceutil.Fatal("failed to schedule summary", err)
		}
	}
	return cron
}

func startupBody(cfg config.Config, manager *monitor.Manager, started int) string {
	names := make([]string, 0, len(manager.Targets()))
	for _, target := range manager.Targets() {
		names = append(names, target.DisplayName())
	}

	lines := []string{}
	if cfg.Place != "" {
		lines = append(lines, fmt.Sprintf("병원: %s", cfg.Place))
	}
	lines = append(lines,
		fmt.Sprintf("대상: %s", strings.Join(names, ", ")),
		fmt.Sprintf("확인 간격: %s", cfg.Policy().Interval),
		fmt.Sprintf("실행 중: %d/%d", started, len(names)),
	)
	return strings.Join(lines, "\n")
}

// summaryBody renders the state of every target as plain text.
func summaryBody(statuses []monitor.Status) string {
	lines := make([]string, 0, len(statuses))
	for _, status := range statuses {
		name := status.Target.DisplayName()
		if !status.Running {
			lines = append(lines, fmt.Sprintf("%s: 중지됨", name))
			continue
		}

		line := fmt.Sprintf("%s: 실행 중", name)
		if !status.State.LastSuccess.IsZero() {
			line += fmt.Sprintf(", 마지막 확인 %s", status.State.LastSuccess.Format(time.TimeOnly))
		}
		if status.State.LastAvailable {
			line += fmt.Sprintf(", 예약 가능 (%s)", notifier.CapLabels(status.State.LastLabels, notifier.DisplayCap))
		}
		if status.Stale {
			line += ", 응답 지연"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
