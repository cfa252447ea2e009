package commands

import (
	"os"
	"time"

	"github.com/flxmf365/hospital-booking-bot/internal/components/telemetry"
	"github.com/flxmf365/hospital-booking-bot/internal/monitor"
	"github.com/flxmf365/hospital-booking-bot/internal/notifier"
	"github.com/flxmf365/hospital-booking-bot/internal/sinks"
	"github.com/flxmf365/hospital-booking-bot/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check [target...]",
	Short: "Probes targets once and prints what is open, without notifying anyone.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := loadConfig()
		tel := telemetry.SlogAPI{}
		clock := newTime(cfg)

		accessor, closeAccessor := openAccessor(ctx, cfg, tel)
		defer closeAccessor()

		manager := monitor.NewManager(ctx, cfg.ProberTargets(), monitor.ManagerOptions{
			Prober:   newProber(cfg, accessor, clock, tel),
			Observer: notifier.NewNotifier(sinks.NewLog(nil), nil, notifier.Options{Place: cfg.Place}, tel),
			Policy:   cfg.Policy(),
			Time:     clock,
			Tel:      tel,
		})

		var results []monitor.CheckResult
		if len(args) == 0 {
			results = manager.CheckAll(ctx)
		} else {
			for _, query := range args {
				target, err := manager.Resolve(query)
				if err != nil {
					serviceutil.Fatal("failed to resolve target", err)
				}
				snapshot, err := manager.CheckNow(ctx, target.ID)
				if err != nil {
					serviceutil.Fatal("failed to check target", err)
				}
				results = append(results, monitor.CheckResult{Target: target, Snapshot: snapshot})
			}
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Target", "Available", "Dates", "Error", "Checked at"})
		for _, res := range results {
			errText := ""
			if res.Snapshot.Failed() {
				errText = res.Snapshot.Err.Error()
			}
			t.AppendRow(table.Row{
				res.Target.DisplayName(),
				res.Snapshot.Available,
				notifier.CapLabels(res.Snapshot.Labels, notifier.DisplayCap),
				errText,
				res.Snapshot.ProbedAt.Format(time.DateTime),
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
