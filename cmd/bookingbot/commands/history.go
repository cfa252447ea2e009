package commands

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/flxmf365/hospital-booking-bot/internal/config"
	"github.com/flxmf365/hospital-booking-bot/internal/store"
	"github.com/flxmf365/hospital-booking-bot/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var errHistoryDisabled = errors.New("store.path is empty")

var historyLimit *int
var historyTarget *string

func init() {
	historyLimit = historyCmd.Flags().Int("limit", 20, "How many rows of each table to print.")
	historyTarget = historyCmd.Flags().String("target", "", "Only print probes of this target id.")
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statusCmd)
}

func openHistory(ctx context.Context, cfg config.Config) store.Store {
	if cfg.Store.Path == "" {
		serviceutil.Fatal("history is disabled", errHistoryDisabled)
	}
	history, err := store.Open(ctx, cfg.Store.Path, "")
	if err != nil {
		serviceutil.Fatal("failed to open history", err)
	}
	return history
}

func probeTable(records []store.ProbeRecord) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run", "Target", "Probed at", "Available", "Dates", "Error"})
	for _, record := range records {
		t.AppendRow(table.Row{
			record.RunID,
			record.Target,
			record.ProbedAt.Format(time.DateTime),
			record.Available,
			strings.Join(record.Labels, ", "),
			record.Error,
		})
	}
	t.SetStyle(table.StyleRounded)
	return t
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Prints the latest recorded probe of every target.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		history := openHistory(ctx, loadConfig())
		defer history.Close()

		latest, err := history.LatestProbes(ctx)
		if err != nil {
			serviceutil.Fatal("failed to read history", err)
		}
		probeTable(latest).Render()
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [--limit <n>] [--target <id>]",
	Short: "Prints recent probes and availability changes.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		history := openHistory(ctx, loadConfig())
		defer history.Close()

		probes, err := history.RecentProbes(ctx, *historyTarget, *historyLimit)
		if err != nil {
			serviceutil.Fatal("failed to read probes", err)
		}
		probeTable(probes).Render()

		events, err := history.RecentEvents(ctx, *historyLimit)
		if err != nil {
			serviceutil.Fatal("failed to read events", err)
		}
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Run", "Target", "At", "Event", "Dates"})
		for _, ev := range events {
			t.AppendRow(table.Row{
				ev.RunID,
				ev.Target,
				ev.At.Format(time.DateTime),
				ev.Kind,
				strings.Join(ev.Labels, ", "),
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
