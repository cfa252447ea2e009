package commands

import (
	"fmt"
	"os"

	"github.com/flxmf365/hospital-booking-bot/internal/components/telemetry"
	"github.com/flxmf365/hospital-booking-bot/internal/prober"
	"github.com/flxmf365/hospital-booking-bot/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var classifyFile *string
var classifyTarget *string

func init() {
	classifyFile = classifyCmd.Flags().String("file", "", "A saved booking page to classify.")
	classifyTarget = classifyCmd.Flags().String("target", "", "The target the page belongs to, defaults to the first one.")
	classifyCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(classifyCmd)
}

var classifyCmd = &cobra.Command{
	Use:   "classify --file <page.html> [--target <id>]",
	Short: "Explains how the heuristic classifies every slot of a saved page.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := loadConfig()
		tel := telemetry.SlogAPI{}
		clock := newTime(cfg)

		heuristic, err := cfg.BuildHeuristic()
		if err != nil {
			serviceutil.Fatal("invalid heuristic", err)
		}

		accessor := prober.NewFileAccessor(*classifyFile, cfg.StaticOptions())
		page, err := accessor.Render(ctx, "")
		if err != nil {
			serviceutil.Fatal("failed to parse page", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Label", "Classes", "Enabled", "Color", "Available", "Reason"})
		for _, slot := range page.Slots {
			verdict := heuristic.Explain(slot)
			t.AppendRow(table.Row{slot.Label, slot.Classes, slot.Enabled, slot.Color, verdict.Available, verdict.Reason})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()

		targets := cfg.ProberTargets()
		target := targets[0]
		if *classifyTarget != "" {
			found := false
			for _, candidate := range targets {
				if candidate.ID == *classifyTarget {
					target, found = candidate, true
				}
			}
			if !found {
				serviceutil.Fatal("failed to find target", fmt.Errorf("no target with id %q", *classifyTarget))
			}
		}

		snapshot := newProber(cfg, accessor, clock, tel).Probe(ctx, target)
		if snapshot.Failed() {
			fmt.Printf("%s: probe failed: %s\n", target.DisplayName(), snapshot.Err.Error())
			return
		}
		fmt.Printf("%s: available=%v dates=%v\n", target.DisplayName(), snapshot.Available, snapshot.Labels)
	},
}
