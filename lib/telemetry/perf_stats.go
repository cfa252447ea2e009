package telemetry

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel"
)

var meter = otel.Meter("bookingbot.perf_stats")
var cpuGauge, _ = meter.Float64Gauge("cpu_usage")
var memoryGauge, _ = meter.Int64Gauge("allocated_mb")
var goroutineGauge, _ = meter.Int64Gauge("goroutine_count")
var childrenGauge, _ = meter.Int64Gauge("child_processes")
var childrenRssGauge, _ = meter.Int64Gauge("child_rss_mb")

// ChildStats sums the resident memory of every process started by this one,
// which is where a headless browser's memory goes.
type ChildStats struct {
	Count int
	RssMB int64
}

func ReadChildStats(ctx context.Context) (ChildStats, error) {
	self, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return ChildStats{}, err
	}
	children, err := self.ChildrenWithContext(ctx)
	if err == process.ErrorNoChildren {
		return ChildStats{}, nil
	}
	if err != nil {
		return ChildStats{}, err
	}

	stats := ChildStats{Count: len(children)}
	for _, child := range children {
		mem, err := child.MemoryInfoWithContext(ctx)
		if err != nil {
			continue
		}
		stats.RssMB += int64(mem.RSS / 1_000_000)
	}
	return stats, nil
}

// InstrumentPerfStats records process gauges every interval until ctx is done.
func InstrumentPerfStats(ctx context.Context, interval time.Duration) {
	go func() {
		var memStats runtime.MemStats
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runtime.ReadMemStats(&memStats)

				cpuUsage, err := cpu.PercentWithContext(ctx, time.Second*5, false)
				if err == nil && len(cpuUsage) > 0 {
					cpuGauge.Record(ctx, cpuUsage[0])
				} else if err != nil && ctx.Err() == nil {
					slog.Debug("failed to read cpu usage", "err", err)
				}

				children, err := ReadChildStats(ctx)
				if err == nil {
					childrenGauge.Record(ctx, int64(children.Count))
					childrenRssGauge.Record(ctx, children.RssMB)
				} else if ctx.Err() == nil {
					slog.Debug("failed to read child processes", "err", err)
				}

				memoryGauge.Record(ctx, int64(memStats.Alloc/1_000_000))
				goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))
			case <-ctx.Done():
				return
			}
		}
	}()
}
