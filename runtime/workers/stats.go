package workers

import (
	"chat-relay/contract"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// StatsWorker logs technical self-metrics (CPU, RSS) together with the
// live-connection count on a fixed interval.
type StatsWorker struct {
	log         *slog.Logger
	connections contract.IConnectionRepository
	interval    time.Duration
}

func NewStatsWorker(log *slog.Logger, connections contract.IConnectionRepository,
	interval time.Duration) *StatsWorker {
	return &StatsWorker{log: log, connections: connections, interval: interval}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			connections, err := w.connections.ListAll()
			if err != nil {
				return err
			}
			w.log.Info("relay stats",
				"live_connections", len(connections),
				"rss_bytes", rss,
				"cpu_percent", cpu,
			)
		}
	}
}

func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
