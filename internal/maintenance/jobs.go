package maintenance

import (
	"context"
	"log/slog"
)

// MemoryStats is the slice of the coordinator the stats job needs. Defined
// here to avoid a dependency on the coordinator package.
type MemoryStats interface {
	ChunkCount(ctx context.Context) (int64, error)
	Healthy(ctx context.Context) error
}

// StatsJob periodically logs a snapshot of the memory store: chunk count and
// primary reachability.
type StatsJob struct {
	Stats        MemoryStats
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

var _ Job = (*StatsJob)(nil)

// Name implements Job.
func (j *StatsJob) Name() string { return "memory_stats" }

// Schedule implements Job.
func (j *StatsJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run logs the current chunk count, or the primary outage preventing it.
func (j *StatsJob) Run(ctx context.Context) error {
	if err := j.Stats.Healthy(ctx); err != nil {
		j.Logger.Warn("maintenance: primary store unreachable", "error", err)
		return nil
	}

	count, err := j.Stats.ChunkCount(ctx)
	if err != nil {
		return err
	}
	j.Logger.Info("maintenance: memory stats", "chunks", count)
	return nil
}
