package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const pruneTimeout = 5 * time.Minute

// Pruner deletes records older than the retention window on a cron schedule.
type Pruner struct {
	repo      Repository
	retention time.Duration
	cron      *cron.Cron
	now       func() time.Time
}

// NewPruner schedules pruning of repo. schedule is a standard cron spec or a
// descriptor such as "@hourly".
func NewPruner(repo Repository, retention time.Duration, schedule string) (*Pruner, error) {
	p := &Pruner{
		repo:      repo,
		retention: retention,
		cron:      cron.New(),
		now:       time.Now,
	}
	if _, err := p.cron.AddFunc(schedule, p.run); err != nil {
		return nil, fmt.Errorf("history: schedule pruner %q: %w", schedule, err)
	}
	return p, nil
}

// Start begins running the schedule in the background.
func (p *Pruner) Start() {
	slog.Info("history: pruner started", slog.Duration("retention", p.retention))
	p.cron.Start()
}

// Stop halts the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
}

func (p *Pruner) run() {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()
	if _, err := p.PruneNow(ctx); err != nil {
		slog.Warn("history: prune failed", slog.Any("error", err))
	}
}

// PruneNow deletes expired records immediately.
func (p *Pruner) PruneNow(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, nil
	}
	n, err := p.repo.Prune(ctx, p.now().Add(-p.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("history: pruned records", slog.Int64("count", n))
	}
	return n, nil
}
