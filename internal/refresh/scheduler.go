package refresh

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"osrs-flipper/internal/logger"
)

// DefaultSchedule refreshes the feed once per minute.
const DefaultSchedule = "@every 1m"

// Pruner removes cycle history older than a cutoff.
type Pruner interface {
	PruneCycles(cutoff time.Time) int64
}

// Scheduler runs the periodic refresh and the daily history trim.
type Scheduler struct {
	Cron *cron.Cron
	orch *Orchestrator
	ctx  context.Context
}

// NewScheduler creates a Scheduler bound to ctx.
func NewScheduler(ctx context.Context, orch *Orchestrator) *Scheduler {
	return &Scheduler{
		Cron: cron.New(),
		orch: orch,
		ctx:  ctx,
	}
}

// Register adds the refresh job on spec and, when pruner is non-nil, a daily
// job that drops history older than keep.
func (s *Scheduler) Register(spec string, pruner Pruner, keep time.Duration) error {
	if spec == "" {
		spec = DefaultSchedule
	}
	if _, err := s.Cron.AddFunc(spec, s.refresh); err != nil {
		return fmt.Errorf("register refresh %q: %w", spec, err)
	}
	if pruner != nil && keep > 0 {
		if _, err := s.Cron.AddFunc("@daily", func() {
			n := pruner.PruneCycles(time.Now().Add(-keep))
			log.Printf("[SCHED] pruned %d cycle records", n)
		}); err != nil {
			return fmt.Errorf("register prune: %w", err)
		}
	}
	return nil
}

func (s *Scheduler) refresh() {
	if s.ctx.Err() != nil {
		return
	}
	if err := s.orch.Refresh(s.ctx); err != nil {
		log.Printf("[SCHED] refresh: %v", err)
	}
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	logger.Info("SCHED", "Scheduler started")
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	logger.Info("SCHED", "Scheduler stopped")
}
