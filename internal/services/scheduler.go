package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/soochol/dbadmin/internal/config"
)

// jobTimeout bounds a single scheduled run.
const jobTimeout = 5 * time.Minute

// RefreshScheduler periodically refreshes the registry and syncs metadata
// of every registered database. It wraps robfig/cron; overlapping runs of
// the same job are skipped.
type RefreshScheduler struct {
	cron            *cron.Cron
	mgr             *RegistryManager
	syncConcurrency int
	entries         map[string]cron.EntryID
}

// NewRefreshScheduler registers the jobs configured in cfg. Empty
// expressions disable the corresponding job.
func NewRefreshScheduler(mgr *RegistryManager, cfg config.SchedulerConfig) (*RefreshScheduler, error) {
	s := &RefreshScheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		mgr:             mgr,
		syncConcurrency: cfg.SyncConcurrency,
		entries:         make(map[string]cron.EntryID),
	}
	if err := s.register("refresh", cfg.RefreshCron, s.refresh); err != nil {
		return nil, err
	}
	if err := s.register("sync", cfg.SyncCron, s.syncAll); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RefreshScheduler) register(name, expr string, job func()) error {
	if expr == "" {
		return nil
	}
	sched, err := parseCronExpr(expr)
	if err != nil {
		return fmt.Errorf("invalid %s cron %q: %w", name, expr, err)
	}
	s.entries[name] = s.cron.Schedule(sched, cron.FuncJob(job))
	slog.Info("scheduler: job registered", "job", name, "cron", expr)
	return nil
}

// Start runs the scheduler in the background.
func (s *RefreshScheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler: started", "jobs", len(s.entries))
}

// Stop waits for running jobs to finish.
func (s *RefreshScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("scheduler: stopped")
}

// Jobs returns the registered job names and their next run time.
func (s *RefreshScheduler) Jobs() map[string]time.Time {
	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

func (s *RefreshScheduler) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := s.mgr.FetchAll(ctx); err != nil {
		slog.Warn("scheduler: refresh failed", "err", err)
	}
}

func (s *RefreshScheduler) syncAll() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := s.mgr.BackgroundSync(ctx, s.syncConcurrency); err != nil {
		slog.Warn("scheduler: sync failed", "err", err)
	}
}

// parseCronExpr accepts 6-field (with seconds), 5-field and descriptor
// ("@every 1m") expressions.
func parseCronExpr(expr string) (cron.Schedule, error) {
	parser6 := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser6.Parse(expr)
	if err == nil {
		return sched, nil
	}
	parser5 := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return parser5.Parse(expr)
}
