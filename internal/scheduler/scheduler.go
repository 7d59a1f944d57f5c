// Package scheduler drives the periodic mailing dispatch cycle.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/okeev/mailsched/internal/metrics"
	"github.com/okeev/mailsched/internal/models"
	"github.com/okeev/mailsched/internal/schedule"
)

// Config holds scheduler configuration
type Config struct {
	TickInterval time.Duration
	Concurrency  int
	Clock        func() time.Time // nil = time.Now
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		TickInterval: time.Minute,
		Concurrency:  4,
	}
}

// Scheduler wakes at a fixed tick interval, selects due campaigns and hands
// them to the executor. Campaigns are processed independently; a bounded
// worker pool caps transport concurrency and a per-campaign single-flight set
// guarantees a tick that overruns the interval cannot double-send a campaign.
type Scheduler struct {
	campaigns CampaignStore
	attempts  AttemptStore
	exec      *Executor
	metrics   *metrics.Metrics
	logger    *slog.Logger

	interval    time.Duration
	concurrency int
	now         func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new scheduler
func New(campaigns CampaignStore, attempts AttemptStore, exec *Executor, mx *metrics.Metrics, logger *slog.Logger, cfg Config) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		campaigns:   campaigns,
		attempts:    attempts,
		exec:        exec,
		metrics:     mx,
		logger:      logger.With("component", "scheduler"),
		interval:    cfg.TickInterval,
		concurrency: cfg.Concurrency,
		now:         cfg.Clock,
		inflight:    make(map[string]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background tick loop
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
	s.logger.Info("scheduler started", "tick_interval", s.interval, "concurrency", s.concurrency)
}

// Stop stops the scheduler gracefully, waiting for in-flight campaign work
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler...")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunTick(s.ctx); err != nil {
				s.logger.Error("tick failed", "error", err)
			}
		}
	}
}

// RunTick executes one due-check-and-dispatch cycle. The manual CLI trigger
// calls this directly; it behaves identically to a timer tick.
func (s *Scheduler) RunTick(ctx context.Context) error {
	start := time.Now()
	s.metrics.TicksTotal.Inc()

	active, err := s.campaigns.ListActive()
	if err != nil {
		s.metrics.StoreErrorsTotal.Inc()
		return fmt.Errorf("failed to list active campaigns: %w", err)
	}
	s.metrics.CampaignsActive.Set(float64(len(active)))

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i := range active {
		c := active[i]

		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		default:
		}

		// Skip campaigns still being processed by an overrunning tick.
		if !s.acquire(c.ID) {
			continue
		}

		sem <- struct{}{}
		wg.Add(1)

		go func() {
			defer func() {
				<-sem
				wg.Done()
				s.release(c.ID)
			}()
			s.process(ctx, &c)
		}()
	}

	wg.Wait()
	s.metrics.TickDurationSeconds.Observe(time.Since(start).Seconds())
	return nil
}

// process handles one campaign within a tick. The baseline read happens
// inside the single-flight section, so a back-to-back tick observes the
// successful attempt the previous tick recorded and finds the campaign not
// due.
func (s *Scheduler) process(ctx context.Context, c *models.Campaign) {
	now := s.now()
	logger := s.logger.With("campaign_id", c.ID)

	if c.Ended(now) {
		s.retire(c, logger)
		return
	}

	last, err := s.attempts.GetLastSuccess(c.ID)
	if err != nil {
		s.metrics.StoreErrorsTotal.Inc()
		logger.Error("failed to get last attempt", "error", err)
		return
	}

	due, err := schedule.IsDue(c, last, now)
	if err != nil {
		s.metrics.SelectorErrorsTotal.Inc()
		logger.Warn("skipping campaign with bad schedule", "periodicity", c.Periodicity, "error", err)
		return
	}
	if !due {
		return
	}
	s.metrics.CampaignsDueTotal.Inc()

	attempt, err := s.exec.Dispatch(ctx, c)
	if err != nil {
		// Store failure: no attempt was recorded, leave the status alone so
		// the campaign is re-evaluated on the next tick.
		s.metrics.StoreErrorsTotal.Inc()
		logger.Error("failed to dispatch campaign", "error", err)
		return
	}

	// Attempt first, status second: the worst crash outcome is a recorded
	// attempt with a stale status, corrected by re-deriving from the ledger.
	if err := s.campaigns.UpdateStatus(c.ID, models.StatusStarted); err != nil {
		s.metrics.StoreErrorsTotal.Inc()
		logger.Error("failed to update campaign status", "error", err)
		return
	}

	logger.Info("campaign dispatched", "outcome", attempt.Outcome, "attempted_at", attempt.AttemptedAt)
}

// retire moves a campaign whose end window has passed to a terminal status:
// completed when it delivered at least once, stopped otherwise.
func (s *Scheduler) retire(c *models.Campaign, logger *slog.Logger) {
	status := models.StatusStopped
	delivered, err := s.attempts.HasSuccess(c.ID)
	if err != nil {
		s.metrics.StoreErrorsTotal.Inc()
		logger.Error("failed to inspect attempt ledger", "error", err)
		return
	}
	if delivered {
		status = models.StatusCompleted
	}

	if err := s.campaigns.UpdateStatus(c.ID, status); err != nil {
		s.metrics.StoreErrorsTotal.Inc()
		logger.Error("failed to retire campaign", "error", err)
		return
	}

	s.metrics.CampaignsRetiredTotal.WithLabelValues(string(status)).Inc()
	logger.Info("campaign retired", "status", status, "end_at", c.EndAt)
}

func (s *Scheduler) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}
