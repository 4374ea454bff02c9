package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mysterymsg/mystery/internal/monitoring"
	"github.com/mysterymsg/mystery/internal/store"
	"github.com/mysterymsg/mystery/pkg/logger"
	"github.com/mysterymsg/mystery/pkg/metrics"
)

const (
	// JobRefreshStats names the gauge refresh job in the tracker and metrics.
	JobRefreshStats = "refresh_stats"
	// JobPurgeRateCounters names the expired rate counter cleanup job.
	JobPurgeRateCounters = "purge_rate_counters"

	defaultStatsSpec  = "@every 5m"
	defaultPurgeSpec  = "@every 15m"
	defaultJobTimeout = 30 * time.Second
)

// StatsSource reports stored account and message counts.
type StatsSource interface {
	Stats(ctx context.Context) (store.Stats, error)
}

// CounterPurger drops expired rate limit counters.
type CounterPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type job struct {
	name string
	spec string
	run  func(ctx context.Context) error
}

// Scheduler runs maintenance jobs on a cron schedule. It never mutates accounts or messages.
type Scheduler struct {
	source  StatsSource
	purger  CounterPurger
	tracker *monitoring.JobTracker
	cron    *cron.Cron
	now     func() time.Time
	log     *zap.Logger
	timeout time.Duration

	statsSchedule string
	purgeSchedule string
	jobs          []job
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used to time job runs.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithStatsSchedule overrides the cron schedule for the gauge refresh.
func WithStatsSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.statsSchedule = spec
		}
	}
}

// WithCounterPurger enables the rate counter cleanup job. An empty spec keeps the default.
func WithCounterPurger(purger CounterPurger, spec string) Option {
	return func(s *Scheduler) {
		s.purger = purger
		if spec != "" {
			s.purgeSchedule = spec
		}
	}
}

// WithTracker records every run so the readiness probe can report stale or failing jobs.
func WithTracker(tracker *monitoring.JobTracker) Option {
	return func(s *Scheduler) {
		s.tracker = tracker
	}
}

// WithJobTimeout bounds a single job run.
func WithJobTimeout(timeout time.Duration) Option {
	return func(s *Scheduler) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// NewScheduler constructs a Scheduler. A nil source disables the stats job.
func NewScheduler(source StatsSource, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:        source,
		now:           time.Now,
		timeout:       defaultJobTimeout,
		statsSchedule: defaultStatsSpec,
		purgeSchedule: defaultPurgeSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	if s.source != nil {
		s.jobs = append(s.jobs, job{name: JobRefreshStats, spec: s.statsSchedule, run: s.RefreshStats})
	}
	if s.purger != nil {
		s.jobs = append(s.jobs, job{name: JobPurgeRateCounters, spec: s.purgeSchedule, run: s.PurgeRateCounters})
	}

	return s
}

// Start registers the jobs with cron and launches it when at least one job is enabled.
func (s *Scheduler) Start() error {
	if len(s.jobs) == 0 {
		return nil
	}

	for _, j := range s.jobs {
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() {
			if err := s.execute(context.Background(), j); err != nil {
				s.log.Warn("maintenance job failed", zap.String("job", j.name), zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes every job sequentially. Used at start-up and in tests.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, j := range s.jobs {
		errs = multierr.Append(errs, s.execute(ctx, j))
	}
	return errs
}

// RefreshStats reads the stored counts and publishes them as gauges.
func (s *Scheduler) RefreshStats(ctx context.Context) error {
	if s.source == nil {
		return errors.New("refresh stats: store is required")
	}

	stats, err := s.source.Stats(ctx)
	if err != nil {
		return fmt.Errorf("refresh stats: %w", err)
	}

	metrics.Accounts.WithLabelValues("verified").Set(float64(stats.VerifiedAccounts))
	metrics.Accounts.WithLabelValues("pending").Set(float64(stats.PendingAccounts))
	metrics.InboxMessages.Set(float64(stats.Messages))
	return nil
}

// PurgeRateCounters removes rate limit counters whose window has elapsed.
func (s *Scheduler) PurgeRateCounters(ctx context.Context) error {
	if s.purger == nil {
		return errors.New("purge rate counters: counter store is required")
	}

	purged, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purge rate counters: %w", err)
	}
	if purged > 0 {
		s.log.Debug("purged expired rate counters", zap.Int64("count", purged))
	}
	return nil
}

func (s *Scheduler) execute(ctx context.Context, j job) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	err := j.run(ctx)
	duration := s.now().Sub(start)

	result, message := "success", ""
	if err != nil {
		result, message = "failure", err.Error()
	}
	metrics.MaintenanceRuns.WithLabelValues(j.name, result).Inc()
	s.tracker.Record(j.name, result, message, duration)

	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	return nil
}
