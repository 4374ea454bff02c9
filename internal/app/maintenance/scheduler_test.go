package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	"github.com/mysterymsg/mystery/internal/cache"
	dbtestutil "github.com/mysterymsg/mystery/internal/database/testutil"
	"github.com/mysterymsg/mystery/internal/models"
	"github.com/mysterymsg/mystery/internal/monitoring"
	"github.com/mysterymsg/mystery/internal/store"
	"github.com/mysterymsg/mystery/pkg/metrics"
)

type stubSource struct {
	stats store.Stats
	err   error
	calls int
}

func (s *stubSource) Stats(context.Context) (store.Stats, error) {
	s.calls++
	return s.stats, s.err
}

func TestRefreshStatsFromSQLStore(t *testing.T) {
	db := dbtestutil.MustOpenTestDB(t, dbtestutil.WithAutoMigrate())
	st, err := store.NewSQLStore(db)
	require.NoError(t, err)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	verified, err := st.CreatePending(ctx, store.Registration{
		Username: "alice", Email: "alice@example.com", PasswordHash: "hash", Code: "123456", CodeExpiry: expiry,
	})
	require.NoError(t, err)
	require.NoError(t, st.MarkVerified(ctx, verified.ID, "123456"))

	_, err = st.CreatePending(ctx, store.Registration{
		Username: "bob", Email: "bob@example.com", PasswordHash: "hash", Code: "654321", CodeExpiry: expiry,
	})
	require.NoError(t, err)

	require.NoError(t, st.AppendMessage(ctx, verified.ID, &models.Message{Content: "first anonymous note", CreatedAt: time.Now()}))
	require.NoError(t, st.AppendMessage(ctx, verified.ID, &models.Message{Content: "second anonymous note", CreatedAt: time.Now()}))

	tracker := monitoring.NewJobTracker()
	scheduler := NewScheduler(st, WithTracker(tracker), WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))))

	require.NoError(t, scheduler.RunOnce(ctx))

	require.Equal(t, float64(1), testutil.ToFloat64(metrics.Accounts.WithLabelValues("verified")))
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.Accounts.WithLabelValues("pending")))
	require.Equal(t, float64(2), testutil.ToFloat64(metrics.InboxMessages))

	jobs := tracker.Snapshot()
	require.Len(t, jobs, 1)
	require.Equal(t, JobRefreshStats, jobs[0].Job)
	require.Equal(t, "success", jobs[0].LastStatus)
	require.Equal(t, uint64(1), jobs[0].TotalRuns)

	account, err := st.FindByUsername(ctx, "bob")
	require.NoError(t, err)
	require.False(t, account.IsVerified)
}

func TestRunOnceRecordsFailures(t *testing.T) {
	source := &stubSource{err: errors.New("store offline")}
	tracker := monitoring.NewJobTracker()
	scheduler := NewScheduler(source, WithTracker(tracker))

	before := testutil.ToFloat64(metrics.MaintenanceRuns.WithLabelValues(JobRefreshStats, "failure"))

	err := scheduler.RunOnce(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "store offline")

	require.Equal(t, before+1, testutil.ToFloat64(metrics.MaintenanceRuns.WithLabelValues(JobRefreshStats, "failure")))

	jobs := tracker.Snapshot()
	require.Len(t, jobs, 1)
	require.Equal(t, "failure", jobs[0].LastStatus)
	require.Equal(t, uint64(1), jobs[0].ConsecutiveFailures)
	require.Contains(t, jobs[0].LastError, "store offline")
}

func TestSchedulerWithoutSourceIsNoop(t *testing.T) {
	scheduler := NewScheduler(nil)
	require.NoError(t, scheduler.Start())
	require.NoError(t, scheduler.RunOnce(context.Background()))
	<-scheduler.Stop().Done()
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	scheduler := NewScheduler(&stubSource{}, WithStatsSchedule("not a schedule"))
	require.Error(t, scheduler.Start())
}

func TestStartRunsScheduledJob(t *testing.T) {
	source := &stubSource{stats: store.Stats{VerifiedAccounts: 4}}
	tracker := monitoring.NewJobTracker()
	scheduler := NewScheduler(source, WithTracker(tracker), WithStatsSchedule("@every 10ms"))

	require.NoError(t, scheduler.Start())
	require.Eventually(t, func() bool {
		return len(tracker.Snapshot()) == 1
	}, 3*time.Second, 10*time.Millisecond)
	<-scheduler.Stop().Done()

	require.Equal(t, "success", tracker.Snapshot()[0].LastStatus)
}

func TestPurgeRateCounters(t *testing.T) {
	db := dbtestutil.MustOpenTestDB(t, dbtestutil.WithAutoMigrate())
	now := time.Now()
	counters := cache.NewDatabaseStore(db).WithClock(func() time.Time { return now })
	ctx := context.Background()

	_, _, err := counters.IncrementWithTTL(ctx, "expired", time.Second)
	require.NoError(t, err)
	_, _, err = counters.IncrementWithTTL(ctx, "active", time.Hour)
	require.NoError(t, err)
	now = now.Add(time.Minute)

	tracker := monitoring.NewJobTracker()
	scheduler := NewScheduler(nil, WithCounterPurger(counters, ""), WithTracker(tracker))
	require.NoError(t, scheduler.RunOnce(ctx))

	var keys []string
	require.NoError(t, db.Model(&models.RateCounter{}).Pluck("key", &keys).Error)
	require.Equal(t, []string{"active"}, keys)

	jobs := tracker.Snapshot()
	require.Len(t, jobs, 1)
	require.Equal(t, JobPurgeRateCounters, jobs[0].Job)
	require.Equal(t, "success", jobs[0].LastStatus)
}
