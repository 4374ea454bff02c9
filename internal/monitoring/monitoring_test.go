package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mysterymsg/mystery/internal/monitoring"
	"github.com/mysterymsg/mystery/internal/monitoring/checks"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthManagerEvaluate(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.RegisterReadiness(monitoring.NewCheck("store", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("smtp", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "connection refused"}
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 2)

	live := manager.EvaluateLiveness(context.Background())
	require.True(t, live.Success)
	require.Equal(t, monitoring.StatusDown, monitoring.MergeReports(live, report).Status)
}

func TestHealthManagerRecoversPanics(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.RegisterLiveness(monitoring.NewCheck("flaky", func(ctx context.Context) monitoring.ProbeResult {
		panic("boom")
	}))

	report := manager.EvaluateLiveness(context.Background())
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Equal(t, "boom", report.Checks[0].Details)
	require.Equal(t, "flaky", report.Checks[0].Component)
}

func TestHealthManagerRunsProbesConcurrently(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	for _, name := range []string{"store", "maintenance"} {
		manager.RegisterReadiness(monitoring.NewCheck(name, func(ctx context.Context) monitoring.ProbeResult {
			started <- struct{}{}
			<-release
			return monitoring.ProbeResult{Status: monitoring.StatusUp}
		}))
	}

	go func() {
		<-started
		<-started
		close(release)
	}()

	report := manager.EvaluateReadiness(context.Background())
	require.True(t, report.Success)
	require.Equal(t, "store", report.Checks[0].Component)
	require.Equal(t, "maintenance", report.Checks[1].Component)
}

func TestHealthManagerProbeTimeout(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.SetProbeTimeout(10 * time.Millisecond)
	manager.RegisterReadiness(monitoring.NewCheck("slow", func(ctx context.Context) monitoring.ProbeResult {
		<-ctx.Done()
		return monitoring.ResultFromError("slow", ctx.Err(), 0)
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDegraded, report.Status)
}

func TestEmptyReportIsUp(t *testing.T) {
	t.Parallel()

	report := monitoring.NewHealthManager().EvaluateLiveness(context.Background())
	require.True(t, report.Success)
	require.Equal(t, monitoring.StatusUp, report.Status)
	require.NotNil(t, report.Checks)
}

func TestStoreCheck(t *testing.T) {
	t.Parallel()

	up := checks.Store(pingerFunc(func(context.Context) error { return nil }), time.Second)
	require.Equal(t, monitoring.StatusUp, up.Run(context.Background()).Status)

	down := checks.Store(pingerFunc(func(context.Context) error { return errors.New("refused") }), time.Second)
	result := down.Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.Equal(t, "refused", result.Details)

	slow := checks.Store(pingerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), 10*time.Millisecond)
	require.Equal(t, monitoring.StatusDegraded, slow.Run(context.Background()).Status)

	require.Equal(t, monitoring.StatusDown, checks.Store(nil, 0).Run(context.Background()).Status)
}

func TestMaintenanceCheck(t *testing.T) {
	t.Parallel()

	tracker := monitoring.NewJobTracker()
	check := checks.Maintenance(tracker, 0)
	require.Equal(t, monitoring.StatusUp, check.Run(context.Background()).Status)

	tracker.Record("stats_refresh", "success", "", time.Millisecond)
	require.Equal(t, monitoring.StatusUp, check.Run(context.Background()).Status)

	tracker.Record("stats_refresh", "failure", "store offline", time.Millisecond)
	result := check.Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "store offline")

	jobs := tracker.Snapshot()
	require.Len(t, jobs, 1)
	require.Equal(t, uint64(2), jobs[0].TotalRuns)
	require.Equal(t, uint64(1), jobs[0].ConsecutiveFailures)
}
