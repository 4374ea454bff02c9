package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mysterymsg/mystery/internal/app"
	"github.com/mysterymsg/mystery/internal/store"
)

func newTestConfig(t *testing.T) *app.Config {
	t.Helper()

	cfg, err := app.LoadConfig(t.TempDir())
	require.NoError(t, err)
	cfg.Database.Path = filepath.Join(t.TempDir(), "mystery.sqlite")

	_, err = app.ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	return cfg
}

func TestOpenStoreSQLite(t *testing.T) {
	cfg := newTestConfig(t)

	st, err := openStore(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	require.IsType(t, &store.SQLStore{}, st)
	require.NoError(t, st.Ping(context.Background()))

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats.VerifiedAccounts)
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Database.Driver = "oracle"

	_, err := openStore(context.Background(), cfg)
	require.Error(t, err)
}

func TestOpenStoreMongoRequiresURI(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Database.Driver = "mongodb"
	cfg.Database.MongoDB.URI = ""

	_, err := openStore(context.Background(), cfg)
	require.Error(t, err)
}

func TestBootstrapRuntimeServesRequests(t *testing.T) {
	cfg := newTestConfig(t)

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	jobs := stack.Jobs.Snapshot()
	require.Len(t, jobs, 1)
	require.Equal(t, "success", jobs[0].LastStatus)

	for _, path := range []string{"/health/ready", "/api/check-username-unique?username=alice", "/metrics"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		stack.Router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, "%s: %s", path, w.Body.String())
	}
}

func TestBootstrapRuntimeDatabaseRateStore(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Server.RateLimit.Store = "database"
	cfg.Server.RateLimit.Requests = 2

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	jobs := stack.Jobs.Snapshot()
	require.Len(t, jobs, 2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/check-username-unique?username=alice", nil)
		stack.Router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
