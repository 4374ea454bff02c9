package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	testutil "github.com/mysterymsg/mystery/internal/database/testutil"
	"github.com/mysterymsg/mystery/internal/models"
)

func newTestStore(t *testing.T) (*DatabaseStore, *time.Time) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	store := NewDatabaseStore(db).WithClock(func() time.Time { return now })
	return store, &now
}

func TestDatabaseStoreIncrementWithinWindow(t *testing.T) {
	store, now := newTestStore(t)
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "203.0.113.9:/api/sign-in", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)

	*now = now.Add(20 * time.Second)
	count, ttl, err = store.IncrementWithTTL(ctx, "203.0.113.9:/api/sign-in", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Equal(t, 40*time.Second, ttl)
}

func TestDatabaseStoreWindowResets(t *testing.T) {
	store, now := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := store.IncrementWithTTL(ctx, "key", time.Minute)
		require.NoError(t, err)
	}

	*now = now.Add(time.Minute)
	count, ttl, err := store.IncrementWithTTL(ctx, "key", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)
}

func TestDatabaseStoreConcurrentIncrements(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.IncrementWithTTL(ctx, "shared", time.Minute)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := store.IncrementWithTTL(ctx, "shared", time.Minute); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	count, _, err := store.IncrementWithTTL(ctx, "shared", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, workers+2, count)
}

func TestDatabaseStorePurgeExpired(t *testing.T) {
	store, now := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := store.IncrementWithTTL(ctx, fmt.Sprintf("short-%d", i), time.Second)
		require.NoError(t, err)
	}
	_, _, err := store.IncrementWithTTL(ctx, "long", time.Hour)
	require.NoError(t, err)

	*now = now.Add(time.Minute)
	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, purged)

	var remaining []models.RateCounter
	require.NoError(t, store.db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, "long", remaining[0].Key)
}

func TestNilDatabaseStore(t *testing.T) {
	require.Nil(t, NewDatabaseStore(nil))

	var store *DatabaseStore
	_, _, err := store.IncrementWithTTL(context.Background(), "key", time.Minute)
	require.Error(t, err)
	_, err = store.PurgeExpired(context.Background())
	require.Error(t, err)
}
