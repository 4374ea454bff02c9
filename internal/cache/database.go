package cache

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mysterymsg/mystery/internal/models"
)

var errNotInitialised = errors.New("cache: database store not initialised")

// DatabaseStore implements CounterStore using the primary SQL database.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseStore constructs a database-backed CounterStore.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db, now: time.Now}
}

// WithClock overrides the clock used for window expiry (primarily for testing).
func (s *DatabaseStore) WithClock(clock func() time.Time) *DatabaseStore {
	if s != nil && clock != nil {
		s.now = clock
	}
	return s
}

// IncrementWithTTL atomically increments the counter for key. A counter whose window has
// elapsed restarts at one with a fresh window.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if s == nil {
		return 0, 0, errNotInitialised
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if window <= 0 {
		window = time.Minute
	}

	now := s.now()
	var (
		count  int64
		expiry time.Time
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.RateCounter
		// Acquire row-level lock
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&entry, "key = ?", key).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			count, expiry = 1, now.Add(window)
			return tx.Create(&models.RateCounter{
				Key:       key,
				Count:     count,
				ExpiresAt: expiry,
			}).Error
		}
		if err != nil {
			return err
		}

		if !entry.ExpiresAt.After(now) {
			entry.Count = 0
			entry.ExpiresAt = now.Add(window)
		}
		entry.Count++
		count, expiry = entry.Count, entry.ExpiresAt

		return tx.Save(&entry).Error
	})
	if err != nil {
		return 0, 0, err
	}

	return count, expiry.Sub(now), nil
}

// PurgeExpired removes counters whose window has elapsed.
func (s *DatabaseStore) PurgeExpired(ctx context.Context) (int64, error) {
	if s == nil {
		return 0, errNotInitialised
	}
	if ctx == nil {
		ctx = context.Background()
	}

	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&models.RateCounter{})
	return res.RowsAffected, res.Error
}
