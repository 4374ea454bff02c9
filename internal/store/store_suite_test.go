package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mysterymsg/mystery/internal/models"
)

func pendingRegistration(username, email string) Registration {
	return Registration{
		Username:     username,
		Email:        email,
		PasswordHash: "hash-" + username,
		Code:         "123456",
		CodeExpiry:   time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond),
	}
}

// runStoreSuite exercises the behaviour every backend must share.
func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	t.Run("CreateAndFind", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		created, err := s.CreatePending(ctx, pendingRegistration("alice", "alice@x.com"))
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		require.False(t, created.IsVerified)
		require.True(t, created.IsAcceptingMessages)

		byName, err := s.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, created.ID, byName.ID)
		require.Equal(t, "123456", byName.VerifyCode)

		byEmail, err := s.FindByEmail(ctx, "alice@x.com")
		require.NoError(t, err)
		require.Equal(t, created.ID, byEmail.ID)

		byIdentifier, err := s.FindByIdentifier(ctx, "ALICE@X.COM")
		require.NoError(t, err)
		require.Equal(t, created.ID, byIdentifier.ID)

		byID, err := s.FindByID(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, "alice", byID.Username)

		_, err = s.FindByUsername(ctx, "bob")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UniqueConstraints", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, err := s.CreatePending(ctx, pendingRegistration("alice", "alice@x.com"))
		require.NoError(t, err)

		_, err = s.CreatePending(ctx, pendingRegistration("alice", "other@x.com"))
		require.ErrorIs(t, err, ErrConflict)

		_, err = s.CreatePending(ctx, pendingRegistration("other", "alice@x.com"))
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("OverwritePendingKeepsID", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		created, err := s.CreatePending(ctx, pendingRegistration("alice", "alice@x.com"))
		require.NoError(t, err)

		reg := pendingRegistration("alice2", "alice@x.com")
		reg.Code = "654321"
		updated, err := s.OverwritePending(ctx, MatchEmail, reg)
		require.NoError(t, err)
		require.Equal(t, created.ID, updated.ID)
		require.Equal(t, "alice2", updated.Username)
		require.Equal(t, "654321", updated.VerifyCode)

		reg = pendingRegistration("alice2", "new@x.com")
		reclaimed, err := s.OverwritePending(ctx, MatchUsername, reg)
		require.NoError(t, err)
		require.Equal(t, created.ID, reclaimed.ID)
		require.Equal(t, "new@x.com", reclaimed.Email)

		_, err = s.OverwritePending(ctx, MatchEmail, pendingRegistration("x", "missing@x.com"))
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("OverwriteSkipsVerified", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		created, err := s.CreatePending(ctx, pendingRegistration("alice", "alice@x.com"))
		require.NoError(t, err)
		require.NoError(t, s.MarkVerified(ctx, created.ID, "123456"))

		_, err = s.OverwritePending(ctx, MatchEmail, pendingRegistration("alice", "alice@x.com"))
		require.ErrorIs(t, err, ErrNotFound)

		require.ErrorIs(t, s.ReissueCode(ctx, created.ID, "111111", time.Now().Add(time.Hour)), ErrNotFound)
	})

	t.Run("MarkVerifiedComparesCode", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		created, err := s.CreatePending(ctx, pendingRegistration("alice", "alice@x.com"))
		require.NoError(t, err)

		require.NoError(t, s.ReissueCode(ctx, created.ID, "999999", time.Now().Add(time.Hour)))
		require.ErrorIs(t, s.MarkVerified(ctx, created.ID, "123456"), ErrNotFound)
		require.NoError(t, s.MarkVerified(ctx, created.ID, "999999"))

		account, err := s.FindByID(ctx, created.ID)
		require.NoError(t, err)
		require.True(t, account.IsVerified)
	})

	t.Run("AcceptingMessagesToggle", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		created, err := s.CreatePending(ctx, pendingRegistration("alice", "alice@x.com"))
		require.NoError(t, err)

		updated, err := s.SetAcceptingMessages(ctx, created.ID, false)
		require.NoError(t, err)
		require.False(t, updated.IsAcceptingMessages)

		updated, err = s.SetAcceptingMessages(ctx, created.ID, true)
		require.NoError(t, err)
		require.True(t, updated.IsAcceptingMessages)

		_, err = s.SetAcceptingMessages(ctx, "missing", true)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("InboxLifecycle", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		alice, err := s.CreatePending(ctx, pendingRegistration("alice", "alice@x.com"))
		require.NoError(t, err)
		bob, err := s.CreatePending(ctx, pendingRegistration("bob", "bob@x.com"))
		require.NoError(t, err)

		empty, err := s.ListMessages(ctx, alice.ID)
		require.NoError(t, err)
		require.NotNil(t, empty)
		require.Empty(t, empty)

		base := time.Now().UTC().Truncate(time.Millisecond)
		older := &models.Message{Content: "first message", CreatedAt: base.Add(-time.Minute)}
		newer := &models.Message{Content: "second message", CreatedAt: base}
		require.NoError(t, s.AppendMessage(ctx, alice.ID, older))
		require.NoError(t, s.AppendMessage(ctx, alice.ID, newer))
		require.NotEmpty(t, older.ID)

		require.ErrorIs(t, s.AppendMessage(ctx, "missing", &models.Message{Content: "lost message"}), ErrNotFound)

		messages, err := s.ListMessages(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		require.Equal(t, newer.ID, messages[0].ID)
		require.Equal(t, older.ID, messages[1].ID)

		require.ErrorIs(t, s.DeleteMessage(ctx, bob.ID, older.ID), ErrNotFound)
		require.NoError(t, s.DeleteMessage(ctx, alice.ID, older.ID))
		require.ErrorIs(t, s.DeleteMessage(ctx, alice.ID, older.ID), ErrNotFound)

		messages, err = s.ListMessages(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		require.Equal(t, "second message", messages[0].Content)

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		require.Equal(t, Stats{VerifiedAccounts: 0, PendingAccounts: 2, Messages: 1}, stats)
	})

	t.Run("ConcurrentAppendsArePreserved", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		alice, err := s.CreatePending(ctx, pendingRegistration("alice", "alice@x.com"))
		require.NoError(t, err)

		const writers = 8
		var wg sync.WaitGroup
		errs := make([]error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.AppendMessage(ctx, alice.ID, &models.Message{Content: "concurrent hello"})
			}(i)
		}
		wg.Wait()
		require.NoError(t, errors.Join(errs...))

		messages, err := s.ListMessages(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, messages, writers)
	})

	t.Run("Ping", func(t *testing.T) {
		require.NoError(t, open(t).Ping(context.Background()))
	})
}
