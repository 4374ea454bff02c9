// Package store persists accounts and their inboxes. Every mutation is a single atomic
// statement (or single-document update) so concurrent requests never need in-process locks.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/mysterymsg/mystery/internal/models"
)

var (
	// ErrNotFound is returned when no record matches the lookup or conditional update.
	ErrNotFound = errors.New("store: record not found")
	// ErrConflict is returned when a write would violate a username or email uniqueness constraint.
	ErrConflict = errors.New("store: unique constraint violation")
)

// Match selects the unique field a pending account is matched on when it is overwritten.
type Match string

const (
	// MatchEmail overwrites the unverified account holding the registration email.
	MatchEmail Match = "email"
	// MatchUsername reclaims the unverified account holding the registration username.
	MatchUsername Match = "username"
)

// Registration carries the credential and code written by a sign-up.
type Registration struct {
	Username     string
	Email        string
	PasswordHash string
	Code         string
	CodeExpiry   time.Time
}

// Stats summarises stored state for the maintenance gauges.
type Stats struct {
	VerifiedAccounts int64
	PendingAccounts  int64
	Messages         int64
}

// Store is the credential and inbox persistence contract shared by the SQL and MongoDB backends.
// Returned accounts never include their inbox.
type Store interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	// FindByIdentifier matches either the username or the email address.
	FindByIdentifier(ctx context.Context, identifier string) (*models.Account, error)

	// CreatePending inserts a new unverified account that accepts messages.
	CreatePending(ctx context.Context, reg Registration) (*models.Account, error)
	// OverwritePending replaces the credential and code of the unverified account matched by
	// the given field. ErrNotFound means no unverified account matched.
	OverwritePending(ctx context.Context, match Match, reg Registration) (*models.Account, error)
	// ReissueCode stores a fresh code on an unverified account.
	ReissueCode(ctx context.Context, accountID, code string, expiry time.Time) error
	// MarkVerified flags the account verified only while code is still the stored one.
	MarkVerified(ctx context.Context, accountID, code string) error

	SetAcceptingMessages(ctx context.Context, accountID string, accepting bool) (*models.Account, error)
	// AppendMessage atomically adds msg to the inbox, filling in its id and timestamp when unset.
	AppendMessage(ctx context.Context, accountID string, msg *models.Message) error
	// ListMessages returns the inbox newest first.
	ListMessages(ctx context.Context, accountID string) ([]models.Message, error)
	// DeleteMessage removes a message only when it belongs to the account.
	DeleteMessage(ctx context.Context, accountID, messageID string) error

	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
