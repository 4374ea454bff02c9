package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mysterymsg/mystery/internal/auth"
	"github.com/mysterymsg/mystery/internal/models"
	"github.com/mysterymsg/mystery/internal/store"
	"github.com/mysterymsg/mystery/pkg/logger"
	"github.com/mysterymsg/mystery/pkg/metrics"
	appvalidator "github.com/mysterymsg/mystery/pkg/validator"
)

// SubmitMessageInput carries an anonymous message addressed to a username.
type SubmitMessageInput struct {
	Username string `json:"username"`
	Content  string `json:"content" validate:"required,min=10,max=300"`
}

// InboxOption customises the InboxService.
type InboxOption func(*InboxService)

// WithInboxClock injects a custom time source for message timestamps.
func WithInboxClock(clock func() time.Time) InboxOption {
	return func(s *InboxService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// InboxService enforces the accepting-messages gate and manages inbox contents.
type InboxService struct {
	store store.Store
	now   func() time.Time
	log   *zap.Logger
}

// NewInboxService constructs an InboxService.
func NewInboxService(st store.Store, opts ...InboxOption) (*InboxService, error) {
	if st == nil {
		return nil, errors.New("inbox service: store is required")
	}
	svc := &InboxService{
		store: st,
		now:   time.Now,
		log:   logger.WithModule("inbox"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SetAcceptingMessages flips the caller's gate and returns the refreshed identity so a new
// session token can be issued.
func (s *InboxService) SetAcceptingMessages(ctx context.Context, identity auth.Identity, accepting bool) (auth.Identity, error) {
	if err := identity.Validate(); err != nil {
		return auth.Identity{}, ErrUnauthenticated
	}

	account, err := s.store.SetAcceptingMessages(ensureContext(ctx), identity.AccountID, accepting)
	if errors.Is(err, store.ErrNotFound) {
		return auth.Identity{}, ErrAccountNotFound
	}
	if err != nil {
		return auth.Identity{}, storeError("inbox service: set accepting messages", err)
	}

	auditLogger(s.log, ctx).Info("accepting messages updated",
		zap.String("account_id", account.ID),
		zap.Bool("accepting", account.IsAcceptingMessages),
	)
	return identityOf(account), nil
}

// GetAcceptingMessages reads the caller's current gate from the store.
func (s *InboxService) GetAcceptingMessages(ctx context.Context, identity auth.Identity) (bool, error) {
	if err := identity.Validate(); err != nil {
		return false, ErrUnauthenticated
	}

	account, err := s.store.FindByID(ensureContext(ctx), identity.AccountID)
	if errors.Is(err, store.ErrNotFound) {
		return false, ErrAccountNotFound
	}
	if err != nil {
		return false, storeError("inbox service: load account", err)
	}
	return account.IsAcceptingMessages, nil
}

// SubmitMessage appends an anonymous message to the named account's inbox.
func (s *InboxService) SubmitMessage(ctx context.Context, input SubmitMessageInput) (*models.Message, error) {
	ctx = ensureContext(ctx)

	username := strings.TrimSpace(input.Username)
	account, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		metrics.MessagesSubmitted.WithLabelValues("not_found").Inc()
		return nil, ErrAccountNotFound
	}
	if err != nil {
		metrics.MessagesSubmitted.WithLabelValues("error").Inc()
		return nil, storeError("inbox service: load recipient", err)
	}

	if !account.IsAcceptingMessages {
		metrics.MessagesSubmitted.WithLabelValues("not_accepting").Inc()
		return nil, ErrNotAccepting
	}

	input.Username = username
	input.Content = strings.TrimSpace(input.Content)
	if err := appvalidator.ValidateStruct(input); err != nil {
		metrics.MessagesSubmitted.WithLabelValues("invalid").Inc()
		return nil, validationError(err)
	}

	msg := &models.Message{
		Content:   input.Content,
		CreatedAt: s.now(),
	}
	if err := s.store.AppendMessage(ctx, account.ID, msg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.MessagesSubmitted.WithLabelValues("not_found").Inc()
			return nil, ErrAccountNotFound
		}
		metrics.MessagesSubmitted.WithLabelValues("error").Inc()
		return nil, storeError("inbox service: append message", err)
	}

	metrics.MessagesSubmitted.WithLabelValues("accepted").Inc()
	s.log.Debug("message delivered", zap.String("account_id", account.ID), zap.String("message_id", msg.ID))
	return msg, nil
}

// ListMessages returns the caller's inbox newest first. An empty inbox is an empty slice.
func (s *InboxService) ListMessages(ctx context.Context, identity auth.Identity) ([]models.Message, error) {
	if err := identity.Validate(); err != nil {
		return nil, ErrUnauthenticated
	}

	messages, err := s.store.ListMessages(ensureContext(ctx), identity.AccountID)
	if err != nil {
		return nil, storeError("inbox service: list messages", err)
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}

// DeleteMessage removes one of the caller's messages.
func (s *InboxService) DeleteMessage(ctx context.Context, identity auth.Identity, messageID string) error {
	if err := identity.Validate(); err != nil {
		return ErrUnauthenticated
	}

	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return ErrMessageNotFound
	}

	err := s.store.DeleteMessage(ensureContext(ctx), identity.AccountID, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrMessageNotFound
	}
	if err != nil {
		return storeError("inbox service: delete message", err)
	}

	metrics.MessagesDeleted.Inc()
	auditLogger(s.log, ctx).Info("message deleted", zap.String("account_id", identity.AccountID), zap.String("message_id", messageID))
	return nil
}
