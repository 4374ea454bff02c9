package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mysterymsg/mystery/internal/auth"
	"github.com/mysterymsg/mystery/internal/models"
	"github.com/mysterymsg/mystery/internal/store"
	"github.com/mysterymsg/mystery/pkg/crypto"
	apperrors "github.com/mysterymsg/mystery/pkg/errors"
	"github.com/mysterymsg/mystery/pkg/logger"
	"github.com/mysterymsg/mystery/pkg/metrics"
	appvalidator "github.com/mysterymsg/mystery/pkg/validator"
)

// RegisterInput carries the sign-up form.
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=2,max=20,username"`
	Email    string `json:"email" validate:"required,max=255,email"`
	Password string `json:"password" validate:"required,min=6,max=50,password_policy"`
}

type verifyInput struct {
	Username string `json:"username" validate:"required"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
}

type usernameInput struct {
	Username string `json:"username" validate:"required,min=2,max=20,username"`
}

// AccountOption customises the AccountService.
type AccountOption func(*AccountService)

// WithAccountClock injects a custom time source used for expiry checks.
func WithAccountClock(clock func() time.Time) AccountOption {
	return func(s *AccountService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithAccountLogger overrides the service logger.
func WithAccountLogger(log *zap.Logger) AccountOption {
	return func(s *AccountService) {
		if log != nil {
			s.log = log
		}
	}
}

// AccountService drives the sign-up, verification and sign-in lifecycle.
type AccountService struct {
	store  store.Store
	codes  *CodeIssuer
	mailer *VerificationMailer
	now    func() time.Time
	log    *zap.Logger
}

// NewAccountService constructs an AccountService.
func NewAccountService(st store.Store, codes *CodeIssuer, mailer *VerificationMailer, opts ...AccountOption) (*AccountService, error) {
	if st == nil {
		return nil, errors.New("account service: store is required")
	}
	if codes == nil {
		return nil, errors.New("account service: code issuer is required")
	}
	if mailer == nil {
		return nil, errors.New("account service: verification mailer is required")
	}

	svc := &AccountService{
		store:  st,
		codes:  codes,
		mailer: mailer,
		now:    time.Now,
		log:    logger.WithModule("accounts"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Register creates a pending account, or overwrites the credentials of an unverified one,
// and emails a fresh verification code. When delivery fails the stored account is returned
// together with ErrDeliveryFailed; the account is kept so the user can request another code.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*models.Account, error) {
	ctx = ensureContext(ctx)

	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := appvalidator.ValidateStruct(input); err != nil {
		metrics.Registrations.WithLabelValues("invalid").Inc()
		return nil, validationError(err)
	}

	byUsername, err := s.lookup(ctx, s.store.FindByUsername, input.Username)
	if err != nil {
		metrics.Registrations.WithLabelValues("error").Inc()
		return nil, err
	}
	if byUsername != nil && byUsername.IsVerified {
		metrics.Registrations.WithLabelValues("conflict").Inc()
		return nil, ErrUsernameTaken
	}

	byEmail, err := s.lookup(ctx, s.store.FindByEmail, input.Email)
	if err != nil {
		metrics.Registrations.WithLabelValues("error").Inc()
		return nil, err
	}
	if byEmail != nil && byEmail.IsVerified {
		metrics.Registrations.WithLabelValues("conflict").Inc()
		return nil, ErrEmailTaken
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		metrics.Registrations.WithLabelValues("error").Inc()
		return nil, apperrors.ErrInternalServer.WithInternal(fmt.Errorf("account service: hash password: %w", err))
	}

	code, expiry, err := s.codes.IssueCode()
	if err != nil {
		metrics.Registrations.WithLabelValues("error").Inc()
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	account, result, err := s.persistPending(ctx, store.Registration{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		Code:         code,
		CodeExpiry:   expiry,
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.StatusCode < 500 {
			metrics.Registrations.WithLabelValues("conflict").Inc()
		} else {
			metrics.Registrations.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	if err := s.mailer.SendVerification(ctx, account.Email, account.Username, code, expiry); err != nil {
		metrics.Registrations.WithLabelValues("delivery_failed").Inc()
		auditLogger(s.log, ctx).Warn("verification email delivery failed",
			zap.String("account_id", account.ID),
			zap.String("username", account.Username),
			zap.Error(err),
		)
		return account, ErrDeliveryFailed.WithInternal(err)
	}

	metrics.Registrations.WithLabelValues(result).Inc()
	auditLogger(s.log, ctx).Info("account registered",
		zap.String("account_id", account.ID),
		zap.String("username", account.Username),
		zap.String("result", result),
	)
	return account, nil
}

// persistPending writes the registration with conditional updates guarded by the unique
// indexes. A lost insert race is retried once through the overwrite paths so concurrent
// sign-ups for the same unverified email converge on a single account.
func (s *AccountService) persistPending(ctx context.Context, reg store.Registration) (*models.Account, string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		account, err := s.store.OverwritePending(ctx, store.MatchEmail, reg)
		switch {
		case err == nil:
			return account, "reclaimed", nil
		case errors.Is(err, store.ErrConflict):
			return nil, "", ErrUsernameTaken
		case !errors.Is(err, store.ErrNotFound):
			return nil, "", storeError("account service: overwrite by email", err)
		}

		account, err = s.store.OverwritePending(ctx, store.MatchUsername, reg)
		switch {
		case err == nil:
			return account, "reclaimed", nil
		case errors.Is(err, store.ErrConflict):
			return nil, "", ErrEmailTaken
		case !errors.Is(err, store.ErrNotFound):
			return nil, "", storeError("account service: reclaim username", err)
		}

		account, err = s.store.CreatePending(ctx, reg)
		switch {
		case err == nil:
			return account, "created", nil
		case !errors.Is(err, store.ErrConflict):
			return nil, "", storeError("account service: create account", err)
		}
	}

	return nil, "", s.conflictFor(ctx, reg)
}

func (s *AccountService) conflictFor(ctx context.Context, reg store.Registration) error {
	if existing, err := s.store.FindByUsername(ctx, reg.Username); err == nil && existing.Email != reg.Email {
		return ErrUsernameTaken
	}
	return ErrEmailTaken
}

// ResendVerificationCode issues and emails a new code for an unverified account found by
// username or email.
func (s *AccountService) ResendVerificationCode(ctx context.Context, identifier string) (*models.Account, error) {
	ctx = ensureContext(ctx)

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, apperrors.NewValidation("identifier is required")
	}

	account, err := s.store.FindByIdentifier(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, storeError("account service: load account", err)
	}
	if account.IsVerified {
		return nil, ErrAlreadyVerified
	}

	code, expiry, err := s.codes.IssueCode()
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	if err := s.store.ReissueCode(ctx, account.ID, code, expiry); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAlreadyVerified
		}
		return nil, storeError("account service: reissue code", err)
	}
	account.VerifyCode = code
	account.VerifyCodeExpiry = expiry

	if err := s.mailer.SendVerification(ctx, account.Email, account.Username, code, expiry); err != nil {
		s.log.Warn("verification email delivery failed",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
		return account, ErrDeliveryFailed.WithInternal(err)
	}

	s.log.Info("verification code reissued", zap.String("account_id", account.ID))
	return account, nil
}

// VerifyAccount checks the code against the latest issued one and marks the account verified.
// Repeating a correct call succeeds until the code expires.
func (s *AccountService) VerifyAccount(ctx context.Context, username, code string) (*models.Account, error) {
	ctx = ensureContext(ctx)

	input := verifyInput{Username: strings.TrimSpace(username), Code: strings.TrimSpace(code)}
	if err := appvalidator.ValidateStruct(input); err != nil {
		metrics.Verifications.WithLabelValues("invalid").Inc()
		return nil, validationError(err)
	}

	account, err := s.store.FindByUsername(ctx, input.Username)
	if errors.Is(err, store.ErrNotFound) {
		metrics.Verifications.WithLabelValues("not_found").Inc()
		return nil, ErrAccountNotFound
	}
	if err != nil {
		metrics.Verifications.WithLabelValues("error").Inc()
		return nil, storeError("account service: load account", err)
	}

	if s.now().After(account.VerifyCodeExpiry) {
		metrics.Verifications.WithLabelValues("expired").Inc()
		return nil, ErrCodeExpired
	}

	if subtle.ConstantTimeCompare([]byte(account.VerifyCode), []byte(input.Code)) != 1 {
		metrics.Verifications.WithLabelValues("mismatch").Inc()
		return nil, ErrCodeMismatch
	}

	if err := s.store.MarkVerified(ctx, account.ID, input.Code); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// A resend replaced the code between the read and the update.
			metrics.Verifications.WithLabelValues("mismatch").Inc()
			return nil, ErrCodeMismatch
		}
		metrics.Verifications.WithLabelValues("error").Inc()
		return nil, storeError("account service: mark verified", err)
	}
	account.IsVerified = true

	metrics.Verifications.WithLabelValues("success").Inc()
	auditLogger(s.log, ctx).Info("account verified", zap.String("account_id", account.ID), zap.String("username", account.Username))
	return account, nil
}

// Authenticate resolves identifier as a username or email and checks the password.
func (s *AccountService) Authenticate(ctx context.Context, identifier, password string) (auth.Identity, error) {
	ctx = ensureContext(ctx)

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		metrics.AuthAttempts.WithLabelValues("invalid").Inc()
		return auth.Identity{}, apperrors.NewValidation("identifier and password are required")
	}

	account, err := s.store.FindByIdentifier(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		metrics.AuthAttempts.WithLabelValues("not_found").Inc()
		return auth.Identity{}, ErrAccountNotFound.WithMessage("No user found with this email or username")
	}
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("error").Inc()
		return auth.Identity{}, storeError("account service: load account", err)
	}

	if !account.IsVerified {
		metrics.AuthAttempts.WithLabelValues("unverified").Inc()
		return auth.Identity{}, ErrUnverified
	}

	if !crypto.VerifyPassword(account.PasswordHash, password) {
		metrics.AuthAttempts.WithLabelValues("invalid").Inc()
		auditLogger(s.log, ctx).Warn("sign-in rejected", zap.String("account_id", account.ID))
		return auth.Identity{}, ErrInvalidCredentials
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return identityOf(account), nil
}

// CheckUsernameAvailable reports whether username is free for registration.
func (s *AccountService) CheckUsernameAvailable(ctx context.Context, username string) error {
	ctx = ensureContext(ctx)

	input := usernameInput{Username: strings.TrimSpace(username)}
	if err := appvalidator.ValidateStruct(input); err != nil {
		return validationError(err)
	}

	existing, err := s.lookup(ctx, s.store.FindByUsername, input.Username)
	if err != nil {
		return err
	}
	if existing != nil && existing.IsVerified {
		return ErrUsernameTaken
	}
	return nil
}

// GetAccount loads an account profile by id.
func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.store.FindByID(ensureContext(ctx), accountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, storeError("account service: load account", err)
	}
	return account, nil
}

func (s *AccountService) lookup(ctx context.Context, find func(context.Context, string) (*models.Account, error), key string) (*models.Account, error) {
	account, err := find(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("account service: load account", err)
	}
	return account, nil
}

func identityOf(account *models.Account) auth.Identity {
	return auth.Identity{
		AccountID:           account.ID,
		Username:            account.Username,
		IsVerified:          account.IsVerified,
		IsAcceptingMessages: account.IsAcceptingMessages,
	}
}
