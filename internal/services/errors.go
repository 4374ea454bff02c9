package services

import (
	"context"
	"fmt"
	"net/http"

	apperrors "github.com/mysterymsg/mystery/pkg/errors"
	appvalidator "github.com/mysterymsg/mystery/pkg/validator"
)

var (
	// ErrUsernameTaken indicates a verified account already owns the username.
	ErrUsernameTaken = apperrors.New("USERNAME_TAKEN", "Username is already taken", http.StatusConflict)
	// ErrEmailTaken indicates a verified account already owns the email address.
	ErrEmailTaken = apperrors.New("EMAIL_TAKEN", "Email already exists. Please use a different email.", http.StatusConflict)
	// ErrAlreadyVerified is returned when a code is requested for a verified account.
	ErrAlreadyVerified = apperrors.New("ALREADY_VERIFIED", "Account is already verified", http.StatusConflict)
	// ErrAccountNotFound indicates no account matches the lookup.
	ErrAccountNotFound = apperrors.New("ACCOUNT_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrMessageNotFound covers absent messages and messages owned by another account.
	ErrMessageNotFound = apperrors.New("MESSAGE_NOT_FOUND", "Message not found or already deleted", http.StatusNotFound)
	// ErrCodeExpired indicates the stored verification code is past its expiry.
	ErrCodeExpired = apperrors.New("CODE_EXPIRED", "Verification code has expired, please request a new code", http.StatusBadRequest)
	// ErrCodeMismatch indicates the submitted code differs from the most recently issued one.
	ErrCodeMismatch = apperrors.New("CODE_MISMATCH", "Incorrect verification code", http.StatusBadRequest)
	// ErrUnverified blocks sign-in until the email address is verified.
	ErrUnverified = apperrors.New("UNVERIFIED", "Please verify your account before logging in", http.StatusForbidden)
	// ErrInvalidCredentials indicates a password mismatch.
	ErrInvalidCredentials = apperrors.New("INVALID_CREDENTIALS", "Incorrect password", http.StatusUnauthorized)
	// ErrNotAccepting indicates the recipient has switched off incoming messages.
	ErrNotAccepting = apperrors.New("NOT_ACCEPTING", "User is not accepting messages", http.StatusForbidden)
	// ErrDeliveryFailed indicates the verification email could not be sent.
	ErrDeliveryFailed = apperrors.New("DELIVERY_FAILED", "Failed to send verification email. Please try again later.", http.StatusBadGateway)
	// ErrUnauthenticated is returned when an identity-scoped call has no valid identity.
	ErrUnauthenticated = apperrors.ErrUnauthorized
)

func validationError(err error) *apperrors.AppError {
	return apperrors.NewValidation(appvalidator.Describe(err))
}

func storeError(op string, err error) *apperrors.AppError {
	return apperrors.ErrInternalServer.WithInternal(fmt.Errorf("%s: %w", op, err))
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
