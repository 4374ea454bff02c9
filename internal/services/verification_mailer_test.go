package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mysterymsg/mystery/pkg/mail"
)

func TestSendVerificationRendersMessage(t *testing.T) {
	var captured mail.Message
	m := NewVerificationMailer(mail.MailerFunc(func(_ context.Context, msg mail.Message) error {
		captured = msg
		return nil
	}), "https://mystery.example/verify/")

	expiry := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	require.NoError(t, m.SendVerification(context.Background(), "alice@x.com", "alice", "042917", expiry))

	require.Equal(t, []string{"alice@x.com"}, captured.To)
	require.Equal(t, "Mystery Message | Verify your email", captured.Subject)
	require.Contains(t, captured.Body, "Hello alice")
	require.Contains(t, captured.Body, "042917")
	require.Contains(t, captured.Body, "https://mystery.example/verify/alice")
}

func TestSendVerificationTreatsDisabledSMTPAsDelivered(t *testing.T) {
	m := NewVerificationMailer(mail.MailerFunc(func(context.Context, mail.Message) error {
		return mail.ErrSMTPDisabled
	}), "")

	require.NoError(t, m.SendVerification(context.Background(), "alice@x.com", "alice", "123456", time.Now()))
}

func TestSendVerificationPropagatesFailures(t *testing.T) {
	boom := errors.New("connection refused")
	m := NewVerificationMailer(mail.MailerFunc(func(context.Context, mail.Message) error {
		return boom
	}), "")

	err := m.SendVerification(context.Background(), "alice@x.com", "alice", "123456", time.Now())
	require.ErrorIs(t, err, boom)

	var missing *VerificationMailer
	require.Error(t, missing.SendVerification(context.Background(), "alice@x.com", "alice", "123456", time.Now()))
}
