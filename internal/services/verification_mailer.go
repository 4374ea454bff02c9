package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mysterymsg/mystery/pkg/logger"
	"github.com/mysterymsg/mystery/pkg/mail"
)

const verificationSubject = "Mystery Message | Verify your email"

// VerificationMailer delivers verification codes through a mail.Mailer.
type VerificationMailer struct {
	mailer  mail.Mailer
	baseURL string
	log     *zap.Logger
}

// NewVerificationMailer builds a VerificationMailer. baseURL, when set, is used to render a
// link of the form <baseURL>/<username> pointing at the verification page.
func NewVerificationMailer(mailer mail.Mailer, baseURL string) *VerificationMailer {
	return &VerificationMailer{
		mailer:  mailer,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		log:     logger.WithModule("verification-mailer"),
	}
}

// SendVerification emails the code to the account owner. A disabled SMTP transport is
// treated as delivered so local setups can still complete sign-up.
func (m *VerificationMailer) SendVerification(ctx context.Context, to, username, code string, expiresAt time.Time) error {
	if m == nil || m.mailer == nil {
		return errors.New("verification mailer: mailer is not configured")
	}

	msg := mail.Message{
		To:      []string{to},
		Subject: verificationSubject,
		Body:    m.body(username, code, expiresAt),
	}

	err := m.mailer.Send(ctx, msg)
	if errors.Is(err, mail.ErrSMTPDisabled) {
		m.log.Warn("smtp disabled; verification email not sent", zap.String("username", username))
		return nil
	}
	if err != nil {
		return fmt.Errorf("verification mailer: %w", err)
	}
	return nil
}

func (m *VerificationMailer) body(username, code string, expiresAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\r\n\r\n", username)
	b.WriteString("Thank you for registering. Please use the following verification code to complete your registration:\r\n\r\n")
	fmt.Fprintf(&b, "    %s\r\n\r\n", code)
	fmt.Fprintf(&b, "The code expires at %s.\r\n", expiresAt.UTC().Format(time.RFC1123))
	if m.baseURL != "" {
		fmt.Fprintf(&b, "\r\nYou can also verify here: %s/%s\r\n", m.baseURL, username)
	}
	b.WriteString("\r\nIf you did not request this code, please ignore this email.\r\n")
	return b.String()
}
