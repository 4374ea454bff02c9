package app

import (
	"strings"
	"time"

	"github.com/mysterymsg/mystery/pkg/mail"
)

const defaultCodeTTL = time.Hour

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// VerificationBaseURL returns the verify page URL without a trailing slash.
func (c EmailConfig) VerificationBaseURL() string {
	return strings.TrimRight(strings.TrimSpace(c.VerificationURL), "/")
}

// CodeTTLOrDefault returns how long an issued verification code stays valid.
func (c VerificationConfig) CodeTTLOrDefault() time.Duration {
	if c.CodeTTL <= 0 {
		return defaultCodeTTL
	}
	return c.CodeTTL
}
