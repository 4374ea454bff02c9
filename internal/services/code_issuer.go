package services

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/mysterymsg/mystery/pkg/crypto"
)

const (
	// VerificationCodeDigits is the length of issued verification codes.
	VerificationCodeDigits = 6
	// DefaultVerificationCodeTTL is how long an issued code stays valid.
	DefaultVerificationCodeTTL = time.Hour
)

// CodeIssuer produces numeric one-time verification codes and their expiry.
type CodeIssuer struct {
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

// CodeIssuerOption customises a CodeIssuer.
type CodeIssuerOption func(*CodeIssuer)

// WithCodeTTL overrides the code lifetime.
func WithCodeTTL(ttl time.Duration) CodeIssuerOption {
	return func(i *CodeIssuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithCodeClock injects a custom time source.
func WithCodeClock(clock func() time.Time) CodeIssuerOption {
	return func(i *CodeIssuer) {
		if clock != nil {
			i.now = clock
		}
	}
}

// WithCodeRandom replaces the random source.
func WithCodeRandom(r io.Reader) CodeIssuerOption {
	return func(i *CodeIssuer) {
		if r != nil {
			i.random = r
		}
	}
}

// NewCodeIssuer constructs a CodeIssuer backed by crypto/rand.
func NewCodeIssuer(opts ...CodeIssuerOption) *CodeIssuer {
	issuer := &CodeIssuer{
		ttl:    DefaultVerificationCodeTTL,
		now:    time.Now,
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer
}

// IssueCode returns a fresh code and the instant it stops being valid.
func (i *CodeIssuer) IssueCode() (string, time.Time, error) {
	code, err := crypto.GenerateNumericCode(VerificationCodeDigits, i.random)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("code issuer: %w", err)
	}
	return code, i.now().Add(i.ttl), nil
}

// TTL reports the configured code lifetime.
func (i *CodeIssuer) TTL() time.Duration {
	return i.ttl
}
