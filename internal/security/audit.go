package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mysterymsg/mystery/internal/app"
	iauth "github.com/mysterymsg/mystery/internal/auth"
)

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a simple status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// Pinger is satisfied by the account store.
type Pinger interface {
	Ping(ctx context.Context) error
}

const maxRecommendedTokenTTL = 7 * 24 * time.Hour

// AuditService evaluates deployment configuration before the server starts accepting traffic.
type AuditService struct {
	store Pinger
	jwt   *iauth.JWTService
	cfg   *app.Config
	now   func() time.Time
}

// NewAuditService constructs the audit service. All dependencies are optional; missing
// inputs degrade specific checks to warnings.
func NewAuditService(store Pinger, jwt *iauth.JWTService, cfg *app.Config) *AuditService {
	return &AuditService{
		store: store,
		jwt:   jwt,
		cfg:   cfg,
		now:   time.Now,
	}
}

// WithClock overrides the clock used in results (primarily for testing).
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes all audit checks and returns their outcome.
func (s *AuditService) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []Check{
		s.checkStore(ctx),
		s.checkJWTSecret(),
		s.checkTokenTTL(),
		s.checkVerificationDelivery(),
		s.checkCORS(),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}

	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: s.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

// Failed reports whether any check failed outright.
func (r Result) Failed() bool {
	return r.Summary[string(StatusFail)] > 0
}

func (s *AuditService) checkStore(ctx context.Context) Check {
	if s.store == nil {
		return Check{
			ID:          "store_reachable",
			Status:      StatusWarn,
			Message:     "Store unavailable, unable to confirm connectivity.",
			Remediation: "Ensure the database is configured before running the audit.",
		}
	}

	if err := s.store.Ping(ctx); err != nil {
		return Check{
			ID:          "store_reachable",
			Status:      StatusFail,
			Message:     fmt.Sprintf("Store ping failed: %v", err),
			Remediation: "Check database.driver and the connection settings.",
		}
	}

	return Check{
		ID:      "store_reachable",
		Status:  StatusPass,
		Message: "Store reachable.",
	}
}

func (s *AuditService) checkJWTSecret() Check {
	if s.jwt == nil {
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusWarn,
			Message:     "JWT service not initialised, unable to assess signing secret strength.",
			Remediation: "Initialise JWT service with a strong secret.",
		}
	}

	length := s.jwt.SecretLength()

	switch {
	case length == 0:
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusFail,
			Message:     "Missing JWT signing secret.",
			Remediation: "Provide a cryptographically secure signing secret (>= 32 bytes).",
		}
	case length < 32:
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: "Use a randomly generated secret of at least 32 bytes.",
		}
	case length < 48:
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider increasing to 48+ bytes.", length),
			Remediation: "Increase the length of MYSTERY_AUTH_JWT_SECRET to at least 48 bytes.",
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{
			ID:      "jwt_secret_strength",
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: map[string]any{"length": length},
		}
	}
}

func (s *AuditService) checkTokenTTL() Check {
	if s.jwt == nil {
		return Check{
			ID:          "access_token_ttl",
			Status:      StatusWarn,
			Message:     "JWT service not initialised, unable to evaluate token lifetime.",
			Remediation: "Initialise JWT service before running the security audit.",
		}
	}

	ttl := s.jwt.TTL()
	if ttl > maxRecommendedTokenTTL {
		return Check{
			ID:          "access_token_ttl",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Access token TTL (%s) exceeds recommended maximum (%s).", ttl, maxRecommendedTokenTTL),
			Remediation: "Reduce MYSTERY_AUTH_JWT_ACCESS_TOKEN_TTL to 7 days or lower.",
			Details:     map[string]any{"ttl": ttl.String()},
		}
	}

	return Check{
		ID:      "access_token_ttl",
		Status:  StatusPass,
		Message: fmt.Sprintf("Access token TTL is %s.", ttl),
		Details: map[string]any{"ttl": ttl.String()},
	}
}

func (s *AuditService) checkVerificationDelivery() Check {
	if s.cfg == nil {
		return Check{
			ID:          "verification_delivery",
			Status:      StatusWarn,
			Message:     "Configuration not loaded, unable to verify email delivery.",
			Remediation: "Load configuration before running the security audit.",
		}
	}

	smtp := s.cfg.Email.SMTP
	if !smtp.Enabled {
		return Check{
			ID:          "verification_delivery",
			Status:      StatusWarn,
			Message:     "SMTP is disabled; verification codes are not delivered.",
			Remediation: "Enable email.smtp with a reachable relay before accepting sign-ups.",
		}
	}
	if strings.TrimSpace(smtp.Host) == "" {
		return Check{
			ID:          "verification_delivery",
			Status:      StatusFail,
			Message:     "SMTP is enabled without a host.",
			Remediation: "Set MYSTERY_EMAIL_SMTP_HOST.",
		}
	}

	return Check{
		ID:      "verification_delivery",
		Status:  StatusPass,
		Message: "SMTP delivery configured.",
		Details: map[string]any{"host": smtp.Host, "port": smtp.Port},
	}
}

func (s *AuditService) checkCORS() Check {
	if s.cfg == nil {
		return Check{
			ID:          "cors_origins",
			Status:      StatusWarn,
			Message:     "Configuration not loaded, unable to evaluate CORS origins.",
			Remediation: "Load configuration before running the security audit.",
		}
	}

	origins := s.cfg.Server.AllowedOrigins()
	for _, origin := range origins {
		if origin == "*" {
			return Check{
				ID:          "cors_origins",
				Status:      StatusWarn,
				Message:     "CORS allows any origin.",
				Remediation: "List the frontend origins in server.cors.allowed_origins.",
			}
		}
	}

	return Check{
		ID:      "cors_origins",
		Status:  StatusPass,
		Message: fmt.Sprintf("CORS restricted to %d origin(s).", len(origins)),
		Details: map[string]any{"origins": origins},
	}
}
