package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mysterymsg/mystery/internal/api"
	"github.com/mysterymsg/mystery/internal/app"
	iauth "github.com/mysterymsg/mystery/internal/auth"
	sharedtestutil "github.com/mysterymsg/mystery/internal/database/testutil"
	"github.com/mysterymsg/mystery/internal/middleware"
	"github.com/mysterymsg/mystery/internal/monitoring"
	"github.com/mysterymsg/mystery/internal/monitoring/checks"
	"github.com/mysterymsg/mystery/internal/security"
	"github.com/mysterymsg/mystery/internal/services"
	"github.com/mysterymsg/mystery/internal/store"
	"github.com/mysterymsg/mystery/pkg/mail"
	"github.com/mysterymsg/mystery/pkg/response"
)

// DefaultPassword satisfies the password policy and is used by the sign-up helpers.
const DefaultPassword = "Abcdef1!"

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

// Outbox captures verification emails instead of delivering them.
type Outbox struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

// Mailer returns a mail.Mailer that records into the outbox.
func (o *Outbox) Mailer() mail.Mailer {
	return mail.MailerFunc(func(_ context.Context, msg mail.Message) error {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.err != nil {
			return o.err
		}
		o.sent = append(o.sent, msg)
		return nil
	})
}

// Fail makes subsequent deliveries return err. Pass nil to recover.
func (o *Outbox) Fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// Count returns the number of delivered emails.
func (o *Outbox) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

// LastCode extracts the verification code from the most recent email.
func (o *Outbox) LastCode(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent, "expected a verification email")
	match := codePattern.FindStringSubmatch(o.sent[len(o.sent)-1].Body)
	require.Len(t, match, 2)
	return match[1]
}

// Clock is an adjustable time source shared by the services under test.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	Store  store.Store
	Router *gin.Engine
	JWT    *iauth.JWTService
	Outbox *Outbox
	Clock  *Clock
	Jobs   *monitoring.JobTracker
	Config *app.Config
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())
	st, err := store.NewSQLStore(db)
	require.NoError(t, err)

	// Tokens are checked against the real clock, so the fake one starts at the present.
	clock := &Clock{now: time.Now().UTC().Truncate(time.Second)}
	outbox := &Outbox{}

	cfg := &app.Config{
		Server: app.ServerConfig{
			RateLimit: app.RateLimitConfig{Requests: 1000, Window: time.Minute},
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
		},
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	accounts, err := services.NewAccountService(st,
		services.NewCodeIssuer(services.WithCodeClock(clock.Now)),
		services.NewVerificationMailer(outbox.Mailer(), "https://mystery.example/verify"),
		services.WithAccountClock(clock.Now),
	)
	require.NoError(t, err)

	inbox, err := services.NewInboxService(st, services.WithInboxClock(clock.Now))
	require.NoError(t, err)

	jobs := monitoring.NewJobTracker()
	health := monitoring.NewHealthManager()
	health.RegisterReadiness(checks.Store(st, time.Second))
	health.RegisterReadiness(checks.Maintenance(jobs, 0))

	router, err := api.NewRouter(api.Dependencies{
		Config:    cfg,
		Accounts:  accounts,
		Inbox:     inbox,
		JWT:       jwtSvc,
		Health:    health,
		Jobs:      jobs,
		Audit:     security.NewAuditService(st, jwtSvc, cfg),
		RateStore: middleware.NewMemoryRateStore(),
	})
	require.NoError(t, err)

	return &Env{
		T:      t,
		Store:  st,
		Router: router,
		JWT:    jwtSvc,
		Outbox: outbox,
		Clock:  clock,
		Jobs:   jobs,
		Config: cfg,
	}
}

// Session mirrors the sign-in response payload.
type Session struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int            `json:"expires_in"`
	Identity    iauth.Identity `json:"identity"`
}

// SignUp registers username with DefaultPassword and returns the emailed code.
func (e *Env) SignUp(username, email string) string {
	e.T.Helper()

	payload := map[string]string{
		"username": username,
		"email":    email,
		"password": DefaultPassword,
	}
	w := e.Request(http.MethodPost, "/api/sign-up", payload, "")
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())
	return e.Outbox.LastCode(e.T)
}

// Verify submits the verification code for username.
func (e *Env) Verify(username, code string) {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/verify-code", map[string]string{"username": username, "code": code}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())
}

// SignIn authenticates and returns the issued session.
func (e *Env) SignIn(identifier, password string) Session {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/sign-in", map[string]string{"identifier": identifier, "password": password}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var session Session
	DecodeInto(e.T, resp.Data, &session)
	require.NotEmpty(e.T, session.AccessToken)
	require.Greater(e.T, session.ExpiresIn, 0)
	return session
}

// RegisterVerified signs up, verifies and signs in username in one step.
func (e *Env) RegisterVerified(username string) Session {
	e.T.Helper()

	code := e.SignUp(username, username+"@example.com")
	e.Verify(username, code)
	return e.SignIn(username, DefaultPassword)
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// RequireError asserts the response failed with the given status and error code.
func RequireError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) APIResponse {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	resp := DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	require.Equal(t, code, resp.Error.Code, w.Body.String())
	return resp
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
