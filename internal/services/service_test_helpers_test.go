package services

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mysterymsg/mystery/internal/database/testutil"
	"github.com/mysterymsg/mystery/internal/store"
	"github.com/mysterymsg/mystery/pkg/mail"
)

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

// outbox records verification emails and can be told to fail.
type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (o *outbox) mailer() mail.Mailer {
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

func (o *outbox) fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

// lastCode extracts the code from the most recent email.
func (o *outbox) lastCode(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent, "expected a verification email")
	match := codePattern.FindStringSubmatch(o.sent[len(o.sent)-1].Body)
	require.Len(t, match, 2)
	return match[1]
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type serviceFixture struct {
	store    store.Store
	accounts *AccountService
	inbox    *InboxService
	outbox   *outbox
	clock    *testClock
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	st, err := store.NewSQLStore(db)
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	box := &outbox{}

	accounts, err := NewAccountService(st,
		NewCodeIssuer(WithCodeClock(clock.Now)),
		NewVerificationMailer(box.mailer(), "https://mystery.example/verify"),
		WithAccountClock(clock.Now),
	)
	require.NoError(t, err)

	inbox, err := NewInboxService(st, WithInboxClock(clock.Now))
	require.NoError(t, err)

	return &serviceFixture{store: st, accounts: accounts, inbox: inbox, outbox: box, clock: clock}
}

// registerVerified signs up and verifies an account, returning its identity.
func (f *serviceFixture) registerVerified(t *testing.T, username, email string) {
	t.Helper()
	ctx := context.Background()

	_, err := f.accounts.Register(ctx, RegisterInput{Username: username, Email: email, Password: "Abcdef1!"})
	require.NoError(t, err)
	_, err = f.accounts.VerifyAccount(ctx, username, f.outbox.lastCode(t))
	require.NoError(t, err)
}
