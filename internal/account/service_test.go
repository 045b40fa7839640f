package account

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/storefront/internal/auth"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/notifications"
	"github.com/geocoder89/storefront/internal/repo/memory"
	"github.com/geocoder89/storefront/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu   sync.Mutex
	err  error
	sent []notifications.Message
}

func (f *fakeNotifier) Send(ctx context.Context, msg notifications.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeQueue struct {
	err    error
	queued []notifications.Message
}

func (f *fakeQueue) EnqueueEmail(ctx context.Context, msg notifications.Message) error {
	if f.err != nil {
		return f.err
	}
	f.queued = append(f.queued, msg)
	return nil
}

type fakeAssets struct {
	err     error
	deleted []string
}

func (f *fakeAssets) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return f.err
}

type fixture struct {
	svc      *Service
	store    *memory.UsersRepo
	tokens   *auth.Manager
	notifier *fakeNotifier
	queue    *fakeQueue
	assets   *fakeAssets
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    memory.NewUsersRepo(),
		notifier: &fakeNotifier{},
		queue:    &fakeQueue{},
		assets:   &fakeAssets{},
		now:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	f.tokens = auth.NewManager(auth.Keys{
		Activation: "activation-key-for-service-tests-00",
		Access:     "access-key-for-service-tests-000000",
		Session:    "session-key-for-service-tests-00000",
		Reset:      "reset-key-for-service-tests-0000000",
	}, auth.TTLs{}).WithClock(func() time.Time { return f.now })

	f.svc = NewService(Deps{
		Store:     f.store,
		Tokens:    f.tokens,
		Notifier:  f.notifier,
		Templates: notifications.Templates{BaseURL: "http://localhost:3000"},
		Queue:     f.queue,
		Assets:    f.assets,
		Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	return f
}

func registerInput() RegisterInput {
	return RegisterInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		UserName:  "ada",
		Email:     "Ada@Example.com",
		Password:  "analytical-engine-1843",
	}
}

func (f *fixture) registerAndActivate(t *testing.T, in RegisterInput) user.User {
	t.Helper()

	res, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)

	u, err := f.svc.Activate(context.Background(), res.Token)
	require.NoError(t, err)
	return u
}

func TestRegister_DoesNotPersistUntilActivated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, registerInput())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, DeliverySent, res.EmailDelivery)

	ok, err := f.store.ExistsByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.Len(t, f.notifier.sent, 1)
	msg := f.notifier.sent[0]
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Activate Your Account", msg.Subject)
	assert.Contains(t, msg.HTML, "http://localhost:3000/users/activate/"+res.Token)
	assert.Contains(t, msg.HTML, "24 hours")
	assert.NotContains(t, msg.HTML, "analytical-engine-1843")
}

func TestRegisterActivate_CreatesExactlyOneUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.registerAndActivate(t, registerInput())

	assert.Equal(t, "Ada", u.FirstName)
	assert.Equal(t, "Lovelace", u.LastName)
	assert.Equal(t, "ada", u.UserName)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.False(t, u.IsAdmin)
	assert.False(t, u.IsBanned)
	assert.True(t, strings.HasPrefix(u.PasswordHash, "$2"))
	require.NoError(t, security.CheckPassword(u.PasswordHash, "analytical-engine-1843"))

	_, total, err := f.store.List(ctx, user.ListFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestRegister_EmailTaken(t *testing.T) {
	f := newFixture(t)
	f.registerAndActivate(t, registerInput())

	in := registerInput()
	in.UserName = "someone-else"

	_, err := f.svc.Register(context.Background(), in)
	require.ErrorIs(t, err, ErrConflict)
}

func TestRegister_UserNameTaken(t *testing.T) {
	f := newFixture(t)
	f.registerAndActivate(t, registerInput())

	in := registerInput()
	in.Email = "other@example.com"

	_, err := f.svc.Register(context.Background(), in)
	require.ErrorIs(t, err, ErrConflict)
}

func TestRegister_WeakPassword(t *testing.T) {
	f := newFixture(t)
	f.svc.cfg.PasswordMinEntropy = 50

	in := registerInput()
	in.Password = "aaaa"

	_, err := f.svc.Register(context.Background(), in)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Field)
	assert.Empty(t, f.notifier.sent)
}

func TestRegister_PasswordOverBcryptByteLimit(t *testing.T) {
	f := newFixture(t)

	in := registerInput()
	in.Password = strings.Repeat("пароль€Ж", 5)

	_, err := f.svc.Register(context.Background(), in)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "max_bytes", verr.Rule)
	assert.Empty(t, f.notifier.sent)
}

func TestRegister_MailFailureIsQueued(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")

	res, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, DeliveryQueued, res.EmailDelivery)
	require.Len(t, f.queue.queued, 1)
	assert.Equal(t, "ada@example.com", f.queue.queued[0].To)
}

func TestRegister_MailAndQueueFailure(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")
	f.queue.err = errors.New("redis down")

	res, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)
	assert.Equal(t, DeliveryFailed, res.EmailDelivery)
}

func TestActivate_MissingToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Activate(context.Background(), "  ")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestActivate_ExpiredToken(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	f.now = f.now.Add(24*time.Hour + time.Second)

	_, err = f.svc.Activate(context.Background(), res.Token)
	require.ErrorIs(t, err, ErrExpiredToken)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestActivate_TamperedToken(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	parts := strings.Split(res.Token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	_, err = f.svc.Activate(context.Background(), tampered)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestActivate_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	const n = 8
	errs := make([]error, n)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.Activate(context.Background(), res.Token)
		}(i)
	}
	close(start)
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	u := f.registerAndActivate(t, registerInput())
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "ada@example.com", "analytical-engine-1843")
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)
	assert.Equal(t, 15*time.Minute, res.SessionTTL)

	claims, err := f.tokens.VerifyAccessToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)

	claims, err = f.tokens.VerifySessionToken(res.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)

	_, err = f.svc.Login(ctx, "ada@example.com", "wrong-password")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.Login(ctx, "nobody@example.com", "whatever")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLogin_Banned(t *testing.T) {
	f := newFixture(t)
	f.registerAndActivate(t, registerInput())
	ctx := context.Background()

	_, err := f.svc.ToggleBan(ctx, "ada")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "ada@example.com", "analytical-engine-1843")
	require.ErrorIs(t, err, ErrForbidden)

	// a wrong password is still reported before the ban
	_, err = f.svc.Login(ctx, "ada@example.com", "nope")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newFixture(t)
	f.registerAndActivate(t, registerInput())
	ctx := context.Background()

	res, err := f.svc.ForgotPassword(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, DeliverySent, res.EmailDelivery)

	last := f.notifier.sent[len(f.notifier.sent)-1]
	assert.Equal(t, "Reset Password Email", last.Subject)
	assert.Contains(t, last.HTML, "/users/reset-password/"+res.Token)
	assert.Contains(t, last.HTML, "10 minutes")

	require.NoError(t, f.svc.ResetPassword(ctx, res.Token, "difference-engine-1822"))

	_, err = f.svc.Login(ctx, "ada@example.com", "difference-engine-1822")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "ada@example.com", "analytical-engine-1843")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ForgotPassword(context.Background(), "ghost@example.com")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.notifier.sent)
}

func TestResetPassword_RejectsBadTokensWithoutMutation(t *testing.T) {
	f := newFixture(t)
	u := f.registerAndActivate(t, registerInput())
	ctx := context.Background()

	require.ErrorIs(t, f.svc.ResetPassword(ctx, "", "new-password-123456"), ErrUnauthorized)
	require.ErrorIs(t, f.svc.ResetPassword(ctx, "garbage", "new-password-123456"), ErrUnauthorized)

	activation, err := f.tokens.IssueActivation(user.Pending{Email: u.Email})
	require.NoError(t, err)
	require.ErrorIs(t, f.svc.ResetPassword(ctx, activation, "new-password-123456"), ErrUnauthorized)

	reset, err := f.tokens.IssueReset(u.Email)
	require.NoError(t, err)
	f.now = f.now.Add(11 * time.Minute)
	require.ErrorIs(t, f.svc.ResetPassword(ctx, reset, "new-password-123456"), ErrUnauthorized)

	stored, err := f.store.GetByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.PasswordHash, stored.PasswordHash)
}

func TestResetPassword_PasswordOverBcryptByteLimit(t *testing.T) {
	f := newFixture(t)
	u := f.registerAndActivate(t, registerInput())
	ctx := context.Background()

	reset, err := f.tokens.IssueReset(u.Email)
	require.NoError(t, err)

	err = f.svc.ResetPassword(ctx, reset, strings.Repeat("Ж", 37))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "max_bytes", verr.Rule)

	stored, err := f.store.GetByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.PasswordHash, stored.PasswordHash)
}

func TestResetPassword_UserGone(t *testing.T) {
	f := newFixture(t)

	token, err := f.tokens.IssueReset("ghost@example.com")
	require.NoError(t, err)

	err = f.svc.ResetPassword(context.Background(), token, "new-password-123456")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestToggleBan_TwiceRestores(t *testing.T) {
	f := newFixture(t)
	f.registerAndActivate(t, registerInput())
	ctx := context.Background()

	u, err := f.svc.ToggleBan(ctx, "ada")
	require.NoError(t, err)
	assert.True(t, u.IsBanned)

	u, err = f.svc.ToggleBan(ctx, "ada")
	require.NoError(t, err)
	assert.False(t, u.IsBanned)

	_, err = f.svc.ToggleBan(ctx, "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}
