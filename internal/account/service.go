package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/storefront/internal/actorctx"
	"github.com/geocoder89/storefront/internal/auth"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/notifications"
	"github.com/geocoder89/storefront/internal/security"
)

// UserStore is the credential store. Implementations enforce unique email
// and user name and report violations as user.ErrEmailTaken or
// user.ErrUserNameTaken.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByUserName(ctx context.Context, userName string) (user.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u user.User) (user.User, error)
	Update(ctx context.Context, userName string, upd user.ProfileUpdate) (user.User, error)
	UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error
	ToggleBan(ctx context.Context, userName string) (user.User, error)
	Delete(ctx context.Context, userName string) (user.User, error)
	List(ctx context.Context, f user.ListFilter) ([]user.User, int, error)
}

// MailQueue parks a message that could not be delivered right away.
type MailQueue interface {
	EnqueueEmail(ctx context.Context, msg notifications.Message) error
}

// AssetStore removes objects owned by a user.
type AssetStore interface {
	Delete(ctx context.Context, key string) error
}

type DeliveryRecorder interface {
	ObserveMail(kind string, delivery string)
}

// Delivery is the outcome of sending a transactional e-mail.
type Delivery string

const (
	DeliverySent   Delivery = "sent"
	DeliveryQueued Delivery = "queued"
	DeliveryFailed Delivery = "failed"
)

type Config struct {
	PasswordMinEntropy float64
	ActivationTTL      time.Duration
	ResetTTL           time.Duration
	StoreTimeout       time.Duration
}

// Deps groups the collaborators of Service. Queue, Assets and Metrics are optional.
type Deps struct {
	Store     UserStore
	Tokens    *auth.Manager
	Notifier  notifications.Notifier
	Templates notifications.Templates
	Queue     MailQueue
	Assets    AssetStore
	Metrics   DeliveryRecorder
	Log       *slog.Logger
	Config    Config
}

// Service runs the account lifecycle: register, activate, login, password
// reset, ban toggling and user administration.
type Service struct {
	store     UserStore
	tokens    *auth.Manager
	notifier  notifications.Notifier
	templates notifications.Templates
	queue     MailQueue
	assets    AssetStore
	metrics   DeliveryRecorder
	log       *slog.Logger
	cfg       Config
}

func NewService(d Deps) *Service {
	if d.Config.StoreTimeout <= 0 {
		d.Config.StoreTimeout = 3 * time.Second
	}
	if d.Config.ActivationTTL <= 0 {
		d.Config.ActivationTTL = 24 * time.Hour
	}
	if d.Config.ResetTTL <= 0 {
		d.Config.ResetTTL = 10 * time.Minute
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}

	return &Service{
		store:     d.Store,
		tokens:    d.Tokens,
		notifier:  d.Notifier,
		templates: d.Templates,
		queue:     d.Queue,
		assets:    d.Assets,
		metrics:   d.Metrics,
		log:       d.Log,
		cfg:       d.Config,
	}
}

type RegisterInput struct {
	FirstName string
	LastName  string
	UserName  string
	Email     string
	Password  string
}

// MailResult is returned by operations that mail a token to the user.
type MailResult struct {
	Token         string
	EmailDelivery Delivery
}

type LoginResult struct {
	User         user.User
	AccessToken  string
	SessionToken string
	SessionTTL   time.Duration
}

// Register issues an activation token carrying the hashed credentials and
// mails the activation link. No user row is written until Activate.
func (s *Service) Register(ctx context.Context, in RegisterInput) (MailResult, error) {
	in.Email = normalizeEmail(in.Email)
	in.UserName = strings.TrimSpace(in.UserName)

	sctx, cancel := s.storeCtx(ctx)
	exists, err := s.store.ExistsByEmail(sctx, in.Email)
	cancel()
	if err != nil {
		return MailResult{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return MailResult{}, fmt.Errorf("%w: user with this email already exists", ErrConflict)
	}

	sctx, cancel = s.storeCtx(ctx)
	_, err = s.store.GetByUserName(sctx, in.UserName)
	cancel()
	if err == nil {
		return MailResult{}, fmt.Errorf("%w: user name already taken", ErrConflict)
	}
	if !errors.Is(err, user.ErrNotFound) {
		return MailResult{}, fmt.Errorf("check user name: %w", err)
	}

	if err := s.checkPassword(in.Password); err != nil {
		return MailResult{}, err
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return MailResult{}, fmt.Errorf("hash password: %w", err)
	}

	token, err := s.tokens.IssueActivation(user.Pending{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		UserName:     in.UserName,
		Email:        in.Email,
		PasswordHash: hash,
	})
	if err != nil {
		return MailResult{}, fmt.Errorf("issue activation token: %w", err)
	}

	msg, err := s.templates.Activation(in.Email, in.FirstName, token, humanizeTTL(s.cfg.ActivationTTL))
	if err != nil {
		return MailResult{}, err
	}

	return MailResult{Token: token, EmailDelivery: s.deliver(ctx, "activation", msg)}, nil
}

// Activate exchanges an activation token for a persisted user.
func (s *Service) Activate(ctx context.Context, token string) (user.User, error) {
	if strings.TrimSpace(token) == "" {
		return user.User{}, ErrMissingToken
	}

	pending, err := s.tokens.VerifyActivation(token)
	if err != nil {
		return user.User{}, mapTokenError(err)
	}

	if pending.Email == "" || pending.UserName == "" || pending.PasswordHash == "" {
		return user.User{}, fmt.Errorf("%w: incomplete activation payload", ErrInvalidToken)
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	u, err := s.store.Create(sctx, user.NewFromPending(pending))
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) || errors.Is(err, user.ErrUserNameTaken) {
			return user.User{}, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return user.User{}, fmt.Errorf("create user: %w", err)
	}

	s.log.InfoContext(ctx, "account activated", "user_id", u.ID)

	return u, nil
}

// Login checks credentials and ban status, then issues the access token and
// the cookie-bound session token.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	sctx, cancel := s.storeCtx(ctx)
	u, err := s.store.GetByEmail(sctx, normalizeEmail(email))
	cancel()
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return LoginResult{}, fmt.Errorf("%w: user with this email does not exist", ErrNotFound)
		}
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}

	if err := security.CheckPassword(u.PasswordHash, password); err != nil {
		return LoginResult{}, fmt.Errorf("%w: password does not match", ErrUnauthorized)
	}

	if u.IsBanned {
		return LoginResult{}, fmt.Errorf("%w: user is banned", ErrForbidden)
	}

	access, err := s.tokens.IssueAccess(u.ID, u.IsAdmin)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue access token: %w", err)
	}

	session, err := s.tokens.IssueSession(u.ID, u.IsAdmin)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue session token: %w", err)
	}

	return LoginResult{
		User:         u,
		AccessToken:  access,
		SessionToken: session,
		SessionTTL:   s.tokens.AccessTTL(),
	}, nil
}

// ForgotPassword mails a short-lived reset link to a registered address.
func (s *Service) ForgotPassword(ctx context.Context, email string) (MailResult, error) {
	email = normalizeEmail(email)

	sctx, cancel := s.storeCtx(ctx)
	u, err := s.store.GetByEmail(sctx, email)
	cancel()
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return MailResult{}, fmt.Errorf("%w: user with this email does not exist", ErrNotFound)
		}
		return MailResult{}, fmt.Errorf("load user: %w", err)
	}

	token, err := s.tokens.IssueReset(u.Email)
	if err != nil {
		return MailResult{}, fmt.Errorf("issue reset token: %w", err)
	}

	msg, err := s.templates.PasswordReset(u.Email, u.FirstName, token, humanizeTTL(s.cfg.ResetTTL))
	if err != nil {
		return MailResult{}, err
	}

	return MailResult{Token: token, EmailDelivery: s.deliver(ctx, "password_reset", msg)}, nil
}

// ResetPassword replaces the password of the user named by a valid reset token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: missing reset token", ErrUnauthorized)
	}

	email, err := s.tokens.VerifyReset(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, mapTokenError(err))
	}

	if err := s.checkPassword(newPassword); err != nil {
		return err
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.store.UpdatePasswordByEmail(sctx, email, hash); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return fmt.Errorf("%w: password reset was unsuccessful", ErrUnauthorized)
		}
		return fmt.Errorf("update password: %w", err)
	}

	return nil
}

// ToggleBan flips the ban flag and returns the updated user.
func (s *Service) ToggleBan(ctx context.Context, userName string) (user.User, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	u, err := s.store.ToggleBan(sctx, userName)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, fmt.Errorf("%w: user %q", ErrNotFound, userName)
		}
		return user.User{}, fmt.Errorf("toggle ban: %w", err)
	}

	s.log.InfoContext(ctx, "ban toggled", "user_id", u.ID, "is_banned", u.IsBanned, "by", actorID(ctx))

	return u, nil
}

func (s *Service) checkPassword(plain string) error {
	if len(plain) > security.MaxPasswordBytes {
		return &ValidationError{
			Field:   "password",
			Rule:    "max_bytes",
			Message: fmt.Sprintf("must be at most %d bytes", security.MaxPasswordBytes),
		}
	}
	if err := security.CheckStrength(plain, s.cfg.PasswordMinEntropy); err != nil {
		return &ValidationError{
			Field:   "password",
			Rule:    "strength",
			Message: "is too weak, use a longer password with mixed characters",
		}
	}
	return nil
}

// deliver sends msg and falls back to the retry queue when the provider fails.
func (s *Service) deliver(ctx context.Context, kind string, msg notifications.Message) Delivery {
	result := DeliverySent

	err := s.notifier.Send(ctx, msg)
	if err != nil {
		s.log.WarnContext(ctx, "email send failed", "kind", kind, "to", msg.To, "err", err)

		result = DeliveryFailed
		if s.queue != nil {
			if qerr := s.queue.EnqueueEmail(ctx, msg); qerr != nil {
				s.log.ErrorContext(ctx, "email enqueue failed", "kind", kind, "to", msg.To, "err", qerr)
			} else {
				result = DeliveryQueued
			}
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveMail(kind, string(result))
	}

	return result
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

func mapTokenError(err error) error {
	if errors.Is(err, auth.ErrExpiredToken) {
		return ErrExpiredToken
	}
	return fmt.Errorf("%w: %v", ErrInvalidToken, err)
}

// actorID names the caller in audit logs; empty for internal calls.
func actorID(ctx context.Context) string {
	id, _ := actorctx.UserIDFrom(ctx)
	return id
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func humanizeTTL(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
