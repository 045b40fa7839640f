package db

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/geocoder89/storefront/internal/config"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/security"
)

type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

// EnsureAdminUser creates the configured admin account once. It is a no-op
// when ADMIN_EMAIL or ADMIN_PASSWORD is unset or the user already exists. A
// regular account holding the admin user name is left alone.
func EnsureAdminUser(ctx context.Context, store AdminStore, cfg config.Admin) error {
	if cfg.Email == "" || cfg.Password == "" {
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(cfg.Email))

	// check if the user exists
	_, err := store.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return err
	}

	hash, err := security.HashPassword(cfg.Password)
	if err != nil {
		return err
	}

	u := user.NewFromPending(user.Pending{
		FirstName:    cfg.FirstName,
		LastName:     cfg.LastName,
		UserName:     cfg.UserName,
		Email:        email,
		PasswordHash: hash,
	})
	u.IsAdmin = true

	_, err = store.Create(ctx, u)
	switch {
	case errors.Is(err, user.ErrEmailTaken):
		// another instance won the race
		return nil
	case errors.Is(err, user.ErrUserNameTaken):
		slog.WarnContext(ctx, "admin seed skipped, user name already registered", "user_name", cfg.UserName)
		return nil
	}

	return err
}
