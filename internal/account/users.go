package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/storefront/internal/domain/user"
)

const (
	DefaultPage  = 1
	DefaultLimit = 5
	MaxLimit     = 100
)

type ListInput struct {
	Page   int
	Limit  int
	Search string
}

type ListResult struct {
	Users       []user.User `json:"users"`
	TotalPage   int         `json:"totalPage"`
	CurrentPage int         `json:"currentPage"`
}

// Actor is the authenticated caller of an administrative operation.
type Actor struct {
	UserID  string
	IsAdmin bool
}

// List pages through users, newest first. A page past the end is clamped to
// the last page.
func (s *Service) List(ctx context.Context, in ListInput) (ListResult, error) {
	if in.Page < 1 {
		in.Page = DefaultPage
	}
	if in.Limit < 1 {
		in.Limit = DefaultLimit
	}
	if in.Limit > MaxLimit {
		in.Limit = MaxLimit
	}

	filter := user.ListFilter{
		Search: strings.TrimSpace(in.Search),
		Limit:  in.Limit,
		Offset: (in.Page - 1) * in.Limit,
	}

	items, total, err := s.list(ctx, filter)
	if err != nil {
		return ListResult{}, err
	}

	totalPage := (total + in.Limit - 1) / in.Limit

	if totalPage > 0 && in.Page > totalPage {
		in.Page = totalPage
		filter.Offset = (in.Page - 1) * in.Limit

		items, total, err = s.list(ctx, filter)
		if err != nil {
			return ListResult{}, err
		}
		totalPage = (total + in.Limit - 1) / in.Limit
	}

	if items == nil {
		items = []user.User{}
	}

	return ListResult{Users: items, TotalPage: totalPage, CurrentPage: in.Page}, nil
}

func (s *Service) list(ctx context.Context, f user.ListFilter) ([]user.User, int, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	items, total, err := s.store.List(sctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, userName string) (user.User, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	u, err := s.store.GetByUserName(sctx, userName)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, fmt.Errorf("%w: user %q", ErrNotFound, userName)
		}
		return user.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// Update changes profile fields. Admins may update anyone, other users only
// themselves.
func (s *Service) Update(ctx context.Context, actor Actor, userName string, upd user.ProfileUpdate) (user.User, error) {
	target, err := s.Get(ctx, userName)
	if err != nil {
		return user.User{}, err
	}

	if !actor.IsAdmin && actor.UserID != target.ID {
		return user.User{}, fmt.Errorf("%w: cannot update another user", ErrForbidden)
	}

	if upd.Image != nil && *upd.Image != "" && !target.OwnsImage(*upd.Image) {
		return user.User{}, &ValidationError{
			Field:   "image",
			Rule:    "owner",
			Message: "must be a key under " + user.ImagePrefix(target.ID),
		}
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	u, err := s.store.Update(sctx, userName, upd)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, fmt.Errorf("%w: user %q", ErrNotFound, userName)
		}
		return user.User{}, fmt.Errorf("update user: %w", err)
	}

	return u, nil
}

// Delete removes the user and, best effort, the image object it owns.
func (s *Service) Delete(ctx context.Context, userName string) error {
	sctx, cancel := s.storeCtx(ctx)
	u, err := s.store.Delete(sctx, userName)
	cancel()
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return fmt.Errorf("%w: user %q", ErrNotFound, userName)
		}
		return fmt.Errorf("delete user: %w", err)
	}

	// keys outside the user's folder are never removed
	if u.Image != nil && u.OwnsImage(*u.Image) && s.assets != nil {
		if err := s.assets.Delete(ctx, *u.Image); err != nil {
			s.log.WarnContext(ctx, "user image removal failed", "user_id", u.ID, "key", *u.Image, "err", err)
		}
	}

	s.log.InfoContext(ctx, "user deleted", "user_id", u.ID, "by", actorID(ctx))

	return nil
}
