package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/geocoder89/storefront/internal/account"
	"github.com/geocoder89/storefront/internal/domain/user"
)

type listPage struct {
	items []user.User
	total int
}

// Users caches List results in front of a user store. Every successful
// mutation clears the whole list cache.
type Users struct {
	account.UserStore
	lists *Cache[listPage]
}

var _ account.UserStore = (*Users)(nil)

func NewUsers(store account.UserStore, ttl time.Duration) *Users {
	return &Users{UserStore: store, lists: New[listPage](ttl)}
}

func listKey(f user.ListFilter) string {
	return fmt.Sprintf("users:list:%d:%d:%s", f.Limit, f.Offset, f.Search)
}

func (u *Users) List(ctx context.Context, f user.ListFilter) ([]user.User, int, error) {
	key := listKey(f)

	if page, ok := u.lists.Get(key); ok {
		return append([]user.User(nil), page.items...), page.total, nil
	}

	items, total, err := u.UserStore.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	u.lists.Set(key, listPage{items: append([]user.User(nil), items...), total: total})

	return items, total, nil
}

func (u *Users) Create(ctx context.Context, usr user.User) (user.User, error) {
	out, err := u.UserStore.Create(ctx, usr)
	u.invalidate(err)
	return out, err
}

func (u *Users) Update(ctx context.Context, userName string, upd user.ProfileUpdate) (user.User, error) {
	out, err := u.UserStore.Update(ctx, userName, upd)
	u.invalidate(err)
	return out, err
}

func (u *Users) ToggleBan(ctx context.Context, userName string) (user.User, error) {
	out, err := u.UserStore.ToggleBan(ctx, userName)
	u.invalidate(err)
	return out, err
}

func (u *Users) Delete(ctx context.Context, userName string) (user.User, error) {
	out, err := u.UserStore.Delete(ctx, userName)
	u.invalidate(err)
	return out, err
}

func (u *Users) invalidate(err error) {
	if err == nil {
		u.lists.Clear()
	}
}
