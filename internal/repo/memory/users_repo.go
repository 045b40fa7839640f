package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/storefront/internal/domain/user"
)

// UsersRepo is an in-process credential store with the same uniqueness
// guarantees as the postgres one. Used by tests and by the dev server when
// no database is configured.
type UsersRepo struct {
	mu    sync.RWMutex
	items map[string]user.User // keyed by id

	byEmail    map[string]string
	byUserName map[string]string
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:      make(map[string]user.User),
		byEmail:    make(map[string]string),
		byUserName: make(map[string]string),
	}
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return r.items[id], nil
}

func (r *UsersRepo) GetByUserName(ctx context.Context, userName string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUserName[userName]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return r.items[id], nil
}

func (r *UsersRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.mu.RLock()
	_, ok := r.byEmail[email]
	r.mu.RUnlock()

	return ok, nil
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[u.Email]; ok {
		return user.User{}, user.ErrEmailTaken
	}
	if _, ok := r.byUserName[u.UserName]; ok {
		return user.User{}, user.ErrUserNameTaken
	}

	r.items[u.ID] = u
	r.byEmail[u.Email] = u.ID
	r.byUserName[u.UserName] = u.ID

	return u, nil
}

func (r *UsersRepo) Update(ctx context.Context, userName string, upd user.ProfileUpdate) (user.User, error) {
	return r.mutate(userName, func(u *user.User) {
		if upd.FirstName != nil {
			u.FirstName = *upd.FirstName
		}
		if upd.LastName != nil {
			u.LastName = *upd.LastName
		}
		if upd.Image != nil {
			img := *upd.Image
			u.Image = &img
		}
	})
}

func (r *UsersRepo) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byEmail[email]
	if !ok {
		return user.ErrNotFound
	}

	u := r.items[id]
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	r.items[id] = u

	return nil
}

func (r *UsersRepo) ToggleBan(ctx context.Context, userName string) (user.User, error) {
	return r.mutate(userName, func(u *user.User) {
		u.IsBanned = !u.IsBanned
	})
}

func (r *UsersRepo) Delete(ctx context.Context, userName string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byUserName[userName]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	u := r.items[id]
	delete(r.items, id)
	delete(r.byEmail, u.Email)
	delete(r.byUserName, u.UserName)

	return u, nil
}

// List mirrors the postgres ordering: newest first, then by user name.
func (r *UsersRepo) List(ctx context.Context, f user.ListFilter) ([]user.User, int, error) {
	r.mu.RLock()
	matched := make([]user.User, 0, len(r.items))
	for _, u := range r.items {
		if matches(u, f.Search) {
			matched = append(matched, u)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].UserName < matched[j].UserName
	})

	total := len(matched)

	if f.Offset >= total {
		return []user.User{}, total, nil
	}

	end := total
	if f.Limit > 0 && f.Offset+f.Limit < total {
		end = f.Offset + f.Limit
	}

	return matched[f.Offset:end], total, nil
}

func (r *UsersRepo) mutate(userName string, fn func(u *user.User)) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byUserName[userName]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	u := r.items[id]
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	r.items[id] = u

	return u, nil
}

// search excludes admins and matches names or email case-insensitively
func matches(u user.User, search string) bool {
	if search == "" {
		return true
	}
	if u.IsAdmin {
		return false
	}

	q := strings.ToLower(search)
	for _, field := range []string{u.FirstName, u.LastName, u.UserName, u.Email} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
