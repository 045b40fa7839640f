package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrUserNameTaken = errors.New("user name already taken")
)

type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	UserName     string    `json:"userName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	Image        *string   `json:"image,omitempty"`
	IsAdmin      bool      `json:"isAdmin"`
	IsBanned     bool      `json:"isBanned"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Pending is a registration that has not been activated yet. It only ever
// lives inside a signed activation token.
type Pending struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	UserName     string `json:"userName"`
	Email        string `json:"email"`
	PasswordHash string `json:"password"`
}

// ProfileUpdate carries the mutable profile fields; nil means unchanged.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Image     *string
}

type ListFilter struct {
	Search string
	Limit  int
	Offset int
}

// NewFromPending builds the record written on activation.
func NewFromPending(p Pending) User {
	now := time.Now().UTC()

	return User{
		ID:           uuid.NewString(),
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		UserName:     p.UserName,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ImagePrefix is the object-store folder that holds a user's images.
func ImagePrefix(userID string) string {
	return "avatars/" + userID + "/"
}

// OwnsImage reports whether key is an object inside the user's own folder.
func (u User) OwnsImage(key string) bool {
	rest, ok := strings.CutPrefix(key, ImagePrefix(u.ID))
	return ok && u.ID != "" && rest != "" && !strings.Contains(rest, "..")
}
