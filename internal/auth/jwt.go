package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose scopes a token to one use. Every purpose signs with its own key.
type Purpose string

const (
	PurposeActivation Purpose = "activation"
	PurposeAccess     Purpose = "access"
	PurposeSession    Purpose = "session"
	PurposeReset      Purpose = "reset_password"
)

var (
	ErrExpiredToken   = errors.New("expired token")
	ErrInvalidToken   = errors.New("invalid token")
	ErrUnknownPurpose = errors.New("unknown token purpose")
)

type Keys struct {
	Activation string
	Access     string
	Session    string
	Reset      string
}

type TTLs struct {
	Activation time.Duration
	Access     time.Duration
	Reset      time.Duration
}

// Claims is the identity carried by access and session tokens.
type Claims struct {
	UserID    string  `json:"id"`
	IsAdmin   bool    `json:"isAdmin"`
	TokenType Purpose `json:"-"`
}

type tokenClaims struct {
	TokenType Purpose         `json:"typ"`
	Data      json.RawMessage `json:"data"`
	jwt.RegisteredClaims
}

type resetPayload struct {
	Email string `json:"email"`
}

type Manager struct {
	keys map[Purpose][]byte
	ttls TTLs
	now  func() time.Time
}

func NewManager(keys Keys, ttls TTLs) *Manager {
	if ttls.Activation <= 0 {
		ttls.Activation = 24 * time.Hour
	}
	if ttls.Access <= 0 {
		ttls.Access = 15 * time.Minute
	}
	if ttls.Reset <= 0 {
		ttls.Reset = 10 * time.Minute
	}

	return &Manager{
		keys: map[Purpose][]byte{
			PurposeActivation: []byte(keys.Activation),
			PurposeAccess:     []byte(keys.Access),
			PurposeSession:    []byte(keys.Session),
			PurposeReset:      []byte(keys.Reset),
		},
		ttls: ttls,
		now:  time.Now,
	}
}

// WithClock swaps the time source used for issuing and verifying.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) AccessTTL() time.Duration {
	return m.ttls.Access
}

// Issue signs payload for purpose with an expiry of now+ttl.
func (m *Manager) Issue(purpose Purpose, payload any, ttl time.Duration) (string, error) {
	key, ok := m.keys[purpose]
	if !ok {
		return "", ErrUnknownPurpose
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", purpose, err)
	}

	now := m.now().UTC()

	claims := tokenClaims{
		TokenType: purpose,
		Data:      data,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(key)
}

// Verify checks signature, expiry and purpose, then decodes the payload into out.
func (m *Manager) Verify(purpose Purpose, tokenStr string, out any) error {
	key, ok := m.keys[purpose]
	if !ok {
		return ErrUnknownPurpose
	}

	var claims tokenClaims

	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.TokenType != purpose {
		return fmt.Errorf("%w: token type %q", ErrInvalidToken, claims.TokenType)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(claims.Data, out); err != nil {
		return fmt.Errorf("%w: payload: %v", ErrInvalidToken, err)
	}

	return nil
}

func (m *Manager) IssueActivation(p user.Pending) (string, error) {
	return m.Issue(PurposeActivation, p, m.ttls.Activation)
}

func (m *Manager) VerifyActivation(tokenStr string) (user.Pending, error) {
	var p user.Pending
	if err := m.Verify(PurposeActivation, tokenStr, &p); err != nil {
		return user.Pending{}, err
	}
	return p, nil
}

func (m *Manager) IssueAccess(userID string, isAdmin bool) (string, error) {
	return m.Issue(PurposeAccess, Claims{UserID: userID, IsAdmin: isAdmin}, m.ttls.Access)
}

// IssueSession signs the cookie-bound session token.
func (m *Manager) IssueSession(userID string, isAdmin bool) (string, error) {
	return m.Issue(PurposeSession, Claims{UserID: userID, IsAdmin: isAdmin}, m.ttls.Access)
}

// VerifyAccessToken accepts a bearer access token.
func (m *Manager) VerifyAccessToken(tokenStr string) (*Claims, error) {
	return m.verifyIdentity(PurposeAccess, tokenStr)
}

// VerifySessionToken accepts the cookie-bound session token.
func (m *Manager) VerifySessionToken(tokenStr string) (*Claims, error) {
	return m.verifyIdentity(PurposeSession, tokenStr)
}

func (m *Manager) verifyIdentity(purpose Purpose, tokenStr string) (*Claims, error) {
	var c Claims
	if err := m.Verify(purpose, tokenStr, &c); err != nil {
		return nil, err
	}
	if c.UserID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	c.TokenType = purpose
	return &c, nil
}

func (m *Manager) IssueReset(email string) (string, error) {
	return m.Issue(PurposeReset, resetPayload{Email: email}, m.ttls.Reset)
}

func (m *Manager) VerifyReset(tokenStr string) (string, error) {
	var p resetPayload
	if err := m.Verify(PurposeReset, tokenStr, &p); err != nil {
		return "", err
	}
	if p.Email == "" {
		return "", fmt.Errorf("%w: missing email", ErrInvalidToken)
	}
	return p.Email, nil
}
