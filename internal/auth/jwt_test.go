package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeys() Keys {
	return Keys{
		Activation: "activation-key-for-tests-0000000000",
		Access:     "access-key-for-tests-00000000000000",
		Session:    "session-key-for-tests-0000000000000",
		Reset:      "reset-key-for-tests-000000000000000",
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestActivationRoundTrip(t *testing.T) {
	m := NewManager(testKeys(), TTLs{})

	pending := user.Pending{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		UserName:     "ada",
		Email:        "ada@example.com",
		PasswordHash: "$2a$10$hash",
	}

	tok, err := m.IssueActivation(pending)
	require.NoError(t, err)

	got, err := m.VerifyActivation(tok)
	require.NoError(t, err)
	assert.Equal(t, pending, got)
}

func TestVerify_Expired(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(testKeys(), TTLs{}).WithClock(clock.now)

	tok, err := m.Issue(PurposeActivation, user.Pending{Email: "a@b.c"}, 0)
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Second)

	_, err = m.VerifyActivation(tok)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerify_TamperedSignature(t *testing.T) {
	m := NewManager(testKeys(), TTLs{})

	tok, err := m.IssueReset("ada@example.com")
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)

	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = m.VerifyReset(tampered)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	m := NewManager(testKeys(), TTLs{})

	_, err := m.VerifyActivation("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_CrossPurposeRejected(t *testing.T) {
	m := NewManager(testKeys(), TTLs{})

	reset, err := m.IssueReset("ada@example.com")
	require.NoError(t, err)

	_, err = m.VerifyActivation(reset)
	require.ErrorIs(t, err, ErrInvalidToken)

	session, err := m.IssueSession("user-1", false)
	require.NoError(t, err)

	_, err = m.VerifyAccessToken(session)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_SharedKeyStillChecksPurpose(t *testing.T) {
	shared := "one-key-for-everything-000000000000"
	m := NewManager(Keys{Activation: shared, Access: shared, Session: shared, Reset: shared}, TTLs{})

	access, err := m.IssueAccess("user-1", true)
	require.NoError(t, err)

	_, err = m.VerifyReset(access)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessAndSessionClaims(t *testing.T) {
	m := NewManager(testKeys(), TTLs{Access: 15 * time.Minute})

	access, err := m.IssueAccess("user-1", true)
	require.NoError(t, err)

	claims, err := m.VerifyAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, PurposeAccess, claims.TokenType)

	session, err := m.IssueSession("user-2", false)
	require.NoError(t, err)

	claims, err = m.VerifySessionToken(session)
	require.NoError(t, err)
	assert.Equal(t, "user-2", claims.UserID)
	assert.False(t, claims.IsAdmin)
}

func TestAccessTokenLifetime(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(testKeys(), TTLs{}).WithClock(clock.now)

	tok, err := m.IssueAccess("user-1", false)
	require.NoError(t, err)

	clock.t = clock.t.Add(14 * time.Minute)
	_, err = m.VerifyAccessToken(tok)
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Minute)
	_, err = m.VerifyAccessToken(tok)
	require.ErrorIs(t, err, ErrExpiredToken)
}
