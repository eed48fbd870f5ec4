// ABOUTME: Tests for session token issuance and validation
// ABOUTME: Covers round trips, expiry with an injected clock, tampering, and algorithm confusion

package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSecret is a 32-byte secret that meets MinSecretLength requirement
var testSecret = []byte("session-test-secret-32-bytes-ok!")

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestSessions(t *testing.T, clock *fakeClock) *SessionManager {
	t.Helper()
	m, err := NewSessionManager(SessionConfig{
		Secret: testSecret,
		TTL:    time.Hour,
		Now:    clock.Now,
	})
	require.NoError(t, err)
	return m
}

func TestNewSessionManager_WeakSecret(t *testing.T) {
	_, err := NewSessionManager(SessionConfig{Secret: []byte("too-short")})
	assert.ErrorIs(t, err, ErrWeakSecret)

	m, err := NewSessionManager(SessionConfig{Secret: testSecret})
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, m.TTL())
}

func TestSession_IssueValidateRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestSessions(t, clock)

	token, issued, err := m.Issue("0xabc0000000000000000000000000000000000001", "student", "approved", "1800")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "0xabc0000000000000000000000000000000000001", claims.Address)
	assert.Equal(t, "0xabc0000000000000000000000000000000000001", claims.Subject)
	assert.Equal(t, "student", claims.Role)
	assert.Equal(t, "approved", claims.ApprovalStatus)
	assert.Equal(t, "1800", claims.SubjectID)
	assert.Equal(t, DefaultIssuer, claims.Issuer)
	assert.Equal(t, clock.now.Add(time.Hour), claims.ExpiresAt.Time)
	assert.Equal(t, issued, claims)
}

func TestSession_ValidatedClaimsMatchIssued(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*60*60)
	clock := &fakeClock{now: time.Date(2025, 3, 1, 20, 0, 0, 500, shanghai)}
	m := newTestSessions(t, clock)

	token, issued, err := m.Issue("0xabc0000000000000000000000000000000000002", "pending", "pending", "")
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, issued, claims)
	assert.Equal(t, time.UTC, claims.IssuedAt.Location())
	assert.True(t, claims.IssuedAt.Equal(clock.now.Truncate(time.Second)))
}

func TestSession_UniqueTokenIDs(t *testing.T) {
	m := newTestSessions(t, &fakeClock{now: time.Now()})

	_, a, err := m.Issue("0x01", "student", "approved", "1800")
	require.NoError(t, err)
	_, b, err := m.Issue("0x01", "student", "approved", "1800")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSession_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestSessions(t, clock)

	token, _, err := m.Issue("0x01", "student", "approved", "1800")
	require.NoError(t, err)

	clock.Advance(time.Hour - time.Second)
	_, err = m.Validate(token)
	require.NoError(t, err)

	clock.Advance(time.Second)
	claims, err := m.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.Nil(t, claims)
}

func TestSession_Tampering(t *testing.T) {
	m := newTestSessions(t, &fakeClock{now: time.Now()})
	token, _, err := m.Issue("0x01", "pending", "pending", "")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	// Swap in a payload claiming a different role; the signature no longer matches.
	forged, _, err := m.Issue("0x01", "admin", "approved", "1")
	require.NoError(t, err)
	forgedParts := strings.Split(forged, ".")
	tampered := parts[0] + "." + forgedParts[1] + "." + parts[2]

	claims, err := m.Validate(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)

	for _, bad := range []string{"", "garbage", parts[0] + "." + parts[1] + ".", token + "x"} {
		_, err := m.Validate(bad)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", bad)
	}
}

func TestSession_WrongSecret(t *testing.T) {
	m := newTestSessions(t, &fakeClock{now: time.Now()})
	other, err := NewSessionManager(SessionConfig{Secret: []byte("another-secret-that-is-32-bytes!")})
	require.NoError(t, err)

	token, _, err := other.Issue("0x01", "student", "approved", "1800")
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSession_RejectsOtherAlgorithms(t *testing.T) {
	m := newTestSessions(t, &fakeClock{now: time.Now()})

	claims := &Claims{
		Address: "0x01",
		Role:    "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "0x01",
			Issuer:    DefaultIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Validate(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
	require.NoError(t, err)
	_, err = m.Validate(hs512)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSession_MissingClaims(t *testing.T) {
	m := newTestSessions(t, &fakeClock{now: time.Now()})

	_, _, err := m.Issue("", "student", "approved", "1800")
	assert.ErrorIs(t, err, ErrMissingClaim)
	_, _, err = m.Issue("0x01", "", "approved", "1800")
	assert.ErrorIs(t, err, ErrMissingClaim)

	noRole := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Address: "0x01",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "0x01",
			Issuer:    DefaultIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token, err := noRole.SignedString(testSecret)
	require.NoError(t, err)
	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, ErrMissingClaim)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Address:          "0x01",
		Role:             "student",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "0x01", Issuer: DefaultIssuer},
	})
	token, err = noExp.SignedString(testSecret)
	require.NoError(t, err)
	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
