// ABOUTME: Session token issuance and validation for wallet logins
// ABOUTME: Uses HS256 signed JWTs with a fixed lifetime and no sliding expiry

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrWeakSecret   = errors.New("jwt secret must be at least 32 bytes")
)

// MinSecretLength is the minimum HS256 secret size in bytes.
const MinSecretLength = 32

// DefaultIssuer is used when SessionConfig.Issuer is empty.
const DefaultIssuer = "oneblock-gateway"

// DefaultTTL is used when SessionConfig.TTL is zero.
const DefaultTTL = 24 * time.Hour

// Claims is the identity snapshot carried by a session token.
type Claims struct {
	Address        string `json:"address"`
	Role           string `json:"role"`
	ApprovalStatus string `json:"approvalStatus"`
	SubjectID      string `json:"subjectId,omitempty"`
	jwt.RegisteredClaims
}

// SessionConfig configures a SessionManager.
type SessionConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	Now    func() time.Time // defaults to time.Now
}

// SessionManager issues and validates session tokens. It is safe for concurrent use.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewSessionManager creates a SessionManager. The secret must be at least MinSecretLength bytes.
func NewSessionManager(cfg SessionConfig) (*SessionManager, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", cfg.TTL)
	}

	m := &SessionManager{
		secret: cfg.Secret,
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    cfg.Now,
	}
	if m.ttl == 0 {
		m.ttl = DefaultTTL
	}
	if m.issuer == "" {
		m.issuer = DefaultIssuer
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// TTL returns the lifetime of issued tokens.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue mints a token for the given identity snapshot.
func (m *SessionManager) Issue(address, role, approvalStatus, subjectID string) (string, *Claims, error) {
	if address == "" {
		return "", nil, fmt.Errorf("%w: address", ErrMissingClaim)
	}
	if role == "" {
		return "", nil, fmt.Errorf("%w: role", ErrMissingClaim)
	}

	now := m.now().UTC().Truncate(time.Second)
	claims := &Claims{
		Address:        address,
		Role:           role,
		ApprovalStatus: approvalStatus,
		SubjectID:      subjectID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}
	return signed, claims, nil
}

// Validate verifies signature, issuer and expiry and returns the claims.
// Any failure yields ErrExpiredToken or an error wrapping ErrInvalidToken, never partial claims.
func (m *SessionManager) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Address == "" || claims.Subject != claims.Address {
		return nil, fmt.Errorf("%w: %w: address", ErrInvalidToken, ErrMissingClaim)
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: %w: role", ErrInvalidToken, ErrMissingClaim)
	}

	// Decoded NumericDates are in time.Local; Issue hands out UTC.
	for _, nd := range []*jwt.NumericDate{claims.ExpiresAt, claims.IssuedAt, claims.NotBefore} {
		if nd != nil {
			nd.Time = nd.Time.UTC()
		}
	}

	return claims, nil
}
