// ABOUTME: Wallet login pipeline: verify signature, resolve identity, issue session
// ABOUTME: Each step strictly precedes the next; failures map to a small error taxonomy

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oneblock/oneblock-gateway/internal/identity"
	"github.com/oneblock/oneblock-gateway/internal/wallet"
)

// Login errors
var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrSignatureInvalid   = errors.New("invalid signature")
	ErrStoreUnavailable   = errors.New("identity store unavailable")
)

// LoginStatus is the informational outcome reported to the client.
type LoginStatus string

const (
	LoginApproved LoginStatus = "approved"
	LoginPending  LoginStatus = "pending"
	LoginNotFound LoginStatus = "not_found"
	LoginRejected LoginStatus = "rejected"
)

// IdentityResolver resolves a canonical address to a role.
type IdentityResolver interface {
	Resolve(ctx context.Context, address string) (identity.Resolution, error)
}

// LoginResult is the outcome of a successful signature check.
// Token and Claims are set only for approved and pending logins.
type LoginResult struct {
	Status    LoginStatus
	Token     string
	Claims    *Claims
	ExpiresAt time.Time
}

// Authenticator runs the login pipeline against a fixed challenge.
type Authenticator struct {
	challenge string
	resolver  IdentityResolver
	sessions  *SessionManager
	logger    *slog.Logger
}

// NewAuthenticator creates an Authenticator for the deployment's challenge message.
func NewAuthenticator(challenge string, resolver IdentityResolver, sessions *SessionManager, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		challenge: challenge,
		resolver:  resolver,
		sessions:  sessions,
		logger:    logger.With("component", "auth"),
	}
}

// Challenge returns the canonical message clients must sign.
func (a *Authenticator) Challenge() string {
	return a.challenge
}

// Login verifies that signature is address's signature over the challenge,
// resolves the address and issues a session token when the resolution allows it.
func (a *Authenticator) Login(ctx context.Context, address, signature string) (*LoginResult, error) {
	address = strings.TrimSpace(address)
	signature = strings.TrimSpace(signature)
	if address == "" || signature == "" {
		return nil, ErrMissingCredentials
	}

	canonical, err := wallet.NormalizeAddress(address)
	if err != nil {
		a.logger.Warn("login rejected", "reason", "malformed address")
		return nil, ErrSignatureInvalid
	}
	if !wallet.Verify(canonical, a.challenge, signature) {
		a.logger.Warn("login rejected", "reason", "signature mismatch", "address", canonical)
		return nil, ErrSignatureInvalid
	}

	res, err := a.resolver.Resolve(ctx, canonical)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch res.Outcome {
	case identity.OutcomeUnknown:
		return &LoginResult{Status: LoginNotFound}, nil
	case identity.OutcomeRejected:
		return &LoginResult{Status: LoginRejected}, nil
	}

	if !res.Success() {
		return nil, fmt.Errorf("unexpected resolution outcome %q", res.Outcome)
	}

	token, claims, err := a.sessions.Issue(canonical, res.Role, string(res.ApprovalStatus), res.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("issuing session: %w", err)
	}

	status := LoginApproved
	if res.Outcome == identity.OutcomePending {
		status = LoginPending
	}

	a.logger.Info("login succeeded", "address", canonical, "role", res.Role, "status", status)
	return &LoginResult{
		Status:    status,
		Token:     token,
		Claims:    claims,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
