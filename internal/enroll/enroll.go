// ABOUTME: Self-service student registration with sequential student ids
// ABOUTME: Validates the form, canonicalises the address, and delegates atomic allocation to the store

package enroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oneblock/oneblock-gateway/internal/store"
	"github.com/oneblock/oneblock-gateway/internal/wallet"
)

var (
	// ErrInvalidProfile is returned when required fields are missing or malformed.
	ErrInvalidProfile = errors.New("invalid registration")

	// ErrConflict is returned when the address already has a registration in any state.
	ErrConflict = errors.New("address already registered")

	// ErrStoreUnavailable wraps backend faults during registration.
	ErrStoreUnavailable = errors.New("registration store unavailable")
)

// Service runs the registration workflow.
type Service struct {
	store  store.RegistrationStore
	policy store.StudentIDPolicy
	logger *slog.Logger
}

// NewService creates a registration service allocating ids under policy.
func NewService(s store.RegistrationStore, policy store.StudentIDPolicy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  s,
		policy: policy,
		logger: logger.With("component", "enroll"),
	}
}

// Register validates p and creates a pending registration.
// On success the returned record carries the allocated student id.
func (s *Service) Register(ctx context.Context, p Profile) (*store.Registration, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	// Validate already checked the address, so this cannot fail.
	address, _ := wallet.NormalizeAddress(p.Address)

	reg := &store.Registration{
		Address:  address,
		Name:     p.Name,
		Email:    p.Email,
		Phone:    strings.TrimSpace(p.Phone),
		WechatID: strings.TrimSpace(p.WechatID),
		Details:  p.details(),
	}

	err := s.store.CreateRegistration(ctx, reg, s.policy)
	switch {
	case errors.Is(err, store.ErrDuplicateRegistration):
		s.logger.Info("duplicate registration", "address", address)
		return nil, ErrConflict
	case err != nil:
		s.logger.Error("creating registration", "address", address, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.logger.Info("registration created",
		"address", address,
		"student_id", reg.StudentID,
		"status", reg.ApprovalStatus,
	)
	return reg, nil
}
