// ABOUTME: Administrative operations on registrations and staff
// ABOUTME: Approve/reject pending registrations, provision staff, and record every change in the audit log

package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/oneblock/oneblock-gateway/internal/store"
	"github.com/oneblock/oneblock-gateway/internal/wallet"
)

// Admin errors
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("registration not found")
	ErrNotPending      = errors.New("registration is not pending")
	ErrAlreadyStaff    = errors.New("address is already staff")
)

// Audit target types
const (
	TargetRegistration = "registration"
	TargetStaff        = "staff"
)

// Service performs approval and provisioning on behalf of an operator.
type Service struct {
	store  store.AdminStore
	logger *slog.Logger
}

// NewService creates an admin Service.
func NewService(s store.AdminStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  s,
		logger: logger.With("component", "admin"),
	}
}

// ListRegistrations returns registrations, optionally restricted to one status.
func (s *Service) ListRegistrations(ctx context.Context, status string, limit int) ([]*store.Registration, error) {
	filter := store.RegistrationFilter{Limit: limit}
	if status != "" {
		st := store.ApprovalStatus(status)
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, status)
		}
		filter.Status = &st
	}
	return s.store.ListRegistrations(ctx, filter)
}

// Approve moves a pending registration to approved.
func (s *Service) Approve(ctx context.Context, actor, address string) error {
	return s.transition(ctx, actor, address, store.ApprovalApproved, store.AuditApproveRegistration, "")
}

// Reject moves a pending registration to rejected. Rejection is terminal.
func (s *Service) Reject(ctx context.Context, actor, address, reason string) error {
	return s.transition(ctx, actor, address, store.ApprovalRejected, store.AuditRejectRegistration, reason)
}

func (s *Service) transition(ctx context.Context, actor, address string, to store.ApprovalStatus, action store.AuditAction, reason string) error {
	if strings.TrimSpace(actor) == "" {
		return fmt.Errorf("%w: actor required", ErrInvalidArgument)
	}
	canonical, err := wallet.NormalizeAddress(address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	err = s.store.SetApprovalStatus(ctx, canonical, store.ApprovalPending, to)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrStatusConflict):
		return ErrNotPending
	case err != nil:
		return fmt.Errorf("updating registration: %w", err)
	}

	detail := map[string]any{"from": string(store.ApprovalPending), "to": string(to)}
	if reason != "" {
		detail["reason"] = reason
	}
	s.audit(ctx, &store.AuditEntry{
		Actor:      actor,
		Action:     action,
		TargetType: TargetRegistration,
		TargetID:   canonical,
		Detail:     detail,
	})

	s.logger.Info("registration status changed", "actor", actor, "address", canonical, "status", to)
	return nil
}

// StaffRequest describes a staff member to provision.
type StaffRequest struct {
	Address     string
	Role        string
	DisplayName string
}

// Validate checks the staff request fields.
func (r StaffRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Address, validation.Required),
		validation.Field(&r.Role, validation.Required, validation.In(stringsToAny(store.ValidStaffRoles)...)),
		validation.Field(&r.DisplayName, validation.Length(0, 100)),
	)
}

func stringsToAny(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// AddStaff provisions a staff record. Staff always take precedence over any
// registration for the same address.
func (s *Service) AddStaff(ctx context.Context, actor string, req StaffRequest) (*store.StaffRecord, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, fmt.Errorf("%w: actor required", ErrInvalidArgument)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	canonical, err := wallet.NormalizeAddress(req.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	staff := &store.StaffRecord{
		Address:     canonical,
		Role:        req.Role,
		DisplayName: strings.TrimSpace(req.DisplayName),
	}
	err = s.store.CreateStaff(ctx, staff)
	switch {
	case errors.Is(err, store.ErrDuplicateStaff):
		return nil, ErrAlreadyStaff
	case err != nil:
		return nil, fmt.Errorf("creating staff: %w", err)
	}

	s.audit(ctx, &store.AuditEntry{
		Actor:      actor,
		Action:     store.AuditCreateStaff,
		TargetType: TargetStaff,
		TargetID:   canonical,
		Detail:     map[string]any{"role": staff.Role, "staff_id": staff.ID},
	})

	s.logger.Info("staff provisioned", "actor", actor, "address", canonical, "role", staff.Role, "id", staff.ID)
	return staff, nil
}

// ListStaff returns all staff records.
func (s *Service) ListStaff(ctx context.Context) ([]*store.StaffRecord, error) {
	return s.store.ListStaff(ctx)
}

// AuditLog returns audit entries matching filter, newest first.
func (s *Service) AuditLog(ctx context.Context, filter store.AuditFilter) ([]store.AuditEntry, error) {
	return s.store.ListAuditLog(ctx, filter)
}

// audit appends e, logging rather than failing when the audit write errors.
// The state change has already committed by the time this runs.
func (s *Service) audit(ctx context.Context, e *store.AuditEntry) {
	if err := s.store.AppendAuditLog(ctx, e); err != nil {
		s.logger.Error("failed to append audit log", "action", e.Action, "target", e.TargetID, "error", err)
	}
}
