// ABOUTME: Resolves a verified wallet address into a role and approval state
// ABOUTME: Staff records always win over student registrations

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/oneblock/oneblock-gateway/internal/store"
)

// ErrStoreUnavailable wraps any backend fault other than "not found".
var ErrStoreUnavailable = errors.New("identity store unavailable")

// Outcome classifies the result of resolving an address.
type Outcome string

const (
	OutcomeStaff    Outcome = "staff"
	OutcomeStudent  Outcome = "student"
	OutcomePending  Outcome = "pending"
	OutcomeRejected Outcome = "rejected"
	OutcomeUnknown  Outcome = "unknown"
)

// Roles carried by non-staff resolutions. Staff resolutions carry the staff record's role.
const (
	RoleStudent = "student"
	RolePending = "pending"
)

// Resolution is the role and approval state of an address at lookup time.
type Resolution struct {
	Outcome        Outcome
	Role           string
	ApprovalStatus store.ApprovalStatus
	SubjectID      string
}

// Success reports whether the resolution may be issued a session token.
func (r Resolution) Success() bool {
	switch r.Outcome {
	case OutcomeStaff, OutcomeStudent, OutcomePending:
		return true
	}
	return false
}

// Resolver maps addresses to resolutions using point lookups.
type Resolver struct {
	store  store.IdentityStore
	logger *slog.Logger
}

// NewResolver creates a Resolver over s.
func NewResolver(s store.IdentityStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:  s,
		logger: logger.With("component", "identity"),
	}
}

// Resolve looks up address, which must already be canonical.
// Only backend faults produce an error; an unknown address is OutcomeUnknown.
func (r *Resolver) Resolve(ctx context.Context, address string) (Resolution, error) {
	staff, err := r.store.FindStaffByAddress(ctx, address)
	switch {
	case err == nil:
		return Resolution{
			Outcome:        OutcomeStaff,
			Role:           staff.Role,
			ApprovalStatus: store.ApprovalApproved,
			SubjectID:      strconv.FormatInt(staff.ID, 10),
		}, nil
	case !errors.Is(err, store.ErrNotFound):
		r.logger.Error("staff lookup failed", "error", err)
		return Resolution{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	reg, err := r.store.FindRegistrationByAddress(ctx, address)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return Resolution{Outcome: OutcomeUnknown}, nil
	case err != nil:
		r.logger.Error("registration lookup failed", "error", err)
		return Resolution{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch reg.ApprovalStatus {
	case store.ApprovalApproved:
		return Resolution{
			Outcome:        OutcomeStudent,
			Role:           RoleStudent,
			ApprovalStatus: store.ApprovalApproved,
			SubjectID:      reg.StudentID,
		}, nil
	case store.ApprovalRejected:
		return Resolution{Outcome: OutcomeRejected, ApprovalStatus: store.ApprovalRejected}, nil
	case store.ApprovalPending:
		return Resolution{
			Outcome:        OutcomePending,
			Role:           RolePending,
			ApprovalStatus: store.ApprovalPending,
		}, nil
	default:
		// Unrecognised statuses grant nothing.
		r.logger.Warn("registration has unknown approval status",
			"address", address, "status", reg.ApprovalStatus)
		return Resolution{Outcome: OutcomeUnknown}, nil
	}
}
