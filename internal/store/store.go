// ABOUTME: Store interfaces and data types for oneblock-gateway persistence
// ABOUTME: Defines staff, registration, and audit records shared by all backends

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

var (
	// ErrDuplicateRegistration is returned when the wallet address already has a registration
	ErrDuplicateRegistration = errors.New("registration already exists")

	// ErrDuplicateStudentID is returned when an allocated student id is already taken
	ErrDuplicateStudentID = errors.New("student id already allocated")

	// ErrDuplicateStaff is returned when the wallet address already has a staff record
	ErrDuplicateStaff = errors.New("staff record already exists")

	// ErrStatusConflict is returned when a status transition finds an unexpected current status
	ErrStatusConflict = errors.New("approval status conflict")
)

// ApprovalStatus is the lifecycle state of a registration
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Valid reports whether s is one of the known approval states.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// Staff roles that can be provisioned through the admin service.
const (
	StaffRoleAdmin   = "admin"
	StaffRoleTeacher = "teacher"
)

// ValidStaffRoles lists the roles the admin service accepts
var ValidStaffRoles = []string{StaffRoleAdmin, StaffRoleTeacher}

// StaffRecord is an externally provisioned staff member keyed by wallet address
type StaffRecord struct {
	ID          int64
	Address     string
	Role        string
	DisplayName string
	CreatedAt   time.Time
}

// ProfileDetails holds the optional survey answers collected at registration.
// It is persisted as a JSON document next to the indexed columns.
type ProfileDetails struct {
	Gender              string `json:"gender,omitempty"`
	AgeGroup            string `json:"age_group,omitempty"`
	Education           string `json:"education,omitempty"`
	University          string `json:"university,omitempty"`
	Major               string `json:"major,omitempty"`
	City                string `json:"city,omitempty"`
	Roles               string `json:"roles,omitempty"`
	Languages           string `json:"languages,omitempty"`
	Experience          string `json:"experience,omitempty"`
	Source              string `json:"source,omitempty"`
	HasWeb3Experience   bool   `json:"has_web3_experience"`
	StudyTime           string `json:"study_time,omitempty"`
	Interests           string `json:"interests,omitempty"`
	Platforms           string `json:"platforms,omitempty"`
	WillingToHackathon  bool   `json:"willing_to_hackathon"`
	WillingToLead       bool   `json:"willing_to_lead"`
	WantsPrivateService bool   `json:"wants_private_service"`
	Referrer            string `json:"referrer,omitempty"`
}

// Registration is a self-service student registration keyed by wallet address
type Registration struct {
	Address        string
	StudentID      string
	Name           string
	Email          string
	Phone          string
	WechatID       string
	Details        ProfileDetails
	ApprovalStatus ApprovalStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StudentIDPolicy controls how sequential student ids are allocated.
type StudentIDPolicy struct {
	Baseline int64 // the id before the first allocated one
	Width    int   // zero-padded width of the rendered id
}

// DefaultStudentIDPolicy yields 1800, 1801, ... for a fresh store.
var DefaultStudentIDPolicy = StudentIDPolicy{Baseline: 1799, Width: 4}

// Next renders the id following current, where current is the largest
// numeric id already allocated (found=false when none exist). The baseline
// is a floor so raising it never reuses ids.
func (p StudentIDPolicy) Next(current int64, found bool) string {
	next := p.Baseline
	if found && current > next {
		next = current
	}
	next++

	width := p.Width
	if width <= 0 {
		width = DefaultStudentIDPolicy.Width
	}
	return fmt.Sprintf("%0*d", width, next)
}

// RegistrationFilter narrows ListRegistrations results
type RegistrationFilter struct {
	Status *ApprovalStatus
	Limit  int // default 100, max 1000
}

// IdentityStore answers the point lookups used to resolve a wallet identity.
// Both methods return ErrNotFound when no record exists.
type IdentityStore interface {
	FindStaffByAddress(ctx context.Context, address string) (*StaffRecord, error)
	FindRegistrationByAddress(ctx context.Context, address string) (*Registration, error)
}

// RegistrationStore persists new registrations.
type RegistrationStore interface {
	// CreateRegistration allocates the next student id under policy and
	// inserts reg as pending in one all-or-nothing step. On success reg is
	// updated with the allocated id, status, and timestamps.
	CreateRegistration(ctx context.Context, reg *Registration, policy StudentIDPolicy) error
}

// AdminStore holds the mutations performed by the external approval actor.
type AdminStore interface {
	ListRegistrations(ctx context.Context, filter RegistrationFilter) ([]*Registration, error)
	SetApprovalStatus(ctx context.Context, address string, from, to ApprovalStatus) error
	CreateStaff(ctx context.Context, staff *StaffRecord) error
	ListStaff(ctx context.Context) ([]*StaffRecord, error)
	AppendAuditLog(ctx context.Context, e *AuditEntry) error
	ListAuditLog(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// Store is the full persistence surface implemented by every backend
type Store interface {
	IdentityStore
	RegistrationStore
	AdminStore

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}

// normalizeLimit applies default (100) and cap (1000) to list limits.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
