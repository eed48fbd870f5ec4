// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject backend failures

package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	staff         map[string]*StaffRecord  // keyed by wallet address
	registrations map[string]*Registration // keyed by wallet address
	audit         []AuditEntry
	nextStaffID   int64

	// Err, when set, is returned by every method to simulate an unavailable backend.
	Err error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		staff:         make(map[string]*StaffRecord),
		registrations: make(map[string]*Registration),
	}
}

// SetErr makes every subsequent call fail with err (nil restores normal behaviour).
func (m *MockStore) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// FindStaffByAddress retrieves a staff record by wallet address.
func (m *MockStore) FindStaffByAddress(ctx context.Context, address string) (*StaffRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	s, ok := m.staff[address]
	if !ok {
		return nil, ErrNotFound
	}
	result := *s
	return &result, nil
}

// FindRegistrationByAddress retrieves a registration by wallet address.
func (m *MockStore) FindRegistrationByAddress(ctx context.Context, address string) (*Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	r, ok := m.registrations[address]
	if !ok {
		return nil, ErrNotFound
	}
	result := *r
	return &result, nil
}

// CreateRegistration allocates the next student id and stores reg as pending.
func (m *MockStore) CreateRegistration(ctx context.Context, reg *Registration, policy StudentIDPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if _, exists := m.registrations[reg.Address]; exists {
		return ErrDuplicateRegistration
	}

	var current int64
	found := false
	for _, r := range m.registrations {
		n, err := strconv.ParseInt(r.StudentID, 10, 64)
		if err != nil {
			continue
		}
		if !found || n > current {
			current = n
			found = true
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	reg.StudentID = policy.Next(current, found)
	reg.ApprovalStatus = ApprovalPending
	reg.CreatedAt = now
	reg.UpdatedAt = now

	stored := *reg
	m.registrations[reg.Address] = &stored
	return nil
}

// PutRegistration stores reg as-is, bypassing allocation. Test seeding only.
func (m *MockStore) PutRegistration(reg *Registration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *reg
	m.registrations[reg.Address] = &stored
}

// ListRegistrations returns registrations ordered by student id.
func (m *MockStore) ListRegistrations(ctx context.Context, filter RegistrationFilter) ([]*Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	regs := []*Registration{}
	for _, r := range m.registrations {
		if filter.Status != nil && r.ApprovalStatus != *filter.Status {
			continue
		}
		result := *r
		regs = append(regs, &result)
	}

	sort.Slice(regs, func(i, j int) bool {
		return regs[i].StudentID < regs[j].StudentID
	})

	if limit := normalizeLimit(filter.Limit); len(regs) > limit {
		regs = regs[:limit]
	}
	return regs, nil
}

// SetApprovalStatus moves a registration from one status to another.
func (m *MockStore) SetApprovalStatus(ctx context.Context, address string, from, to ApprovalStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	r, ok := m.registrations[address]
	if !ok {
		return ErrNotFound
	}
	if r.ApprovalStatus != from {
		return ErrStatusConflict
	}
	r.ApprovalStatus = to
	r.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	return nil
}

// CreateStaff stores a new staff record and assigns its ID.
func (m *MockStore) CreateStaff(ctx context.Context, staff *StaffRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if _, exists := m.staff[staff.Address]; exists {
		return ErrDuplicateStaff
	}

	m.nextStaffID++
	staff.ID = m.nextStaffID
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	stored := *staff
	m.staff[staff.Address] = &stored
	return nil
}

// ListStaff returns all staff records ordered by ID.
func (m *MockStore) ListStaff(ctx context.Context) ([]*StaffRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	staff := []*StaffRecord{}
	for _, s := range m.staff {
		result := *s
		staff = append(staff, &result)
	}
	sort.Slice(staff, func(i, j int) bool {
		return staff[i].ID < staff[j].ID
	})
	return staff, nil
}

// AppendAuditLog appends an entry to the in-memory audit log.
func (m *MockStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if _, err := prepareAuditEntry(e); err != nil {
		return err
	}
	m.audit = append(m.audit, *e)
	return nil
}

// ListAuditLog returns audit entries matching the filter, newest first.
func (m *MockStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	entries := []AuditEntry{}
	for _, e := range m.audit {
		if f.Since != nil && e.Timestamp.Before(*f.Since) {
			continue
		}
		if f.Actor != nil && e.Actor != *f.Actor {
			continue
		}
		if f.Action != nil && e.Action != *f.Action {
			continue
		}
		if f.TargetID != nil && e.TargetID != *f.TargetID {
			continue
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if limit := normalizeLimit(f.Limit); len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Ping reports the injected error, if any.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Err
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

// Ensure MockStore implements Store
var _ Store = (*MockStore)(nil)
