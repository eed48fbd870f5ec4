// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers staff/registration lookups, id allocation, concurrency, and approval transitions

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func testAddress(i int) string {
	return fmt.Sprintf("0x%040x", i)
}

func newTestRegistration(i int) *Registration {
	return &Registration{
		Address: testAddress(i),
		Name:    fmt.Sprintf("Student %d", i),
		Email:   fmt.Sprintf("s%d@example.com", i),
		Details: ProfileDetails{City: "Shanghai", WillingToLead: true},
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file was not created in nested directory")
	assert.NoError(t, store.Ping(context.Background()))
}

func TestSQLiteStore_FindStaffByAddress(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	staff := &StaffRecord{Address: testAddress(1), Role: StaffRoleTeacher, DisplayName: "Ms. Li"}
	require.NoError(t, store.CreateStaff(ctx, staff))
	assert.NotZero(t, staff.ID)

	got, err := store.FindStaffByAddress(ctx, testAddress(1))
	require.NoError(t, err)
	assert.Equal(t, staff.ID, got.ID)
	assert.Equal(t, StaffRoleTeacher, got.Role)
	assert.Equal(t, "Ms. Li", got.DisplayName)

	_, err = store.FindStaffByAddress(ctx, testAddress(2))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_CreateStaff_Duplicate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateStaff(ctx, &StaffRecord{Address: testAddress(1), Role: StaffRoleAdmin}))
	err := store.CreateStaff(ctx, &StaffRecord{Address: testAddress(1), Role: StaffRoleTeacher})
	assert.ErrorIs(t, err, ErrDuplicateStaff)

	staff, err := store.ListStaff(ctx)
	require.NoError(t, err)
	assert.Len(t, staff, 1)
}

func TestSQLiteStore_CreateRegistration_AllocatesSequentialIDs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i, want := range []string{"1800", "1801", "1802"} {
		reg := newTestRegistration(i)
		require.NoError(t, store.CreateRegistration(ctx, reg, DefaultStudentIDPolicy))
		assert.Equal(t, want, reg.StudentID)
		assert.Equal(t, ApprovalPending, reg.ApprovalStatus)
		assert.False(t, reg.CreatedAt.IsZero())
	}

	got, err := store.FindRegistrationByAddress(ctx, testAddress(0))
	require.NoError(t, err)
	assert.Equal(t, "1800", got.StudentID)
	assert.Equal(t, "Student 0", got.Name)
	assert.Equal(t, "Shanghai", got.Details.City)
	assert.True(t, got.Details.WillingToLead)
	assert.Equal(t, ApprovalPending, got.ApprovalStatus)
}

func TestSQLiteStore_CreateRegistration_BaselineIsFloor(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRegistration(ctx, newTestRegistration(1), DefaultStudentIDPolicy))

	reg := newTestRegistration(2)
	require.NoError(t, store.CreateRegistration(ctx, reg, StudentIDPolicy{Baseline: 4999, Width: 4}))
	assert.Equal(t, "5000", reg.StudentID)

	// Lowering the baseline again continues from the stored maximum.
	reg = newTestRegistration(3)
	require.NoError(t, store.CreateRegistration(ctx, reg, DefaultStudentIDPolicy))
	assert.Equal(t, "5001", reg.StudentID)
}

func TestSQLiteStore_CreateRegistration_CanceledContext(t *testing.T) {
	store := setupTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.CreateRegistration(ctx, newTestRegistration(1), DefaultStudentIDPolicy)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	regs, err := store.ListRegistrations(context.Background(), RegistrationFilter{})
	require.NoError(t, err)
	assert.Empty(t, regs)

	_, err = store.FindRegistrationByAddress(context.Background(), testAddress(1))
	assert.ErrorIs(t, err, ErrNotFound)

	reg := newTestRegistration(1)
	require.NoError(t, store.CreateRegistration(context.Background(), reg, DefaultStudentIDPolicy))
	assert.Equal(t, "1800", reg.StudentID)
}

func TestSQLiteStore_CreateRegistration_IgnoresNonNumericIDs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx, `
		INSERT INTO registrations (wallet_address, student_id, student_name, email, created_at, updated_at)
		VALUES (?, 'A9999', 'Legacy', 'legacy@example.com', '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z')
	`, testAddress(99))
	require.NoError(t, err)

	reg := newTestRegistration(1)
	require.NoError(t, store.CreateRegistration(ctx, reg, DefaultStudentIDPolicy))
	assert.Equal(t, "1800", reg.StudentID)
}

func TestSQLiteStore_CreateRegistration_DuplicateAddress(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRegistration(ctx, newTestRegistration(1), DefaultStudentIDPolicy))

	dup := newTestRegistration(1)
	dup.Name = "Someone Else"
	err := store.CreateRegistration(ctx, dup, DefaultStudentIDPolicy)
	assert.ErrorIs(t, err, ErrDuplicateRegistration)

	// The failed attempt must not consume an id.
	next := newTestRegistration(2)
	require.NoError(t, store.CreateRegistration(ctx, next, DefaultStudentIDPolicy))
	assert.Equal(t, "1801", next.StudentID)

	got, err := store.FindRegistrationByAddress(ctx, testAddress(1))
	require.NoError(t, err)
	assert.Equal(t, "Student 1", got.Name)
}

func TestSQLiteStore_CreateRegistration_Concurrent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	const n = 25
	ids := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg := newTestRegistration(i)
			errs[i] = store.CreateRegistration(ctx, reg, DefaultStudentIDPolicy)
			ids[i] = reg.StudentID
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "registration %d", i)
	}

	sort.Strings(ids)
	for i, id := range ids {
		assert.Equal(t, fmt.Sprintf("%d", 1800+i), id)
	}
}

func TestSQLiteStore_CreateRegistration_ConcurrentSameAddress(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	const n = 10
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.CreateRegistration(ctx, newTestRegistration(7), DefaultStudentIDPolicy)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateRegistration)
	}
	assert.Equal(t, 1, succeeded)

	regs, err := store.ListRegistrations(ctx, RegistrationFilter{})
	require.NoError(t, err)
	assert.Len(t, regs, 1)
}

func TestSQLiteStore_SetApprovalStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRegistration(ctx, newTestRegistration(1), DefaultStudentIDPolicy))

	require.NoError(t, store.SetApprovalStatus(ctx, testAddress(1), ApprovalPending, ApprovalApproved))

	got, err := store.FindRegistrationByAddress(ctx, testAddress(1))
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, got.ApprovalStatus)

	err = store.SetApprovalStatus(ctx, testAddress(1), ApprovalPending, ApprovalRejected)
	assert.ErrorIs(t, err, ErrStatusConflict)

	err = store.SetApprovalStatus(ctx, testAddress(2), ApprovalPending, ApprovalApproved)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ListRegistrations_FilterByStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, store.CreateRegistration(ctx, newTestRegistration(i), DefaultStudentIDPolicy))
	}
	require.NoError(t, store.SetApprovalStatus(ctx, testAddress(1), ApprovalPending, ApprovalApproved))
	require.NoError(t, store.SetApprovalStatus(ctx, testAddress(2), ApprovalPending, ApprovalRejected))

	pending := ApprovalPending
	regs, err := store.ListRegistrations(ctx, RegistrationFilter{Status: &pending})
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "1800", regs[0].StudentID)
	assert.Equal(t, "1803", regs[1].StudentID)

	all, err := store.ListRegistrations(ctx, RegistrationFilter{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLiteStore_ListRegistrations_NumericOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRegistration(ctx, newTestRegistration(1), DefaultStudentIDPolicy))
	require.NoError(t, store.CreateRegistration(ctx, newTestRegistration(2), StudentIDPolicy{Baseline: 9999, Width: 4}))
	require.NoError(t, store.CreateRegistration(ctx, newTestRegistration(3), DefaultStudentIDPolicy))

	regs, err := store.ListRegistrations(ctx, RegistrationFilter{})
	require.NoError(t, err)
	require.Len(t, regs, 3)
	assert.Equal(t, "1800", regs[0].StudentID)
	assert.Equal(t, "10000", regs[1].StudentID)
	assert.Equal(t, "10001", regs[2].StudentID)
}

func TestStudentIDPolicy_Next(t *testing.T) {
	tests := []struct {
		name    string
		policy  StudentIDPolicy
		current int64
		found   bool
		want    string
	}{
		{name: "empty store", policy: DefaultStudentIDPolicy, want: "1800"},
		{name: "continues from max", policy: DefaultStudentIDPolicy, current: 1800, found: true, want: "1801"},
		{name: "baseline floor", policy: StudentIDPolicy{Baseline: 2999, Width: 4}, current: 1805, found: true, want: "3000"},
		{name: "zero padded", policy: StudentIDPolicy{Baseline: 0, Width: 4}, want: "0001"},
		{name: "wider than width", policy: DefaultStudentIDPolicy, current: 9999, found: true, want: "10000"},
		{name: "default width", policy: StudentIDPolicy{Baseline: 41}, want: "0042"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Next(tt.current, tt.found))
		})
	}
}
