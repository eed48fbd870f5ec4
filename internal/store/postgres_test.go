// ABOUTME: Integration tests for the Postgres store
// ABOUTME: Skipped unless ONEBLOCK_TEST_POSTGRES_DSN points at a disposable database

package store

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("ONEBLOCK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ONEBLOCK_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}

	_, err = s.pool.Exec(ctx, `TRUNCATE registrations, staff, audit_log`)
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestPostgresStore_RegistrationFlow(t *testing.T) {
	s := setupPostgresStore(t)
	ctx := context.Background()

	reg := newTestRegistration(1)
	require.NoError(t, s.CreateRegistration(ctx, reg, DefaultStudentIDPolicy))
	assert.Equal(t, "1800", reg.StudentID)

	assert.ErrorIs(t, s.CreateRegistration(ctx, newTestRegistration(1), DefaultStudentIDPolicy), ErrDuplicateRegistration)

	require.NoError(t, s.SetApprovalStatus(ctx, reg.Address, ApprovalPending, ApprovalApproved))
	assert.ErrorIs(t, s.SetApprovalStatus(ctx, reg.Address, ApprovalPending, ApprovalRejected), ErrStatusConflict)
	assert.ErrorIs(t, s.SetApprovalStatus(ctx, testAddress(2), ApprovalPending, ApprovalApproved), ErrNotFound)

	got, err := s.FindRegistrationByAddress(ctx, reg.Address)
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, got.ApprovalStatus)
	assert.Equal(t, "Shanghai", got.Details.City)
}

func TestPostgresStore_CreateRegistration_CanceledContext(t *testing.T) {
	s := setupPostgresStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, s.CreateRegistration(ctx, newTestRegistration(1), DefaultStudentIDPolicy))

	regs, err := s.ListRegistrations(context.Background(), RegistrationFilter{})
	require.NoError(t, err)
	assert.Empty(t, regs)

	reg := newTestRegistration(1)
	require.NoError(t, s.CreateRegistration(context.Background(), reg, DefaultStudentIDPolicy))
	assert.Equal(t, "1800", reg.StudentID)
}

func TestPostgresStore_ListRegistrations_NumericOrder(t *testing.T) {
	s := setupPostgresStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRegistration(ctx, newTestRegistration(1), DefaultStudentIDPolicy))
	require.NoError(t, s.CreateRegistration(ctx, newTestRegistration(2), StudentIDPolicy{Baseline: 9999, Width: 4}))

	regs, err := s.ListRegistrations(ctx, RegistrationFilter{})
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "1800", regs[0].StudentID)
	assert.Equal(t, "10000", regs[1].StudentID)
}

func TestPostgresStore_ConcurrentAllocation(t *testing.T) {
	s := setupPostgresStore(t)
	ctx := context.Background()

	const n = 20
	ids := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg := newTestRegistration(i)
			errs[i] = s.CreateRegistration(ctx, reg, DefaultStudentIDPolicy)
			ids[i] = reg.StudentID
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	sort.Strings(ids)
	for i, id := range ids {
		assert.Equal(t, fmt.Sprintf("%d", 1800+i), id)
	}
}

func TestPostgresStore_StaffAndAudit(t *testing.T) {
	s := setupPostgresStore(t)
	ctx := context.Background()

	staff := &StaffRecord{Address: testAddress(5), Role: StaffRoleAdmin}
	require.NoError(t, s.CreateStaff(ctx, staff))
	assert.NotZero(t, staff.ID)
	assert.ErrorIs(t, s.CreateStaff(ctx, &StaffRecord{Address: testAddress(5), Role: StaffRoleTeacher}), ErrDuplicateStaff)

	got, err := s.FindStaffByAddress(ctx, testAddress(5))
	require.NoError(t, err)
	assert.Equal(t, staff.ID, got.ID)

	require.NoError(t, s.AppendAuditLog(ctx, &AuditEntry{
		Actor: "op", Action: AuditCreateStaff, TargetType: "staff", TargetID: testAddress(5),
	}))
	entries, err := s.ListAuditLog(ctx, AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
