// ABOUTME: Tests for the registration workflow
// ABOUTME: Covers validation, id allocation, conflicts, store faults, and form decoding

package enroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneblock/oneblock-gateway/internal/store"
)

const aliceAddress = "0x00000000000000000000000000000000000abc01"

func aliceProfile() Profile {
	return Profile{Address: aliceAddress, Name: "Alice", Email: "a@x.com"}
}

func TestRegister_FirstRegistrationGetsBaselinePlusOne(t *testing.T) {
	svc := NewService(store.NewMockStore(), store.DefaultStudentIDPolicy, nil)

	reg, err := svc.Register(context.Background(), aliceProfile())
	require.NoError(t, err)
	assert.Equal(t, "1800", reg.StudentID)
	assert.Equal(t, store.ApprovalPending, reg.ApprovalStatus)
	assert.Equal(t, aliceAddress, reg.Address)
}

func TestRegister_CanonicalisesAddress(t *testing.T) {
	s := store.NewMockStore()
	svc := NewService(s, store.DefaultStudentIDPolicy, nil)

	p := aliceProfile()
	p.Address = "0x00000000000000000000000000000000000ABC01"
	_, err := svc.Register(context.Background(), p)
	require.NoError(t, err)

	_, err = s.FindRegistrationByAddress(context.Background(), aliceAddress)
	assert.NoError(t, err)

	// Same wallet spelled differently is still a conflict.
	p.Address = "00000000000000000000000000000000000abc01"
	_, err = svc.Register(context.Background(), p)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Profile)
	}{
		{name: "missing address", mutate: func(p *Profile) { p.Address = "" }},
		{name: "malformed address", mutate: func(p *Profile) { p.Address = "0x1234" }},
		{name: "missing name", mutate: func(p *Profile) { p.Name = "" }},
		{name: "blank name", mutate: func(p *Profile) { p.Name = "   " }},
		{name: "missing email", mutate: func(p *Profile) { p.Email = "" }},
		{name: "malformed email", mutate: func(p *Profile) { p.Email = "not-an-email" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMockStore()
			svc := NewService(s, store.DefaultStudentIDPolicy, nil)

			p := aliceProfile()
			tt.mutate(&p)
			_, err := svc.Register(context.Background(), p)
			assert.ErrorIs(t, err, ErrInvalidProfile)

			regs, err := s.ListRegistrations(context.Background(), store.RegistrationFilter{})
			require.NoError(t, err)
			assert.Empty(t, regs)
		})
	}
}

func TestRegister_ConflictForEveryStatus(t *testing.T) {
	for _, status := range []store.ApprovalStatus{store.ApprovalPending, store.ApprovalApproved, store.ApprovalRejected} {
		t.Run(string(status), func(t *testing.T) {
			s := store.NewMockStore()
			s.PutRegistration(&store.Registration{Address: aliceAddress, StudentID: "1800", ApprovalStatus: status})
			svc := NewService(s, store.DefaultStudentIDPolicy, nil)

			_, err := svc.Register(context.Background(), aliceProfile())
			assert.ErrorIs(t, err, ErrConflict)
		})
	}
}

func TestRegister_StoreUnavailable(t *testing.T) {
	s := store.NewMockStore()
	s.SetErr(errors.New("disk full"))
	svc := NewService(s, store.DefaultStudentIDPolicy, nil)

	_, err := svc.Register(context.Background(), aliceProfile())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestRegister_CanceledLeavesNoRecord(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "enroll.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	svc := NewService(s, store.DefaultStudentIDPolicy, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Register(ctx, aliceProfile())
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = s.FindRegistrationByAddress(context.Background(), aliceAddress)
	assert.ErrorIs(t, err, store.ErrNotFound)

	reg, err := svc.Register(context.Background(), aliceProfile())
	require.NoError(t, err)
	assert.Equal(t, "1800", reg.StudentID)
}

func TestRegister_ConcurrentSQLite(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "enroll.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	svc := NewService(s, store.DefaultStudentIDPolicy, nil)

	const n = 20
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg, err := svc.Register(context.Background(), Profile{
				Address: fmt.Sprintf("0x%040x", i+1),
				Name:    fmt.Sprintf("Student %d", i),
				Email:   fmt.Sprintf("s%d@example.com", i),
			})
			if assert.NoError(t, err) {
				ids[i] = reg.StudentID
			}
		}(i)
	}
	wg.Wait()

	sort.Strings(ids)
	for i, id := range ids {
		assert.Equal(t, fmt.Sprintf("%d", 1800+i), id)
	}
}

func TestProfile_DecodesFormPayload(t *testing.T) {
	payload := `{
		"address": "0x00000000000000000000000000000000000abc01",
		"name": "Alice",
		"email": "a@x.com",
		"wechatId": "alice_wx",
		"status": ["student", "developer"],
		"languages": "Go",
		"participated": "是",
		"hackathon": "愿意",
		"leadership": "否",
		"privateMsg": "是",
		"inviter": "bob"
	}`

	var p Profile
	require.NoError(t, json.Unmarshal([]byte(payload), &p))
	assert.Equal(t, MultiValue("student,developer"), p.Status)
	assert.Equal(t, MultiValue("Go"), p.Languages)

	d := p.details()
	assert.Equal(t, "student,developer", d.Roles)
	assert.True(t, d.HasWeb3Experience)
	assert.True(t, d.WillingToHackathon)
	assert.False(t, d.WillingToLead)
	assert.True(t, d.WantsPrivateService)
	assert.Equal(t, "bob", d.Referrer)
}

func TestMultiValue_Null(t *testing.T) {
	var p Profile
	require.NoError(t, json.Unmarshal([]byte(`{"status": null}`), &p))
	assert.Equal(t, MultiValue(""), p.Status)

	assert.Error(t, json.Unmarshal([]byte(`{"status": 42}`), &p))
}
