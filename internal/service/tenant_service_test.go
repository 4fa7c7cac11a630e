package service

import (
	"context"
	"errors"
	"testing"

	"github.com/surelog/surelog/internal/domain"
)

func TestCreateTenantValidation(t *testing.T) {
	repos := newFakeManager()
	s := NewTenantService(nil, repos, nil)

	if _, err := s.Create(context.Background(), 0, "Acme"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for zero id, got %v", err)
	}
	if _, err := s.Create(context.Background(), 42, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}
}

func TestCreateTenantKeepsAssignedID(t *testing.T) {
	repos := newFakeManager()
	s := NewTenantService(nil, repos, nil)

	tenant, err := s.Create(context.Background(), 42, "Acme")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if tenant.ID != 42 {
		t.Fatalf("expected assigned id 42, got %d", tenant.ID)
	}
	if tenant.UserCount != 0 {
		t.Fatalf("new tenant must start with zero users, got %d", tenant.UserCount)
	}

	if _, err := s.Create(context.Background(), 42, "Clone"); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestMembershipMaintainsUserCount(t *testing.T) {
	db, mock := newMockDB(t)
	repos := newFakeManager()
	s := NewTenantService(db, repos, nil)
	ctx := context.Background()

	if _, err := s.Create(ctx, 1, "Acme"); err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectCommit()
	if err := s.AddMember(ctx, 1, 10, "member"); err != nil {
		t.Fatalf("add member: %v", err)
	}

	tenant, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get tenant: %v", err)
	}
	if tenant.UserCount != 1 {
		t.Fatalf("expected user_count 1 after add, got %d", tenant.UserCount)
	}

	// Adding the same edge twice is a conflict and leaves the count alone.
	mock.ExpectBegin()
	mock.ExpectRollback()
	if err := s.AddMember(ctx, 1, 10, "member"); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected duplicate edge error, got %v", err)
	}
	tenant, _ = s.Get(ctx, 1)
	if tenant.UserCount != 1 {
		t.Fatalf("duplicate add must not change user_count, got %d", tenant.UserCount)
	}

	mock.ExpectBegin()
	mock.ExpectCommit()
	if err := s.RemoveMember(ctx, 1, 10); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	tenant, _ = s.Get(ctx, 1)
	if tenant.UserCount != 0 {
		t.Fatalf("expected user_count 0 after remove, got %d", tenant.UserCount)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet db expectations: %v", err)
	}
}

func TestSetRolePermissionRequiresRole(t *testing.T) {
	repos := newFakeManager()
	s := NewTenantService(nil, repos, nil)

	err := s.SetRolePermission(context.Background(), &domain.TenantRolePermission{TenantID: 1})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetRolePermissionUpserts(t *testing.T) {
	repos := newFakeManager()
	s := NewTenantService(nil, repos, nil)
	ctx := context.Background()

	perm := &domain.TenantRolePermission{
		TenantID:      1,
		RoleName:      "manager",
		CapabilitySet: domain.CapabilitySet{CanAddUsers: true},
	}
	if err := s.SetRolePermission(ctx, perm); err != nil {
		t.Fatalf("first set: %v", err)
	}

	// Second write replaces the row.
	perm.CanAddUsers = false
	perm.CanViewUsers = true
	if err := s.SetRolePermission(ctx, perm); err != nil {
		t.Fatalf("second set: %v", err)
	}

	stored, err := repos.permissions.GetTenantRolePermission(ctx, 1, "manager")
	if err != nil {
		t.Fatalf("get permission: %v", err)
	}
	if stored.CanAddUsers || !stored.CanViewUsers {
		t.Fatalf("expected upsert to replace flags, got %+v", stored.CapabilitySet)
	}
}
