package repository

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/surelog/surelog/internal/domain"
)

func newPermissionRepoWithMock(t *testing.T) (*PostgresPermissionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresPermissionRepository(db, nil), mock
}

func TestGetTenantRolePermission(t *testing.T) {
	repo, mock := newPermissionRepoWithMock(t)

	rows := sqlmock.NewRows([]string{"has_full_access", "can_add_users", "can_view_users"}).
		AddRow(false, true, true)
	mock.ExpectQuery(`SELECT has_full_access, can_add_users, can_view_users`).
		WithArgs(int64(1), "manager").
		WillReturnRows(rows)

	p, err := repo.GetTenantRolePermission(context.Background(), 1, "manager")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if p.HasFullAccess || !p.CanAddUsers || !p.CanViewUsers {
		t.Fatalf("unexpected capability set: %+v", p.CapabilitySet)
	}
}

func TestGetTenantRolePermissionMissingRow(t *testing.T) {
	repo, mock := newPermissionRepoWithMock(t)

	mock.ExpectQuery(`SELECT has_full_access, can_add_users, can_view_users`).
		WithArgs(int64(1), "ghost").
		WillReturnRows(sqlmock.NewRows([]string{"has_full_access", "can_add_users", "can_view_users"}))

	_, err := repo.GetTenantRolePermission(context.Background(), 1, "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing row, got %v", err)
	}
}

func TestUpsertTenantRolePermission(t *testing.T) {
	repo, mock := newPermissionRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO tenant_role_permissions`).
		WithArgs(int64(1), "manager", true, false, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	perm := &domain.TenantRolePermission{
		TenantID: 1,
		RoleName: "manager",
		CapabilitySet: domain.CapabilitySet{
			HasFullAccess: true,
			CanViewUsers:  true,
		},
	}
	if err := repo.UpsertTenantRolePermission(context.Background(), perm); err != nil {
		t.Fatalf("upsert error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsertTenantRolePermissionUnknownTenant(t *testing.T) {
	repo, mock := newPermissionRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO tenant_role_permissions`).
		WithArgs(int64(404), "manager", false, false, false).
		WillReturnError(&pq.Error{Code: "23503"})

	err := repo.UpsertTenantRolePermission(context.Background(), &domain.TenantRolePermission{
		TenantID: 404,
		RoleName: "manager",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for fk violation, got %v", err)
	}
}

func TestGetMasterRolePermissionMissingRow(t *testing.T) {
	repo, mock := newPermissionRepoWithMock(t)

	mock.ExpectQuery(`SELECT has_full_access, can_add_users`).
		WithArgs(int64(100), "support", int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"has_full_access", "can_add_users"}))

	_, err := repo.GetMasterRolePermission(context.Background(), 100, "support", 5)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing row, got %v", err)
	}
}

func TestUpsertMasterRolePermission(t *testing.T) {
	repo, mock := newPermissionRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO master_role_permissions`).
		WithArgs(int64(100), "support", int64(5), false, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	perm := &domain.MasterRolePermission{
		MasterID:    100,
		RoleName:    "support",
		TenantID:    5,
		CanAddUsers: true,
	}
	if err := repo.UpsertMasterRolePermission(context.Background(), perm); err != nil {
		t.Fatalf("upsert error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
