package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/surelog/surelog/internal/domain"
	"github.com/surelog/surelog/pkg/database"
)

// PostgresPermissionRepository implements domain.PermissionRepository over
// the two permission tables. A missing row comes back as ErrNotFound; the
// resolver turns that into an empty capability set.
type PostgresPermissionRepository struct {
	db     database.DBTX
	logger *slog.Logger
}

// NewPostgresPermissionRepository creates a new permission repository
func NewPostgresPermissionRepository(db database.DBTX, logger *slog.Logger) *PostgresPermissionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresPermissionRepository{db: db, logger: logger}
}

// GetTenantRolePermission reads one tenant-scoped permission row
func (r *PostgresPermissionRepository) GetTenantRolePermission(ctx context.Context, tenantID int64, roleName string) (*domain.TenantRolePermission, error) {
	p := &domain.TenantRolePermission{TenantID: tenantID, RoleName: roleName}
	query := `
		SELECT has_full_access, can_add_users, can_view_users
		FROM tenant_role_permissions
		WHERE tenant_id = $1 AND role_name = $2
	`
	err := r.db.QueryRowContext(ctx, query, tenantID, roleName).Scan(
		&p.HasFullAccess, &p.CanAddUsers, &p.CanViewUsers,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tenant role permission: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tenant role permission: %w", err)
	}
	return p, nil
}

// UpsertTenantRolePermission writes a tenant-scoped permission row
func (r *PostgresPermissionRepository) UpsertTenantRolePermission(ctx context.Context, perm *domain.TenantRolePermission) error {
	query := `
		INSERT INTO tenant_role_permissions (tenant_id, role_name, has_full_access, can_add_users, can_view_users)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, role_name)
		DO UPDATE SET has_full_access = $3, can_add_users = $4, can_view_users = $5
	`
	_, err := r.db.ExecContext(ctx, query,
		perm.TenantID, perm.RoleName, perm.HasFullAccess, perm.CanAddUsers, perm.CanViewUsers,
	)
	if err != nil {
		r.logger.Error("failed to upsert tenant role permission",
			slog.Int64("tenant_id", perm.TenantID),
			slog.String("role", perm.RoleName),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to upsert tenant role permission: %w", mapConstraintError(err))
	}
	return nil
}

// GetMasterRolePermission reads one master-scoped permission row
func (r *PostgresPermissionRepository) GetMasterRolePermission(ctx context.Context, masterID int64, roleName string, tenantID int64) (*domain.MasterRolePermission, error) {
	p := &domain.MasterRolePermission{MasterID: masterID, RoleName: roleName, TenantID: tenantID}
	query := `
		SELECT has_full_access, can_add_users
		FROM master_role_permissions
		WHERE master_id = $1 AND role_name = $2 AND tenant_id = $3
	`
	err := r.db.QueryRowContext(ctx, query, masterID, roleName, tenantID).Scan(
		&p.HasFullAccess, &p.CanAddUsers,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("master role permission: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get master role permission: %w", err)
	}
	return p, nil
}

// UpsertMasterRolePermission writes a master-scoped permission row
func (r *PostgresPermissionRepository) UpsertMasterRolePermission(ctx context.Context, perm *domain.MasterRolePermission) error {
	query := `
		INSERT INTO master_role_permissions (master_id, role_name, tenant_id, has_full_access, can_add_users)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (master_id, role_name, tenant_id)
		DO UPDATE SET has_full_access = $4, can_add_users = $5
	`
	_, err := r.db.ExecContext(ctx, query,
		perm.MasterID, perm.RoleName, perm.TenantID, perm.HasFullAccess, perm.CanAddUsers,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert master role permission: %w", mapConstraintError(err))
	}
	return nil
}
