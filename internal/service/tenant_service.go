package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/surelog/surelog/internal/domain"
	"github.com/surelog/surelog/internal/repository"
	"github.com/surelog/surelog/pkg/database"
)

// TenantService owns tenant records, membership edges, and the permission
// tables. Membership writes run in a transaction so the edge and the
// tenant's user_count never diverge on a partial write.
type TenantService struct {
	db     *sql.DB
	repos  repository.Manager
	logger *slog.Logger
}

// NewTenantService creates a new tenant service
func NewTenantService(db *sql.DB, repos repository.Manager, logger *slog.Logger) *TenantService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TenantService{db: db, repos: repos, logger: logger}
}

// Create registers a tenant under its externally assigned ID
func (s *TenantService) Create(ctx context.Context, id int64, name string) (*domain.Tenant, error) {
	if id <= 0 {
		return nil, fmt.Errorf("tenant id must be positive: %w", domain.ErrValidation)
	}
	if name == "" {
		return nil, fmt.Errorf("tenant name is required: %w", domain.ErrValidation)
	}

	tenant := &domain.Tenant{ID: id, Name: name}
	if err := s.repos.Tenants(s.db).Create(ctx, tenant); err != nil {
		return nil, err
	}

	s.logger.Info("tenant created", slog.Int64("tenant_id", id), slog.String("name", name))
	return tenant, nil
}

// Get returns one tenant
func (s *TenantService) Get(ctx context.Context, id int64) (*domain.Tenant, error) {
	return s.repos.Tenants(s.db).GetByID(ctx, id)
}

// List returns all tenants
func (s *TenantService) List(ctx context.Context) ([]*domain.Tenant, error) {
	return s.repos.Tenants(s.db).List(ctx)
}

// AddMember links an existing user to a tenant with a role
func (s *TenantService) AddMember(ctx context.Context, tenantID, userID int64, roleName string) error {
	if roleName == "" {
		return fmt.Errorf("role name is required: %w", domain.ErrValidation)
	}
	return database.WithTx(ctx, s.db, nil, func(ctx context.Context, tx database.DBTX) error {
		return s.repos.Memberships(tx).AddMember(ctx, tenantID, userID, roleName)
	})
}

// RemoveMember deletes a membership edge
func (s *TenantService) RemoveMember(ctx context.Context, tenantID, userID int64) error {
	return database.WithTx(ctx, s.db, nil, func(ctx context.Context, tx database.DBTX) error {
		return s.repos.Memberships(tx).RemoveMember(ctx, tenantID, userID)
	})
}

// SetRolePermission upserts a tenant-scoped permission row
func (s *TenantService) SetRolePermission(ctx context.Context, perm *domain.TenantRolePermission) error {
	if perm.RoleName == "" {
		return fmt.Errorf("role name is required: %w", domain.ErrValidation)
	}
	if err := s.repos.Permissions(s.db).UpsertTenantRolePermission(ctx, perm); err != nil {
		return err
	}
	s.logger.Info("tenant role permission set",
		slog.Int64("tenant_id", perm.TenantID),
		slog.String("role", perm.RoleName),
		slog.Bool("full_access", perm.HasFullAccess),
	)
	return nil
}

// SetMasterPermission upserts a master-scoped permission row
func (s *TenantService) SetMasterPermission(ctx context.Context, perm *domain.MasterRolePermission) error {
	if perm.RoleName == "" {
		return fmt.Errorf("role name is required: %w", domain.ErrValidation)
	}
	if err := s.repos.Permissions(s.db).UpsertMasterRolePermission(ctx, perm); err != nil {
		return err
	}
	s.logger.Info("master role permission set",
		slog.Int64("master_id", perm.MasterID),
		slog.Int64("tenant_id", perm.TenantID),
		slog.String("role", perm.RoleName),
	)
	return nil
}

// BindMaster attaches a master identity to a user
func (s *TenantService) BindMaster(ctx context.Context, masterID, userID int64, roleName string) error {
	if roleName == "" {
		return fmt.Errorf("role name is required: %w", domain.ErrValidation)
	}
	return s.repos.Masters(s.db).Bind(ctx, masterID, userID, roleName)
}
