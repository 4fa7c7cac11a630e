package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/pressly/goose/v3"
	"github.com/surelog/surelog/internal/domain"
	"github.com/surelog/surelog/internal/migrations"
	"github.com/surelog/surelog/pkg/database"
)

// Manager mints repositories bound to a handle, which may be the pool or an
// open transaction. Services use it to run multi-table writes under WithTx
// without knowing the concrete repository types.
type Manager interface {
	Users(q database.DBTX) domain.UserRepository
	Tenants(q database.DBTX) domain.TenantRepository
	Memberships(q database.DBTX) domain.MembershipRepository
	Masters(q database.DBTX) domain.MasterRepository
	Permissions(q database.DBTX) domain.PermissionRepository
	RunMigrations(ctx context.Context, db *sql.DB) error
}

// PostgresManager implements Manager for PostgreSQL
type PostgresManager struct {
	logger *slog.Logger
}

// NewPostgresManager creates a repository manager
func NewPostgresManager(logger *slog.Logger) *PostgresManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresManager{logger: logger}
}

func (m *PostgresManager) Users(q database.DBTX) domain.UserRepository {
	return NewPostgresUserRepository(q, m.logger)
}

func (m *PostgresManager) Tenants(q database.DBTX) domain.TenantRepository {
	return NewPostgresTenantRepository(q, m.logger)
}

func (m *PostgresManager) Memberships(q database.DBTX) domain.MembershipRepository {
	return NewPostgresMembershipRepository(q, m.logger)
}

func (m *PostgresManager) Masters(q database.DBTX) domain.MasterRepository {
	return NewPostgresMasterRepository(q, m.logger)
}

func (m *PostgresManager) Permissions(q database.DBTX) domain.PermissionRepository {
	return NewPostgresPermissionRepository(q, m.logger)
}

// RunMigrations applies the embedded schema migrations
func (m *PostgresManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}
