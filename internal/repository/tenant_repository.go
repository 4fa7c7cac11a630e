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

// PostgresTenantRepository implements domain.TenantRepository using PostgreSQL
type PostgresTenantRepository struct {
	db     database.DBTX
	logger *slog.Logger
}

// NewPostgresTenantRepository creates a new tenant repository
func NewPostgresTenantRepository(db database.DBTX, logger *slog.Logger) *PostgresTenantRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTenantRepository{db: db, logger: logger}
}

// Create inserts a tenant. The tenant ID is externally assigned, so the
// caller provides it rather than the store generating one.
func (r *PostgresTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	query := `
		INSERT INTO tenants (tenant_id, name, user_count)
		VALUES ($1, $2, 0)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, tenant.ID, tenant.Name).Scan(
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", mapConstraintError(err))
	}
	tenant.UserCount = 0
	return nil
}

// GetByID retrieves a tenant by ID
func (r *PostgresTenantRepository) GetByID(ctx context.Context, id int64) (*domain.Tenant, error) {
	t := &domain.Tenant{}
	query := `
		SELECT tenant_id, name, user_count, created_at, updated_at
		FROM tenants
		WHERE tenant_id = $1
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.UserCount, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tenant %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

// Update updates an existing tenant's name
func (r *PostgresTenantRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	query := `
		UPDATE tenants
		SET name = $1, updated_at = now()
		WHERE tenant_id = $2
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query, tenant.Name, tenant.ID).Scan(&tenant.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("tenant %d: %w", tenant.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return nil
}

// List returns all tenants
func (r *PostgresTenantRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	query := `
		SELECT tenant_id, name, user_count, created_at, updated_at
		FROM tenants
		ORDER BY tenant_id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var out []*domain.Tenant
	for rows.Next() {
		t := &domain.Tenant{}
		if err := rows.Scan(&t.ID, &t.Name, &t.UserCount, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ReconcileUserCounts repairs user_count drift against the membership table.
// The counter is normally maintained in the transaction that writes the
// edge; this catches anything that slipped past it.
func (r *PostgresTenantRepository) ReconcileUserCounts(ctx context.Context) (int64, error) {
	query := `
		UPDATE tenants t
		SET user_count = c.n, updated_at = now()
		FROM (
			SELECT ts.tenant_id, COUNT(tu.user_id) AS n
			FROM tenants ts
			LEFT JOIN tenant_users tu ON tu.tenant_id = ts.tenant_id
			GROUP BY ts.tenant_id
		) c
		WHERE c.tenant_id = t.tenant_id AND t.user_count <> c.n
	`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile user counts: %w", err)
	}
	repaired, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if repaired > 0 {
		r.logger.Warn("repaired tenant user_count drift", slog.Int64("tenants", repaired))
	}
	return repaired, nil
}
