package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/surelog/surelog/internal/domain"
	"github.com/surelog/surelog/pkg/database"
)

// PostgresMembershipRepository implements domain.MembershipRepository
type PostgresMembershipRepository struct {
	db     database.DBTX
	logger *slog.Logger
}

// NewPostgresMembershipRepository creates a new membership repository
func NewPostgresMembershipRepository(db database.DBTX, logger *slog.Logger) *PostgresMembershipRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresMembershipRepository{db: db, logger: logger}
}

// AddMember writes the membership edge and bumps the tenant's user_count.
// Two statements touch two tables, so callers run this inside WithTx.
func (r *PostgresMembershipRepository) AddMember(ctx context.Context, tenantID, userID int64, roleName string) error {
	query := `
		INSERT INTO tenant_users (tenant_id, user_id, role_name)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, tenantID, userID, roleName); err != nil {
		r.logger.Error("failed to add member",
			slog.Int64("tenant_id", tenantID),
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to add member: %w", mapConstraintError(err))
	}

	bump := `UPDATE tenants SET user_count = user_count + 1, updated_at = now() WHERE tenant_id = $1`
	if _, err := r.db.ExecContext(ctx, bump, tenantID); err != nil {
		return fmt.Errorf("failed to update tenant user count: %w", err)
	}

	return nil
}

// RemoveMember deletes the edge and decrements the tenant's user_count.
// Callers run this inside WithTx.
func (r *PostgresMembershipRepository) RemoveMember(ctx context.Context, tenantID, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM tenant_users WHERE tenant_id = $1 AND user_id = $2`,
		tenantID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("membership: %w", domain.ErrNotAMember)
	}

	drop := `UPDATE tenants SET user_count = GREATEST(user_count - 1, 0), updated_at = now() WHERE tenant_id = $1`
	if _, err := r.db.ExecContext(ctx, drop, tenantID); err != nil {
		return fmt.Errorf("failed to update tenant user count: %w", err)
	}

	return nil
}

// RoleOf returns the single role a user holds in a tenant
func (r *PostgresMembershipRepository) RoleOf(ctx context.Context, userID, tenantID int64) (string, error) {
	var role string
	query := `
		SELECT role_name FROM tenant_users
		WHERE user_id = $1 AND tenant_id = $2
	`
	err := r.db.QueryRowContext(ctx, query, userID, tenantID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrNotAMember
		}
		return "", fmt.Errorf("failed to resolve role: %w", err)
	}
	return role, nil
}

// MembersOf returns the membership edges of one tenant
func (r *PostgresMembershipRepository) MembersOf(ctx context.Context, tenantID int64) ([]*domain.Membership, error) {
	query := `
		SELECT tenant_id, user_id, role_name FROM tenant_users
		WHERE tenant_id = $1
		ORDER BY user_id
	`
	return r.queryEdges(ctx, query, tenantID)
}

// TenantsOf returns the membership edges of one user
func (r *PostgresMembershipRepository) TenantsOf(ctx context.Context, userID int64) ([]*domain.Membership, error) {
	query := `
		SELECT tenant_id, user_id, role_name FROM tenant_users
		WHERE user_id = $1
		ORDER BY tenant_id
	`
	return r.queryEdges(ctx, query, userID)
}

func (r *PostgresMembershipRepository) queryEdges(ctx context.Context, query string, arg any) ([]*domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var out []*domain.Membership
	for rows.Next() {
		m := &domain.Membership{}
		if err := rows.Scan(&m.TenantID, &m.UserID, &m.RoleName); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// mapConstraintError translates Postgres constraint violations into domain
// sentinels (23505 unique_violation, 23503 foreign_key_violation).
func mapConstraintError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return domain.ErrDuplicate
		case "23503":
			return domain.ErrNotFound
		}
	}
	return err
}
