package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/surelog/surelog/internal/domain"
	"github.com/surelog/surelog/pkg/database"
)

// PostgresMasterRepository implements domain.MasterRepository
type PostgresMasterRepository struct {
	db     database.DBTX
	logger *slog.Logger
}

// NewPostgresMasterRepository creates a new master repository
func NewPostgresMasterRepository(db database.DBTX, logger *slog.Logger) *PostgresMasterRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresMasterRepository{db: db, logger: logger}
}

// Bind attaches a master identity to a user under a role name
func (r *PostgresMasterRepository) Bind(ctx context.Context, masterID, userID int64, roleName string) error {
	query := `
		INSERT INTO masters (master_id, user_id, role_name)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, masterID, userID, roleName); err != nil {
		r.logger.Error("failed to bind master",
			slog.Int64("master_id", masterID),
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to bind master: %w", mapConstraintError(err))
	}
	return nil
}

// MastersOf returns the master bindings of one user
func (r *PostgresMasterRepository) MastersOf(ctx context.Context, userID int64) ([]*domain.Master, error) {
	query := `
		SELECT master_id, user_id, role_name FROM masters
		WHERE user_id = $1
		ORDER BY master_id
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list masters: %w", err)
	}
	defer rows.Close()

	var out []*domain.Master
	for rows.Next() {
		m := &domain.Master{}
		if err := rows.Scan(&m.MasterID, &m.UserID, &m.RoleName); err != nil {
			return nil, fmt.Errorf("failed to scan master: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
