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

// PostgresUserRepository implements domain.UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db     database.DBTX
	logger *slog.Logger
}

// NewPostgresUserRepository creates a new user repository. The handle may be
// a pool or an open transaction.
func NewPostgresUserRepository(db database.DBTX, logger *slog.Logger) *PostgresUserRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new user. PasswordHash must already be hashed by the
// caller; this layer never sees plaintext. Timestamps come from the store.
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (first_name, middle_name, last_name, email, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING user_id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		user.FirstName,
		nullableString(user.MiddleName),
		user.LastName,
		user.Email,
		nullableString(user.PasswordHash),
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		r.logger.Error("failed to create user",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create user: %w", mapConstraintError(err))
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `
		SELECT user_id, first_name, middle_name, last_name, email, password_hash, created_at, updated_at
		FROM users
		WHERE user_id = $1
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by email. Email is treated as a natural key by
// convention; the first match wins.
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT user_id, first_name, middle_name, last_name, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1
		ORDER BY user_id
		LIMIT 1
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

// Update writes all mutable fields and refreshes updated_at regardless of
// which fields changed.
func (r *PostgresUserRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET first_name = $1, middle_name = $2, last_name = $3, email = $4, password_hash = $5, updated_at = now()
		WHERE user_id = $6
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		user.FirstName,
		nullableString(user.MiddleName),
		user.LastName,
		user.Email,
		nullableString(user.PasswordHash),
		user.ID,
	).Scan(&user.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %d: %w", user.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	return nil
}

// ListByTenant lists all users that hold a membership edge in a tenant
func (r *PostgresUserRepository) ListByTenant(ctx context.Context, tenantID int64) ([]*domain.User, error) {
	query := `
		SELECT u.user_id, u.first_name, u.middle_name, u.last_name, u.email, u.password_hash, u.created_at, u.updated_at
		FROM users u
		JOIN tenant_users tu ON tu.user_id = u.user_id
		WHERE tu.tenant_id = $1
		ORDER BY u.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		r.logger.Error("failed to list users by tenant",
			slog.Int64("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user := &domain.User{}
		var middle, hash sql.NullString
		err := rows.Scan(
			&user.ID,
			&user.FirstName,
			&middle,
			&user.LastName,
			&user.Email,
			&hash,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.MiddleName = middle.String
		user.PasswordHash = hash.String
		users = append(users, user)
	}

	return users, rows.Err()
}

func (r *PostgresUserRepository) scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	var middle, hash sql.NullString

	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&middle,
		&user.LastName,
		&user.Email,
		&hash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.MiddleName = middle.String
	user.PasswordHash = hash.String
	return user, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
