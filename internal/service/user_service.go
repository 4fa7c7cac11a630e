package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/mail"

	"github.com/surelog/surelog/internal/domain"
	"github.com/surelog/surelog/internal/repository"
	"github.com/surelog/surelog/pkg/database"
	"golang.org/x/crypto/bcrypt"
)

// UserService owns user writes. Password hashing is an explicit transform in
// the write path here, not a storage-layer hook: every call site that can
// mutate a password goes through hashPassword before anything is persisted.
type UserService struct {
	db     *sql.DB
	repos  repository.Manager
	cost   int
	logger *slog.Logger
}

// NewUserService creates a new user service. cost is the bcrypt cost factor;
// zero selects the bcrypt default.
func NewUserService(db *sql.DB, repos repository.Manager, cost int, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &UserService{
		db:     db,
		repos:  repos,
		cost:   cost,
		logger: logger,
	}
}

// CreateUserInput carries profile fields plus an optional plaintext password.
type CreateUserInput struct {
	FirstName  string
	MiddleName string
	LastName   string
	Email      string
	Password   string
}

// UpdateUserInput lists changes; nil fields are left untouched. A non-nil
// Password is re-hashed with a fresh salt even if the plaintext is unchanged.
type UpdateUserInput struct {
	FirstName  *string
	MiddleName *string
	LastName   *string
	Email      *string
	Password   *string
}

// Create validates the input, hashes the password if one was given, and
// writes the user. Timestamps are assigned by the store.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	if err := validateProfile(input.FirstName, input.LastName, input.Email); err != nil {
		return nil, err
	}

	user := &domain.User{
		FirstName:  input.FirstName,
		MiddleName: input.MiddleName,
		LastName:   input.LastName,
		Email:      input.Email,
	}

	if input.Password != "" {
		hash, err := hashPassword(input.Password, s.cost)
		if err != nil {
			s.logger.Error("failed to hash password", slog.String("error", err.Error()))
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.repos.Users(s.db).Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

// Update applies the given changes. The stored hash is only replaced when
// the changes include a password; profile-only updates never touch it.
// updated_at is refreshed on every update regardless of the fields changed.
func (s *UserService) Update(ctx context.Context, userID int64, changes UpdateUserInput) (*domain.User, error) {
	users := s.repos.Users(s.db)

	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if changes.FirstName != nil {
		user.FirstName = *changes.FirstName
	}
	if changes.MiddleName != nil {
		user.MiddleName = *changes.MiddleName
	}
	if changes.LastName != nil {
		user.LastName = *changes.LastName
	}
	if changes.Email != nil {
		user.Email = *changes.Email
	}
	if err := validateProfile(user.FirstName, user.LastName, user.Email); err != nil {
		return nil, err
	}

	if changes.Password != nil {
		hash, err := hashPassword(*changes.Password, s.cost)
		if err != nil {
			s.logger.Error("failed to hash password", slog.String("error", err.Error()))
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetByID returns one user
func (s *UserService) GetByID(ctx context.Context, userID int64) (*domain.User, error) {
	return s.repos.Users(s.db).GetByID(ctx, userID)
}

// ListByTenant lists a tenant's users
func (s *UserService) ListByTenant(ctx context.Context, tenantID int64) ([]*domain.User, error) {
	return s.repos.Users(s.db).ListByTenant(ctx, tenantID)
}

// Enroll creates a user and its membership edge in one transaction, so a
// failed edge write never leaves an orphaned user behind.
func (s *UserService) Enroll(ctx context.Context, tenantID int64, input CreateUserInput, roleName string) (*domain.User, error) {
	if err := validateProfile(input.FirstName, input.LastName, input.Email); err != nil {
		return nil, err
	}
	if roleName == "" {
		return nil, fmt.Errorf("role name is required: %w", domain.ErrValidation)
	}

	user := &domain.User{
		FirstName:  input.FirstName,
		MiddleName: input.MiddleName,
		LastName:   input.LastName,
		Email:      input.Email,
	}
	if input.Password != "" {
		hash, err := hashPassword(input.Password, s.cost)
		if err != nil {
			return nil, fmt.Errorf("failed to enroll user: %w", err)
		}
		user.PasswordHash = hash
	}

	err := database.WithTx(ctx, s.db, nil, func(ctx context.Context, tx database.DBTX) error {
		if err := s.repos.Users(tx).Create(ctx, user); err != nil {
			return err
		}
		return s.repos.Memberships(tx).AddMember(ctx, tenantID, user.ID, roleName)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user enrolled",
		slog.Int64("user_id", user.ID),
		slog.Int64("tenant_id", tenantID),
		slog.String("role", roleName),
	)
	return user, nil
}

// hashPassword runs the plaintext through bcrypt. bcrypt generates a fresh
// salt on every call, so hashing the same plaintext twice yields different
// values.
func hashPassword(plaintext string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func validateProfile(firstName, lastName, email string) error {
	if firstName == "" || lastName == "" {
		return fmt.Errorf("first and last name are required: %w", domain.ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email %q: %w", email, domain.ErrValidation)
	}
	return nil
}
