package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/surelog/surelog/internal/domain"
	"github.com/surelog/surelog/internal/security/auth"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is a real bcrypt hash compared against when the email is
// unknown, so an unknown email costs the same as a wrong password and the
// two cases are indistinguishable from outside.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// AuthService verifies credentials and issues API tokens
type AuthService struct {
	users    domain.UserRepository
	tokens   *auth.TokenManager
	tokenTTL time.Duration
	logger   *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(users domain.UserRepository, tokens *auth.TokenManager, tokenTTL time.Duration, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if tokenTTL <= 0 {
		tokenTTL = 15 * time.Minute
	}
	return &AuthService{
		users:    users,
		tokens:   tokens,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

// LoginResult represents a token response
type LoginResult struct {
	UserID    int64  `json:"userId"`
	Email     string `json:"email"`
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"` // seconds
	TokenType string `json:"token_type"`
}

// VerifyCredentials looks up the user by email and compares the plaintext
// against the stored bcrypt hash. Every failure mode (unknown email, user
// without a password, wrong password) runs a bcrypt compare and returns the
// same ErrInvalidCredentials.
func (s *AuthService) VerifyCredentials(ctx context.Context, email, plaintext string) (*domain.User, error) {
	if email == "" || plaintext == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(plaintext))
			s.logger.Info("login attempt with unknown email")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	stored := user.PasswordHash
	if stored == "" {
		stored = dummyHash
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(plaintext)); err != nil || user.PasswordHash == "" {
		s.logger.Info("login failed", slog.Int64("user_id", user.ID))
		return nil, domain.ErrInvalidCredentials
	}

	return user, nil
}

// Login authenticates a user and returns a bearer token for API clients
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.VerifyCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email, s.tokenTTL)
	if err != nil {
		s.logger.Error("failed to generate token",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, errors.New("failed to generate token")
	}

	s.logger.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &LoginResult{
		UserID:    user.ID,
		Email:     user.Email,
		Token:     token,
		ExpiresIn: int(s.tokenTTL.Seconds()),
		TokenType: "Bearer",
	}, nil
}
