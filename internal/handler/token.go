package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/surelog/surelog/internal/domain"
	"github.com/surelog/surelog/internal/security/middleware"
	"github.com/surelog/surelog/internal/security/ratelimit"
	"github.com/surelog/surelog/internal/service"
)

// TokenHandler issues bearer tokens for API clients (the CLI among them);
// browsers go through /api/login and the session cookie instead.
type TokenHandler struct {
	authService *service.AuthService
	limiter     *ratelimit.Limiter
	logger      *slog.Logger
	loginLimit  int
	loginWindow time.Duration
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(authService *service.AuthService, limiter *ratelimit.Limiter, logger *slog.Logger, loginLimit int, loginWindow time.Duration) *TokenHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenHandler{
		authService: authService,
		limiter:     limiter,
		logger:      logger,
		loginLimit:  loginLimit,
		loginWindow: loginWindow,
	}
}

// ServeHTTP handles POST /api/auth/token
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode token request", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if !h.limiter.AllowStrict(middleware.ClientIP(r), h.loginLimit, h.loginWindow) {
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("token issue failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
