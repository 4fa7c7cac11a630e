package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/surelog/surelog/internal/domain"
	"github.com/surelog/surelog/internal/observability/metrics"
	"github.com/surelog/surelog/internal/security/audit"
	"github.com/surelog/surelog/internal/security/middleware"
	"github.com/surelog/surelog/internal/security/ratelimit"
	"github.com/surelog/surelog/internal/service"
	"github.com/surelog/surelog/internal/session"
)

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginStatusResponse is the contract the sign-in page branches on: the
// status field is either "success" or "invalidCredentials". Any other shape
// is treated by the client as an unhandled failure.
type LoginStatusResponse struct {
	Status string `json:"status"`
}

// LoginHandler exchanges credentials for a browser session cookie
type LoginHandler struct {
	authService  *service.AuthService
	sessions     *session.Store
	limiter      *ratelimit.Limiter
	auditLog     *audit.Logger
	logger       *slog.Logger
	loginLimit   int
	loginWindow  time.Duration
	sessionTTL   time.Duration
	secureCookie bool
}

// NewLoginHandler creates a new login handler
func NewLoginHandler(
	authService *service.AuthService,
	sessions *session.Store,
	limiter *ratelimit.Limiter,
	auditLog *audit.Logger,
	logger *slog.Logger,
	loginLimit int,
	loginWindow time.Duration,
	sessionTTL time.Duration,
	secureCookie bool,
) *LoginHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginHandler{
		authService:  authService,
		sessions:     sessions,
		limiter:      limiter,
		auditLog:     auditLog,
		logger:       logger,
		loginLimit:   loginLimit,
		loginWindow:  loginWindow,
		sessionTTL:   sessionTTL,
		secureCookie: secureCookie,
	}
}

// ServeHTTP handles POST /api/login
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode login request", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	// tight budget on credential guessing, keyed by client IP
	if !h.limiter.AllowStrict(middleware.ClientIP(r), h.loginLimit, h.loginWindow) {
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	user, err := h.authService.VerifyCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		metrics.ObserveLogin("rejected")
		h.auditLog.LogLogin(r.Context(), 0, "rejected")
		if errors.Is(err, domain.ErrInvalidCredentials) {
			// single message for unknown email and wrong password
			writeJSON(w, http.StatusUnauthorized, LoginStatusResponse{Status: "invalidCredentials"})
			return
		}
		h.logger.Error("login failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	sess, err := h.sessions.Create(r.Context(), user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to create session", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	http.SetCookie(w, h.sessionCookie(sess.ID, int(h.sessionTTL.Seconds())))

	metrics.ObserveLogin("success")
	h.auditLog.LogLogin(r.Context(), user.ID, "success")
	h.logger.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)

	writeJSON(w, http.StatusOK, LoginStatusResponse{Status: "success"})
}

func (h *LoginHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}
