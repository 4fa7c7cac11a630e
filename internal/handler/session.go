package handler

import (
	"log/slog"
	"net/http"

	"github.com/surelog/surelog/internal/security/audit"
	"github.com/surelog/surelog/internal/security/middleware"
	"github.com/surelog/surelog/internal/session"
)

// SessionStatusResponse answers the "am I already logged in" probe
type SessionStatusResponse struct {
	Status     string `json:"status"`
	IsLoggedIn bool   `json:"isLoggedIn"`
}

// SessionHandler serves the session probe and logout endpoints
type SessionHandler struct {
	sessions     *session.Store
	auditLog     *audit.Logger
	logger       *slog.Logger
	secureCookie bool
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *session.Store, auditLog *audit.Logger, logger *slog.Logger, secureCookie bool) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		sessions:     sessions,
		auditLog:     auditLog,
		logger:       logger,
		secureCookie: secureCookie,
	}
}

// CheckLoggedInStatus handles GET /api/checkLoggedInStatus. A missing or
// expired session, and any session-store failure, all report logged out:
// transport trouble must never unlock the authenticated surface.
func (h *SessionHandler) CheckLoggedInStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	principal := middleware.GetPrincipal(r.Context())
	loggedIn := principal != nil && principal.SessionID != ""

	writeJSON(w, http.StatusOK, SessionStatusResponse{Status: "success", IsLoggedIn: loggedIn})
}

// Logout handles POST /api/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	principal := middleware.GetPrincipal(r.Context())
	if principal != nil && principal.SessionID != "" {
		if err := h.sessions.Delete(r.Context(), principal.SessionID); err != nil {
			h.logger.Error("failed to delete session", slog.String("error", err.Error()))
		}
		h.auditLog.LogLogout(r.Context(), principal.UserID)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, LoginStatusResponse{Status: "success"})
}
