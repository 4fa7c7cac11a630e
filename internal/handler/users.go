package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/surelog/surelog/internal/domain"
	"github.com/surelog/surelog/internal/security/audit"
	"github.com/surelog/surelog/internal/security/middleware"
	"github.com/surelog/surelog/internal/service"
)

// UserResponse is the API view of a user; the password hash never leaves
// the server.
type UserResponse struct {
	UserID     int64     `json:"userId"`
	FirstName  string    `json:"firstName"`
	MiddleName string    `json:"middleName,omitempty"`
	LastName   string    `json:"lastName"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		UserID:     u.ID,
		FirstName:  u.FirstName,
		MiddleName: u.MiddleName,
		LastName:   u.LastName,
		Email:      u.Email,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// CreateUserRequest enrolls a new user into a tenant
type CreateUserRequest struct {
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	RoleName   string `json:"roleName"`
}

// UserHandler serves the tenant user listing and enrollment endpoints
type UserHandler struct {
	users    *service.UserService
	authz    *service.AuthzService
	auditLog *audit.Logger
	logger   *slog.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *service.UserService, authz *service.AuthzService, auditLog *audit.Logger, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{users: users, authz: authz, auditLog: auditLog, logger: logger}
}

// List handles GET /api/tenants/{id}/users, gated on the view-users
// capability. The check runs against the current role and permission rows
// on every call.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	tenantID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	if err := h.authz.Authorize(r.Context(), principal.UserID, tenantID, domain.CapViewUsers); err != nil {
		h.auditLog.LogDenied(r.Context(), principal.UserID, "view users")
		writeError(w, statusForError(err), "permission denied")
		return
	}

	list, err := h.users.ListByTenant(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("failed to list users", slog.String("error", err.Error()))
		writeError(w, statusForError(err), "failed to list users")
		return
	}

	out := make([]UserResponse, 0, len(list))
	for _, u := range list {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

// Create handles POST /api/tenants/{id}/users, gated on the add-users
// capability. User and membership edge are written in one transaction.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	tenantID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	if err := h.authz.Authorize(r.Context(), principal.UserID, tenantID, domain.CapAddUsers); err != nil {
		h.auditLog.LogDenied(r.Context(), principal.UserID, "add users")
		writeError(w, statusForError(err), "permission denied")
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.users.Enroll(r.Context(), tenantID, service.CreateUserInput{
		FirstName:  req.FirstName,
		MiddleName: req.MiddleName,
		LastName:   req.LastName,
		Email:      req.Email,
		Password:   req.Password,
	}, req.RoleName)
	if err != nil {
		h.logger.Info("enrollment failed",
			slog.Int64("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
		writeError(w, statusForError(err), err.Error())
		return
	}

	h.auditLog.LogUserCreated(r.Context(), principal.UserID, fmt.Sprintf("%d", user.ID))
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Me handles GET /api/me, returning the caller's profile
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	user, err := h.users.GetByID(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, statusForError(err), "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
