package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/surelog/surelog/internal/domain"
	"github.com/surelog/surelog/internal/security/middleware"
	"github.com/surelog/surelog/internal/service"
)

// TenantResponse is the API view of a tenant
type TenantResponse struct {
	TenantID  int64     `json:"tenantId"`
	Name      string    `json:"name"`
	UserCount int       `json:"userCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toTenantResponse(t *domain.Tenant) TenantResponse {
	return TenantResponse{
		TenantID:  t.ID,
		Name:      t.Name,
		UserCount: t.UserCount,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// CreateTenantRequest registers a tenant under an externally assigned ID
type CreateTenantRequest struct {
	TenantID int64  `json:"tenantId"`
	Name     string `json:"name"`
}

// MembershipResponse lists a membership edge
type MembershipResponse struct {
	TenantID int64  `json:"tenantId"`
	UserID   int64  `json:"userId"`
	RoleName string `json:"roleName"`
}

// TenantHandler serves tenant CRUD and membership queries
type TenantHandler struct {
	tenants *service.TenantService
	authz   *service.AuthzService
	logger  *slog.Logger
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(tenants *service.TenantService, authz *service.AuthzService, logger *slog.Logger) *TenantHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TenantHandler{tenants: tenants, authz: authz, logger: logger}
}

// Create handles POST /api/tenants. Tenant registration is a master-level
// operation: only callers holding a master binding may create tenants.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	isMaster, err := h.authz.IsMaster(r.Context(), principal.UserID)
	if err != nil {
		h.logger.Error("failed to check master binding", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create tenant")
		return
	}
	if !isMaster {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}

	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	tenant, err := h.tenants.Create(r.Context(), req.TenantID, req.Name)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toTenantResponse(tenant))
}

// Get handles GET /api/tenants/{id}. Visible to members of the tenant and
// to masters.
func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	tenantID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	if _, err := h.authz.ResolveRole(r.Context(), principal.UserID, tenantID); err != nil {
		if !errors.Is(err, domain.ErrNotAMember) {
			writeError(w, http.StatusInternalServerError, "failed to load tenant")
			return
		}
		isMaster, merr := h.authz.IsMaster(r.Context(), principal.UserID)
		if merr != nil || !isMaster {
			writeError(w, http.StatusForbidden, "permission denied")
			return
		}
	}

	tenant, err := h.tenants.Get(r.Context(), tenantID)
	if err != nil {
		writeError(w, statusForError(err), "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, toTenantResponse(tenant))
}

// MyTenants handles GET /api/me/tenants, the tenantsOf query for the caller
func (h *TenantHandler) MyTenants(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	edges, err := h.authz.TenantsOf(r.Context(), principal.UserID)
	if err != nil {
		h.logger.Error("failed to list memberships", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list tenants")
		return
	}

	out := make([]MembershipResponse, 0, len(edges))
	for _, e := range edges {
		out = append(out, MembershipResponse{TenantID: e.TenantID, UserID: e.UserID, RoleName: e.RoleName})
	}
	writeJSON(w, http.StatusOK, out)
}

// AddMemberRequest links an existing user to a tenant
type AddMemberRequest struct {
	UserID   int64  `json:"userId"`
	RoleName string `json:"roleName"`
}

// AddMember handles POST /api/tenants/{id}/members, gated on add-users
func (h *TenantHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	tenantID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	if err := h.authz.Authorize(r.Context(), principal.UserID, tenantID, domain.CapAddUsers); err != nil {
		writeError(w, statusForError(err), "permission denied")
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.tenants.AddMember(r.Context(), tenantID, req.UserID, req.RoleName); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, MembershipResponse{TenantID: tenantID, UserID: req.UserID, RoleName: req.RoleName})
}
