package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/surelog/surelog/internal/domain"
	"github.com/surelog/surelog/internal/security/audit"
	"github.com/surelog/surelog/internal/security/middleware"
	"github.com/surelog/surelog/internal/service"
)

// RolePermissionRequest is the capability grant payload for a tenant role
type RolePermissionRequest struct {
	HasFullAccess bool `json:"hasFullAccess"`
	CanAddUsers   bool `json:"canAddUsers"`
	CanViewUsers  bool `json:"canViewUsers"`
}

// MasterPermissionRequest grants a master role capabilities over a tenant.
// Master grants carry no view-users flag.
type MasterPermissionRequest struct {
	RoleName      string `json:"roleName"`
	TenantID      int64  `json:"tenantId"`
	HasFullAccess bool   `json:"hasFullAccess"`
	CanAddUsers   bool   `json:"canAddUsers"`
}

// BindMasterRequest attaches a user to a master under a role
type BindMasterRequest struct {
	UserID   int64  `json:"userId"`
	RoleName string `json:"roleName"`
}

// PermissionHandler manages role-capability grants
type PermissionHandler struct {
	tenants *service.TenantService
	authz   *service.AuthzService
	auditor *audit.Logger
	logger  *slog.Logger
}

// NewPermissionHandler creates a new permission handler
func NewPermissionHandler(tenants *service.TenantService, authz *service.AuthzService, auditor *audit.Logger, logger *slog.Logger) *PermissionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionHandler{tenants: tenants, authz: authz, auditor: auditor, logger: logger}
}

// SetRolePermission handles PUT /api/tenants/{id}/permissions/{role}.
// Changing a role's capabilities requires full access on that tenant.
func (h *PermissionHandler) SetRolePermission(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	tenantID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}
	roleName := r.PathValue("role")
	if roleName == "" {
		writeError(w, http.StatusBadRequest, "role name required")
		return
	}

	if err := h.authz.Authorize(r.Context(), principal.UserID, tenantID, domain.CapFullAccess); err != nil {
		writeError(w, statusForError(err), "permission denied")
		return
	}

	var req RolePermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	perm := &domain.TenantRolePermission{
		TenantID: tenantID,
		RoleName: roleName,
		CapabilitySet: domain.CapabilitySet{
			HasFullAccess: req.HasFullAccess,
			CanAddUsers:   req.CanAddUsers,
			CanViewUsers:  req.CanViewUsers,
		},
	}
	if err := h.tenants.SetRolePermission(r.Context(), perm); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	h.auditor.LogPermissionChange(r.Context(), principal.UserID, "tenant_role", fmt.Sprintf("%d/%s", tenantID, roleName))
	writeJSON(w, http.StatusOK, map[string]any{
		"tenantId":      tenantID,
		"roleName":      roleName,
		"hasFullAccess": req.HasFullAccess,
		"canAddUsers":   req.CanAddUsers,
		"canViewUsers":  req.CanViewUsers,
	})
}

// SetMasterPermission handles PUT /api/masters/{id}/permissions. The caller
// must hold full access on the tenant the grant targets.
func (h *PermissionHandler) SetMasterPermission(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	masterID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid master id")
		return
	}

	var req MasterPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.RoleName == "" {
		writeError(w, http.StatusBadRequest, "role name required")
		return
	}

	if err := h.authz.Authorize(r.Context(), principal.UserID, req.TenantID, domain.CapFullAccess); err != nil {
		writeError(w, statusForError(err), "permission denied")
		return
	}

	perm := &domain.MasterRolePermission{
		MasterID:      masterID,
		RoleName:      req.RoleName,
		TenantID:      req.TenantID,
		HasFullAccess: req.HasFullAccess,
		CanAddUsers:   req.CanAddUsers,
	}
	if err := h.tenants.SetMasterPermission(r.Context(), perm); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	h.auditor.LogPermissionChange(r.Context(), principal.UserID, "master_role", fmt.Sprintf("%d/%d/%s", masterID, req.TenantID, req.RoleName))
	writeJSON(w, http.StatusOK, map[string]any{
		"masterId":      masterID,
		"roleName":      req.RoleName,
		"tenantId":      req.TenantID,
		"hasFullAccess": req.HasFullAccess,
		"canAddUsers":   req.CanAddUsers,
	})
}

// BindMaster handles POST /api/masters/{id}/bindings. Only existing masters
// may mint new master bindings.
func (h *PermissionHandler) BindMaster(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	masterID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid master id")
		return
	}

	isMaster, err := h.authz.IsMaster(r.Context(), principal.UserID)
	if err != nil {
		h.logger.Error("failed to check master binding", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to bind master")
		return
	}
	if !isMaster {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}

	var req BindMasterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.tenants.BindMaster(r.Context(), masterID, req.UserID, req.RoleName); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"masterId": masterID,
		"userId":   req.UserID,
		"roleName": req.RoleName,
	})
}
