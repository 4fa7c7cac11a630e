package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/surelog/surelog/internal/domain"
	"github.com/surelog/surelog/internal/observability/metrics"
)

// AuthzService resolves roles to capability sets over the two parallel RBAC
// hierarchies. Both scopes funnel through the same fail-closed logic: a
// missing permission row grants nothing, full access grants everything.
// Decisions are re-resolved on every call; nothing here is cached, since
// role and permission rows change independently of any session.
type AuthzService struct {
	memberships domain.MembershipRepository
	masters     domain.MasterRepository
	permissions domain.PermissionRepository
	logger      *slog.Logger
}

// NewAuthzService creates a new authorization service
func NewAuthzService(
	memberships domain.MembershipRepository,
	masters domain.MasterRepository,
	permissions domain.PermissionRepository,
	logger *slog.Logger,
) *AuthzService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthzService{
		memberships: memberships,
		masters:     masters,
		permissions: permissions,
		logger:      logger,
	}
}

// ResolveRole returns the single role a user holds in a tenant, or
// ErrNotAMember when no membership edge exists.
func (s *AuthzService) ResolveRole(ctx context.Context, userID, tenantID int64) (string, error) {
	return s.memberships.RoleOf(ctx, userID, tenantID)
}

// ResolveCapabilities maps a (tenant, role) pair onto its capability set.
// A role with no permission row resolves to the zero set, never an error.
func (s *AuthzService) ResolveCapabilities(ctx context.Context, tenantID int64, roleName string) (domain.CapabilitySet, error) {
	perm, err := s.permissions.GetTenantRolePermission(ctx, tenantID, roleName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.CapabilitySet{}, nil
		}
		return domain.CapabilitySet{}, err
	}
	return perm.CapabilitySet, nil
}

// ResolveMasterCapabilities is the master-scoped variant, keyed additionally
// by tenant.
func (s *AuthzService) ResolveMasterCapabilities(ctx context.Context, masterID int64, roleName string, tenantID int64) (domain.CapabilitySet, error) {
	perm, err := s.permissions.GetMasterRolePermission(ctx, masterID, roleName, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.CapabilitySet{}, nil
		}
		return domain.CapabilitySet{}, err
	}
	return perm.Capabilities(), nil
}

// Authorize decides whether a user may exercise a capability in a tenant.
// The tenant-scoped role is consulted first; if it does not grant the
// capability, each of the user's master bindings is tried against the
// master-scoped table for that tenant. Absence anywhere means denial.
func (s *AuthzService) Authorize(ctx context.Context, userID, tenantID int64, cap domain.Capability) error {
	role, err := s.ResolveRole(ctx, userID, tenantID)
	switch {
	case err == nil:
		caps, err := s.ResolveCapabilities(ctx, tenantID, role)
		if err != nil {
			return err
		}
		if caps.Allows(cap) {
			metrics.ObserveAuthzDecision("allow")
			return nil
		}
	case errors.Is(err, domain.ErrNotAMember):
		// fall through to master bindings
	default:
		return err
	}

	bindings, err := s.masters.MastersOf(ctx, userID)
	if err != nil {
		return err
	}
	for _, b := range bindings {
		caps, err := s.ResolveMasterCapabilities(ctx, b.MasterID, b.RoleName, tenantID)
		if err != nil {
			return err
		}
		if caps.Allows(cap) {
			metrics.ObserveAuthzDecision("allow")
			return nil
		}
	}

	metrics.ObserveAuthzDecision("deny")
	s.logger.Warn("permission denied",
		slog.Int64("user_id", userID),
		slog.Int64("tenant_id", tenantID),
		slog.String("capability", string(cap)),
	)
	return domain.ErrPermissionDenied
}

// TenantsOf returns the membership edges of a user
func (s *AuthzService) TenantsOf(ctx context.Context, userID int64) ([]*domain.Membership, error) {
	return s.memberships.TenantsOf(ctx, userID)
}

// MembersOf returns the membership edges of a tenant
func (s *AuthzService) MembersOf(ctx context.Context, tenantID int64) ([]*domain.Membership, error) {
	return s.memberships.MembersOf(ctx, tenantID)
}

// IsMaster reports whether the user holds any master binding
func (s *AuthzService) IsMaster(ctx context.Context, userID int64) (bool, error) {
	bindings, err := s.masters.MastersOf(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(bindings) > 0, nil
}
