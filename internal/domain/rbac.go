package domain

import "context"

// Capability names an action a role may be granted.
type Capability string

const (
	CapFullAccess Capability = "full_access"
	CapAddUsers   Capability = "add_users"
	CapViewUsers  Capability = "view_users"
)

// CapabilitySet holds the flags of a single permission row. The zero value
// grants nothing, which is what a missing permission row resolves to.
type CapabilitySet struct {
	HasFullAccess bool
	CanAddUsers   bool
	CanViewUsers  bool
}

// Allows reports whether the set grants a capability. HasFullAccess
// short-circuits every check; the individual flags are only consulted when
// full access is not set.
func (c CapabilitySet) Allows(cap Capability) bool {
	if c.HasFullAccess {
		return true
	}
	switch cap {
	case CapFullAccess:
		return false
	case CapAddUsers:
		return c.CanAddUsers
	case CapViewUsers:
		return c.CanViewUsers
	}
	return false
}

// Membership links a user to a tenant with exactly one role. The
// (TenantID, UserID) pair is unique.
type Membership struct {
	TenantID int64
	UserID   int64
	RoleName string
}

// Master is a cross-tenant administrative identity layered over a user,
// keyed by (MasterID, UserID).
type Master struct {
	MasterID int64
	UserID   int64
	RoleName string
}

// TenantRolePermission defines what a role name means inside one tenant.
type TenantRolePermission struct {
	TenantID int64
	RoleName string
	CapabilitySet
}

// MasterRolePermission grants a master, under a role name, a capability set
// scoped to a single tenant. Masters have no view-users flag.
type MasterRolePermission struct {
	MasterID      int64
	RoleName      string
	TenantID      int64
	HasFullAccess bool
	CanAddUsers   bool
}

// Capabilities maps the row onto the common capability set.
func (p MasterRolePermission) Capabilities() CapabilitySet {
	return CapabilitySet{
		HasFullAccess: p.HasFullAccess,
		CanAddUsers:   p.CanAddUsers,
	}
}

// MembershipRepository manages tenant membership edges.
type MembershipRepository interface {
	// AddMember writes the edge and bumps the tenant's user_count in the
	// same transaction. ErrDuplicate when the (tenant, user) edge exists.
	AddMember(ctx context.Context, tenantID, userID int64, roleName string) error
	RemoveMember(ctx context.Context, tenantID, userID int64) error
	// RoleOf returns ErrNotAMember when no edge exists.
	RoleOf(ctx context.Context, userID, tenantID int64) (string, error)
	MembersOf(ctx context.Context, tenantID int64) ([]*Membership, error)
	TenantsOf(ctx context.Context, userID int64) ([]*Membership, error)
}

// MasterRepository manages master bindings.
type MasterRepository interface {
	Bind(ctx context.Context, masterID, userID int64, roleName string) error
	MastersOf(ctx context.Context, userID int64) ([]*Master, error)
}

// PermissionRepository reads and writes the two permission tables. Get
// methods return ErrNotFound for a missing row; mapping that to a zero
// CapabilitySet is the resolver's job.
type PermissionRepository interface {
	GetTenantRolePermission(ctx context.Context, tenantID int64, roleName string) (*TenantRolePermission, error)
	UpsertTenantRolePermission(ctx context.Context, perm *TenantRolePermission) error
	GetMasterRolePermission(ctx context.Context, masterID int64, roleName string, tenantID int64) (*MasterRolePermission, error)
	UpsertMasterRolePermission(ctx context.Context, perm *MasterRolePermission) error
}
