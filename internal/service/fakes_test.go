package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/surelog/surelog/internal/domain"
	"github.com/surelog/surelog/pkg/database"
)

type memUserRepo struct {
	nextID int64
	byID   map[int64]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{nextID: 1, byID: map[int64]*domain.User{}}
}

func (m *memUserRepo) Create(ctx context.Context, u *domain.User) error {
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return domain.ErrDuplicate
		}
	}
	u.ID = m.nextID
	m.nextID++
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.byID[u.ID] = u
	return nil
}

func (m *memUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var found *domain.User
	for _, u := range m.byID {
		if u.Email == email && (found == nil || u.ID < found.ID) {
			found = u
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *memUserRepo) Update(ctx context.Context, u *domain.User) error {
	if _, ok := m.byID[u.ID]; !ok {
		return domain.ErrNotFound
	}
	u.UpdatedAt = time.Now()
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUserRepo) ListByTenant(ctx context.Context, tenantID int64) ([]*domain.User, error) {
	return nil, nil
}

type memTenantRepo struct {
	byID map[int64]*domain.Tenant
}

func newMemTenantRepo() *memTenantRepo {
	return &memTenantRepo{byID: map[int64]*domain.Tenant{}}
}

func (m *memTenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	if _, ok := m.byID[t.ID]; ok {
		return domain.ErrDuplicate
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	m.byID[t.ID] = t
	return nil
}

func (m *memTenantRepo) GetByID(ctx context.Context, id int64) (*domain.Tenant, error) {
	if t, ok := m.byID[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memTenantRepo) Update(ctx context.Context, t *domain.Tenant) error {
	if _, ok := m.byID[t.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *t
	m.byID[t.ID] = &cp
	return nil
}

func (m *memTenantRepo) List(ctx context.Context) ([]*domain.Tenant, error) {
	out := []*domain.Tenant{}
	for _, t := range m.byID {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memTenantRepo) ReconcileUserCounts(ctx context.Context) (int64, error) {
	return 0, nil
}

type edgeKey struct{ tenantID, userID int64 }

type memMembershipRepo struct {
	edges   map[edgeKey]string
	tenants *memTenantRepo
}

func newMemMembershipRepo(tenants *memTenantRepo) *memMembershipRepo {
	return &memMembershipRepo{edges: map[edgeKey]string{}, tenants: tenants}
}

func (m *memMembershipRepo) AddMember(ctx context.Context, tenantID, userID int64, roleName string) error {
	key := edgeKey{tenantID, userID}
	if _, ok := m.edges[key]; ok {
		return domain.ErrDuplicate
	}
	if m.tenants != nil {
		t, ok := m.tenants.byID[tenantID]
		if !ok {
			return domain.ErrNotFound
		}
		t.UserCount++
	}
	m.edges[key] = roleName
	return nil
}

func (m *memMembershipRepo) RemoveMember(ctx context.Context, tenantID, userID int64) error {
	key := edgeKey{tenantID, userID}
	if _, ok := m.edges[key]; !ok {
		return domain.ErrNotFound
	}
	delete(m.edges, key)
	if m.tenants != nil {
		if t, ok := m.tenants.byID[tenantID]; ok && t.UserCount > 0 {
			t.UserCount--
		}
	}
	return nil
}

func (m *memMembershipRepo) RoleOf(ctx context.Context, userID, tenantID int64) (string, error) {
	if role, ok := m.edges[edgeKey{tenantID, userID}]; ok {
		return role, nil
	}
	return "", domain.ErrNotAMember
}

func (m *memMembershipRepo) MembersOf(ctx context.Context, tenantID int64) ([]*domain.Membership, error) {
	out := []*domain.Membership{}
	for k, role := range m.edges {
		if k.tenantID == tenantID {
			out = append(out, &domain.Membership{TenantID: k.tenantID, UserID: k.userID, RoleName: role})
		}
	}
	return out, nil
}

func (m *memMembershipRepo) TenantsOf(ctx context.Context, userID int64) ([]*domain.Membership, error) {
	out := []*domain.Membership{}
	for k, role := range m.edges {
		if k.userID == userID {
			out = append(out, &domain.Membership{TenantID: k.tenantID, UserID: k.userID, RoleName: role})
		}
	}
	return out, nil
}

type memMasterRepo struct {
	bindings []*domain.Master
}

func newMemMasterRepo() *memMasterRepo { return &memMasterRepo{} }

func (m *memMasterRepo) Bind(ctx context.Context, masterID, userID int64, roleName string) error {
	for _, b := range m.bindings {
		if b.MasterID == masterID && b.UserID == userID {
			return domain.ErrDuplicate
		}
	}
	m.bindings = append(m.bindings, &domain.Master{MasterID: masterID, UserID: userID, RoleName: roleName})
	return nil
}

func (m *memMasterRepo) MastersOf(ctx context.Context, userID int64) ([]*domain.Master, error) {
	out := []*domain.Master{}
	for _, b := range m.bindings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

type tenantPermKey struct {
	tenantID int64
	roleName string
}

type masterPermKey struct {
	masterID int64
	roleName string
	tenantID int64
}

type memPermissionRepo struct {
	tenantPerms map[tenantPermKey]*domain.TenantRolePermission
	masterPerms map[masterPermKey]*domain.MasterRolePermission
}

func newMemPermissionRepo() *memPermissionRepo {
	return &memPermissionRepo{
		tenantPerms: map[tenantPermKey]*domain.TenantRolePermission{},
		masterPerms: map[masterPermKey]*domain.MasterRolePermission{},
	}
}

func (m *memPermissionRepo) GetTenantRolePermission(ctx context.Context, tenantID int64, roleName string) (*domain.TenantRolePermission, error) {
	if p, ok := m.tenantPerms[tenantPermKey{tenantID, roleName}]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memPermissionRepo) UpsertTenantRolePermission(ctx context.Context, perm *domain.TenantRolePermission) error {
	cp := *perm
	m.tenantPerms[tenantPermKey{perm.TenantID, perm.RoleName}] = &cp
	return nil
}

func (m *memPermissionRepo) GetMasterRolePermission(ctx context.Context, masterID int64, roleName string, tenantID int64) (*domain.MasterRolePermission, error) {
	if p, ok := m.masterPerms[masterPermKey{masterID, roleName, tenantID}]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memPermissionRepo) UpsertMasterRolePermission(ctx context.Context, perm *domain.MasterRolePermission) error {
	cp := *perm
	m.masterPerms[masterPermKey{perm.MasterID, perm.RoleName, perm.TenantID}] = &cp
	return nil
}

// fakeManager hands out the same in-memory repositories for every handle, so
// transactional code paths exercise the same state as pool-bound ones.
type fakeManager struct {
	users       *memUserRepo
	tenants     *memTenantRepo
	memberships *memMembershipRepo
	masters     *memMasterRepo
	permissions *memPermissionRepo
}

func newFakeManager() *fakeManager {
	tenants := newMemTenantRepo()
	return &fakeManager{
		users:       newMemUserRepo(),
		tenants:     tenants,
		memberships: newMemMembershipRepo(tenants),
		masters:     newMemMasterRepo(),
		permissions: newMemPermissionRepo(),
	}
}

func (f *fakeManager) Users(q database.DBTX) domain.UserRepository { return f.users }
func (f *fakeManager) Tenants(q database.DBTX) domain.TenantRepository {
	return f.tenants
}
func (f *fakeManager) Memberships(q database.DBTX) domain.MembershipRepository {
	return f.memberships
}
func (f *fakeManager) Masters(q database.DBTX) domain.MasterRepository { return f.masters }
func (f *fakeManager) Permissions(q database.DBTX) domain.PermissionRepository {
	return f.permissions
}
func (f *fakeManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }

// newMockDB returns a pool whose Begin/Commit/Rollback are stubbed, for
// services that wrap repository calls in a transaction.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}
