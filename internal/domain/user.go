package domain

import (
	"context"
	"time"
)

// User represents a system user. PasswordHash holds a bcrypt hash; the
// plaintext secret is never persisted or returned through the API.
type User struct {
	ID           int64
	FirstName    string
	MiddleName   string // optional
	LastName     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRepository defines data access for users
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	ListByTenant(ctx context.Context, tenantID int64) ([]*User, error)
}

// Tenant represents an organization namespace. The ID is externally
// assigned, never generated by the store. UserCount mirrors the number of
// membership edges and is maintained in the same transaction that writes
// the edge.
type Tenant struct {
	ID        int64
	Name      string
	UserCount int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TenantRepository defines data access for tenants
type TenantRepository interface {
	Create(ctx context.Context, tenant *Tenant) error
	GetByID(ctx context.Context, id int64) (*Tenant, error)
	Update(ctx context.Context, tenant *Tenant) error
	List(ctx context.Context) ([]*Tenant, error)
	// ReconcileUserCounts recomputes user_count from membership edges and
	// returns how many rows were repaired.
	ReconcileUserCounts(ctx context.Context) (int64, error)
}
