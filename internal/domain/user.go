package domain

import "time"

// Role enumerates every actor kind on the platform. Tenants report
// issues; associates repair them; managers, directors and admins drive
// the approval workflow.
type Role string

const (
	RoleTenant    Role = "TENANT"
	RoleAssociate Role = "ASSOCIATE"
	RoleManager   Role = "MANAGER"
	RoleDirector  Role = "DIRECTOR"
	RoleAdmin     Role = "ADMIN"
)

// IsStaff reports whether the role participates in the workflow side of
// the platform (everything except tenants).
func (r Role) IsStaff() bool {
	return r != RoleTenant && r != ""
}

// UserStatus represents identity lifecycle states.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusPending   UserStatus = "PENDING"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is the unified identity record. DebtBalance is only meaningful
// for tenants and is mutated exclusively through the debt accrual path.
type User struct {
	ID           string
	Username     string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Status       UserStatus
	ApartmentID  *string
	DebtBalance  float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Active reports whether the identity may act in the workflow.
func (u *User) Active() bool {
	return u != nil && u.Status == UserStatusActive
}
