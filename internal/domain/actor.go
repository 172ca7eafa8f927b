package domain

import "github.com/google/uuid"

type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

func (a Actor) Privileged() bool {
	return a.Role == RoleAdmin || a.Role == RoleStaff
}

func (a Actor) CanAccess(owner uuid.UUID) bool {
	return a.Privileged() || (a.UserID != uuid.Nil && a.UserID == owner)
}
