package model

import "github.com/google/uuid"

type Principal struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
	Role      UserRole
}

func (p Principal) IsAdmin() bool {
	return p.Role == UserRoleAdmin || p.Role == UserRoleOwner
}
