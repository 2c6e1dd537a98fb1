package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type UserRole string

const (
	UserRoleOwner  UserRole = "owner"
	UserRoleAdmin  UserRole = "admin"
	UserRoleMember UserRole = "member"
	UserRoleServer UserRole = "server"
)

type CompanyUser struct {
	UserID uuid.UUID `json:"user_id"`
	Role   UserRole  `json:"role"`
}

// Company is the tenant document. Partner entries live inside it, one per
// counterpart, so every write to the array goes through a version check.
type Company struct {
	ID               uuid.UUID                         `gorm:"column:id;type:uuid;primaryKey"`
	Name             string                            `gorm:"column:name;not null"`
	Zip              string                            `gorm:"column:zip;index"`
	DirectoryListed  bool                              `gorm:"column:directory_listed;not null;default:false"`
	IsActive         bool                              `gorm:"column:is_active;not null"`
	OwnerID          *uuid.UUID                        `gorm:"column:owner_id;type:uuid"`
	PrimaryUserID    *uuid.UUID                        `gorm:"column:primary_user_id;type:uuid"`
	CreatedBy        *uuid.UUID                        `gorm:"column:created_by;type:uuid"`
	Users            datatypes.JSONSlice[CompanyUser]  `gorm:"column:users;not null"`
	JobSharePartners datatypes.JSONSlice[PartnerEntry] `gorm:"column:job_share_partners;not null"`
	Version          int                               `gorm:"column:version;not null;default:1"`
	CreatedAt        time.Time                         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Company) TableName() string { return "companies" }

// Partner returns the index of the entry for partnerID, or -1.
func (c *Company) Partner(partnerID uuid.UUID) (int, *PartnerEntry) {
	for i := range c.JobSharePartners {
		if c.JobSharePartners[i].PartnerCompanyID == partnerID {
			return i, &c.JobSharePartners[i]
		}
	}
	return -1, nil
}

func (c *Company) HasUser(userID uuid.UUID) bool {
	for _, u := range c.Users {
		if u.UserID == userID {
			return true
		}
	}
	return false
}
