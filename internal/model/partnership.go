package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type PartnershipStatus string

const (
	PartnershipStatusPending  PartnershipStatus = "pending"
	PartnershipStatusActive   PartnershipStatus = "active"
	PartnershipStatusDeclined PartnershipStatus = "declined"
)

type AutoAssignmentZone struct {
	ZipCodes   []string `json:"zip_codes"`
	DefaultFee float64  `json:"default_fee"`
	Priority   int      `json:"priority"`
	Enabled    bool     `json:"enabled"`
}

func (z AutoAssignmentZone) Covers(zip string) bool {
	return z.Enabled && slices.Contains(z.ZipCodes, zip)
}

// PartnerEntry is one side of a partnership, stored on the owning company.
// Zones describe which of the owner's jobs are handed to the partner
// automatically; RequiresAcceptance decides whether the partner must confirm.
type PartnerEntry struct {
	PartnerCompanyID      uuid.UUID            `json:"partner_company_id"`
	Status                PartnershipStatus    `json:"status"`
	AutoAssignmentEnabled bool                 `json:"auto_assignment_enabled"`
	Zones                 []AutoAssignmentZone `json:"auto_assignment_zones"`
	RequiresAcceptance    bool                 `json:"requires_acceptance"`
	NotifyOnShare         bool                 `json:"notify_on_share"`
	NotifyOnStatusChange  bool                 `json:"notify_on_status_change"`
	CreatedAt             time.Time            `json:"created_at"`
	UpdatedAt             time.Time            `json:"updated_at"`
}

func (e PartnerEntry) IsActive() bool {
	return e.Status == PartnershipStatusActive
}

// MatchZone returns the best enabled zone covering zip, by lowest priority.
func (e PartnerEntry) MatchZone(zip string) (AutoAssignmentZone, bool) {
	var (
		best  AutoAssignmentZone
		found bool
	)
	if !e.IsActive() || !e.AutoAssignmentEnabled {
		return best, false
	}
	for _, zone := range e.Zones {
		if !zone.Covers(zip) {
			continue
		}
		if !found || zone.Priority < best.Priority {
			best = zone
			found = true
		}
	}
	return best, found
}

// Equal reports whether two entries are identical, element by element.
func (e PartnerEntry) Equal(o PartnerEntry) bool {
	if e.PartnerCompanyID != o.PartnerCompanyID ||
		e.Status != o.Status ||
		e.AutoAssignmentEnabled != o.AutoAssignmentEnabled ||
		e.RequiresAcceptance != o.RequiresAcceptance ||
		e.NotifyOnShare != o.NotifyOnShare ||
		e.NotifyOnStatusChange != o.NotifyOnStatusChange ||
		!e.CreatedAt.Equal(o.CreatedAt) ||
		!e.UpdatedAt.Equal(o.UpdatedAt) {
		return false
	}
	return slices.EqualFunc(e.Zones, o.Zones, func(a, b AutoAssignmentZone) bool {
		return a.DefaultFee == b.DefaultFee &&
			a.Priority == b.Priority &&
			a.Enabled == b.Enabled &&
			slices.Equal(a.ZipCodes, b.ZipCodes)
	})
}

type PartnershipRequestStatus string

const (
	PartnershipRequestPending  PartnershipRequestStatus = "pending"
	PartnershipRequestAccepted PartnershipRequestStatus = "accepted"
	PartnershipRequestDeclined PartnershipRequestStatus = "declined"
)

type PartnershipRequest struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	RequesterCompanyID uuid.UUID                `gorm:"column:requester_company_id;type:uuid;not null;index"`
	RequesterUserID    uuid.UUID                `gorm:"column:requester_user_id;type:uuid;not null"`
	TargetCompanyID    uuid.UUID                `gorm:"column:target_company_id;type:uuid;not null;index"`
	Message            string                   `gorm:"column:message"`
	Status             PartnershipRequestStatus `gorm:"column:status;not null"`
	RespondedByUserID  *uuid.UUID               `gorm:"column:responded_by_user_id;type:uuid"`
	RespondedAt        *time.Time               `gorm:"column:responded_at"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
}

func (PartnershipRequest) TableName() string { return "partnership_requests" }
