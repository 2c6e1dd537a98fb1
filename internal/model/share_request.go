package model

import (
	"time"

	"github.com/google/uuid"
)

type ShareRequestStatus string

const (
	ShareRequestPending  ShareRequestStatus = "pending_acceptance"
	ShareRequestAccepted ShareRequestStatus = "accepted"
	ShareRequestDeclined ShareRequestStatus = "declined"
	ShareRequestExpired  ShareRequestStatus = "expired"
)

type ShareRequest struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	JobID           uuid.UUID          `gorm:"column:job_id;type:uuid;not null;index"`
	SourceCompanyID uuid.UUID          `gorm:"column:source_company_id;type:uuid;not null;index"`
	SourceUserID    uuid.UUID          `gorm:"column:source_user_id;type:uuid"`
	TargetCompanyID uuid.UUID          `gorm:"column:target_company_id;type:uuid;not null;index"`
	TargetUserID    uuid.UUID          `gorm:"column:target_user_id;type:uuid"`
	ProposedFee     float64            `gorm:"column:proposed_fee;not null"`
	AcceptedFee     *float64           `gorm:"column:accepted_fee"`
	Status          ShareRequestStatus `gorm:"column:status;not null"`
	ExpiresAt       *time.Time         `gorm:"column:expires_at"`
	AutoAssigned    bool               `gorm:"column:auto_assigned;not null;default:false"`
	DeclineReason   *string            `gorm:"column:decline_reason"`
	RespondedAt     *time.Time         `gorm:"column:responded_at"`
	CreatedAt       time.Time          `gorm:"column:created_at"`
}

func (ShareRequest) TableName() string { return "share_requests" }

// ExpiredAt reports whether the request can no longer be accepted at now.
// A nil ExpiresAt never expires.
func (r *ShareRequest) ExpiredAt(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// EffectiveStatus folds lazy expiry into the stored status.
func (r *ShareRequest) EffectiveStatus(now time.Time) ShareRequestStatus {
	if r.Status == ShareRequestPending && r.ExpiredAt(now) {
		return ShareRequestExpired
	}
	return r.Status
}
