package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/jobshare/internal/model"
)

type PartnershipRequestRepository struct {
	db *gorm.DB
}

func NewPartnershipRequestRepository(db *gorm.DB) *PartnershipRequestRepository {
	return &PartnershipRequestRepository{db: db}
}

func (r *PartnershipRequestRepository) Create(ctx context.Context, req *model.PartnershipRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *PartnershipRequestRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.PartnershipRequest, error) {
	var req model.PartnershipRequest
	if err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindPendingBetween returns a pending request between a and b in either
// direction, or gorm.ErrRecordNotFound.
func (r *PartnershipRequestRepository) FindPendingBetween(ctx context.Context, a, b uuid.UUID) (*model.PartnershipRequest, error) {
	var req model.PartnershipRequest
	err := r.db.WithContext(ctx).
		Where("status = ?", model.PartnershipRequestPending).
		Where("(requester_company_id = ? AND target_company_id = ?) OR (requester_company_id = ? AND target_company_id = ?)", a, b, b, a).
		Order("created_at ASC").
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Resolve moves a pending request to status. It fails with
// ErrVersionConflict when the request was already resolved.
func (r *PartnershipRequestRepository) Resolve(
	ctx context.Context,
	id uuid.UUID,
	status model.PartnershipRequestStatus,
	respondedBy uuid.UUID,
	respondedAt time.Time,
) error {
	result := r.db.WithContext(ctx).
		Model(&model.PartnershipRequest{}).
		Where("id = ? AND status = ?", id, model.PartnershipRequestPending).
		Updates(map[string]interface{}{
			"status":               status,
			"responded_by_user_id": respondedBy,
			"responded_at":         respondedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *PartnershipRequestRepository) ListPendingForTarget(ctx context.Context, companyID uuid.UUID) ([]model.PartnershipRequest, error) {
	var reqs []model.PartnershipRequest
	err := r.db.WithContext(ctx).
		Where("target_company_id = ? AND status = ?", companyID, model.PartnershipRequestPending).
		Order("created_at ASC").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}
