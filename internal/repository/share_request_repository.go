package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/jobshare/internal/model"
)

type ShareRequestRepository struct {
	db *gorm.DB
}

func NewShareRequestRepository(db *gorm.DB) *ShareRequestRepository {
	return &ShareRequestRepository{db: db}
}

func (r *ShareRequestRepository) Create(ctx context.Context, req *model.ShareRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *ShareRequestRepository) Get(ctx context.Context, id uuid.UUID) (*model.ShareRequest, error) {
	var req model.ShareRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *ShareRequestRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.ShareRequest, error) {
	var req model.ShareRequest
	if err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindPending returns the pending request for (jobID, targetCompanyID), if any.
// Expiry is not considered here.
func (r *ShareRequestRepository) FindPending(ctx context.Context, jobID, targetCompanyID uuid.UUID) (*model.ShareRequest, error) {
	var req model.ShareRequest
	err := forUpdate(r.db.WithContext(ctx)).
		Where("job_id = ? AND target_company_id = ? AND status = ?", jobID, targetCompanyID, model.ShareRequestPending).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Resolve performs the pending_acceptance -> status check-and-set. Zero rows
// affected means someone else resolved the request first.
func (r *ShareRequestRepository) Resolve(
	ctx context.Context,
	id uuid.UUID,
	status model.ShareRequestStatus,
	acceptedFee *float64,
	declineReason *string,
	respondedAt time.Time,
) error {
	result := r.db.WithContext(ctx).
		Model(&model.ShareRequest{}).
		Where("id = ? AND status = ?", id, model.ShareRequestPending).
		Updates(map[string]interface{}{
			"status":         status,
			"accepted_fee":   acceptedFee,
			"decline_reason": declineReason,
			"responded_at":   respondedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *ShareRequestRepository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.ShareRequest{}).
		Where("id = ? AND status = ?", id, model.ShareRequestPending).
		Update("status", model.ShareRequestExpired).Error
}

func (r *ShareRequestRepository) ListByTarget(ctx context.Context, companyID uuid.UUID) ([]model.ShareRequest, error) {
	return r.list(ctx, "target_company_id = ?", companyID)
}

func (r *ShareRequestRepository) ListBySource(ctx context.Context, companyID uuid.UUID) ([]model.ShareRequest, error) {
	return r.list(ctx, "source_company_id = ?", companyID)
}

func (r *ShareRequestRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]model.ShareRequest, error) {
	return r.list(ctx, "job_id = ?", jobID)
}

func (r *ShareRequestRepository) list(ctx context.Context, where string, arg interface{}) ([]model.ShareRequest, error) {
	var reqs []model.ShareRequest
	if err := r.db.WithContext(ctx).Where(where, arg).Order("created_at DESC").Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}
