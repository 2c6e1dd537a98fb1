package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/jobshare/internal/model"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *model.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Version == 0 {
		job.Version = 1
	}
	if job.AffidavitRefs == nil {
		job.AffidavitRefs = stringSlice(nil)
	}
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *JobRepository) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	if err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// Update writes every mutable column of job if the stored version still
// equals job.Version, then advances job.Version.
func (r *JobRepository) Update(ctx context.Context, job *model.Job) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&model.Job{}).
		Where("id = ? AND version = ?", job.ID, job.Version).
		Updates(map[string]interface{}{
			"zip":                 job.Zip,
			"status":              job.Status,
			"assigned_company_id": job.AssignedCompanyID,
			"assigned_server_id":  job.AssignedServerID,
			"is_closed":           job.IsClosed,
			"service_date":        job.ServiceDate,
			"affidavit_refs":      stringSlice(job.AffidavitRefs),
			"decline_reason":      job.DeclineReason,
			"chain_encoding":      job.ChainEncoding,
			"job_share_chain":     job.JobShareChain,
			"share_chain":         job.ShareChain,
			"version":             gorm.Expr("version + 1"),
			"updated_at":          now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	job.Version++
	job.UpdatedAt = now
	return nil
}

func (r *JobRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Job, error) {
	if len(ids) == 0 {
		return []model.Job{}, nil
	}
	var jobs []model.Job
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
