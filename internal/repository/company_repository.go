package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/jobshare/internal/model"
)

type CompanyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

func (r *CompanyRepository) Create(ctx context.Context, company *model.Company) error {
	if company.ID == uuid.Nil {
		company.ID = uuid.New()
	}
	if company.Version == 0 {
		company.Version = 1
	}
	return r.db.WithContext(ctx).Create(company).Error
}

func (r *CompanyRepository) Get(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	var company model.Company
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&company).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *CompanyRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	var company model.Company
	if err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&company).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

// ReplacePartners writes the partner array only if the document is still at
// expectedVersion. The caller is responsible for having spliced exactly the
// element it meant to change into partners.
func (r *CompanyRepository) ReplacePartners(
	ctx context.Context,
	id uuid.UUID,
	expectedVersion int,
	partners []model.PartnerEntry,
) error {
	result := r.db.WithContext(ctx).
		Model(&model.Company{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"job_share_partners": partnerSlice(partners),
			"version":            gorm.Expr("version + 1"),
			"updated_at":         time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// SearchDirectory is the read-only directory lookup: listed, active companies
// located in zip.
func (r *CompanyRepository) SearchDirectory(ctx context.Context, zip string) ([]model.Company, error) {
	var companies []model.Company
	err := r.db.WithContext(ctx).
		Where("zip = ? AND directory_listed = ? AND is_active = ?", zip, true, true).
		Order("name ASC").
		Find(&companies).Error
	if err != nil {
		return nil, err
	}
	return companies, nil
}

func (r *CompanyRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Company, error) {
	if len(ids) == 0 {
		return []model.Company{}, nil
	}
	var companies []model.Company
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&companies).Error; err != nil {
		return nil, err
	}
	return companies, nil
}
