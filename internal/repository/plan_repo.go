package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/models"
)

// PlanRepository stores the support-plan marker rows feeding status
// derivation and review scheduling.
type PlanRepository interface {
	Get(ctx context.Context, prisonNumber string) (models.SupportPlan, error)
	Create(ctx context.Context, plan *models.SupportPlan) error
	SetDeclined(ctx context.Context, prisonNumber string, declined bool) error
}

type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository instantiates a GORM-backed repository.
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

func (r *planRepository) Get(ctx context.Context, prisonNumber string) (models.SupportPlan, error) {
	var plan models.SupportPlan
	if err := r.db.WithContext(ctx).Where("prison_number = ?", prisonNumber).First(&plan).Error; err != nil {
		return models.SupportPlan{}, err
	}

	return plan, nil
}

func (r *planRepository) Create(ctx context.Context, plan *models.SupportPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *planRepository) SetDeclined(ctx context.Context, prisonNumber string, declined bool) error {
	result := r.db.WithContext(ctx).Model(&models.SupportPlan{}).
		Where("prison_number = ?", prisonNumber).
		Update("declined", declined)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
