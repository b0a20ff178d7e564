package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/models"
)

// NeedRepository reads the four independent need-evidence signals and
// persists incoming screener assessments.
type NeedRepository interface {
	HasActiveChallenge(ctx context.Context, prisonNumber string) (bool, error)
	HasActiveCondition(ctx context.Context, prisonNumber string) (bool, error)
	LatestAssessment(ctx context.Context, prisonNumber string, screener models.ScreenerType) (models.ScreenerAssessment, error)
	SaveAssessment(ctx context.Context, assessment *models.ScreenerAssessment) error
}

type needRepository struct {
	db *gorm.DB
}

// NewNeedRepository instantiates a GORM-backed repository.
func NewNeedRepository(db *gorm.DB) NeedRepository {
	return &needRepository{db: db}
}

func (r *needRepository) HasActiveChallenge(ctx context.Context, prisonNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ChallengeRecord{}).
		Where("prison_number = ? AND active", prisonNumber).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *needRepository) HasActiveCondition(ctx context.Context, prisonNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ConditionRecord{}).
		Where("prison_number = ? AND active", prisonNumber).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// LatestAssessment returns the most-recently-updated assessment for the
// screener type; it supersedes all earlier rows regardless of insertion order.
func (r *needRepository) LatestAssessment(ctx context.Context, prisonNumber string, screener models.ScreenerType) (models.ScreenerAssessment, error) {
	var assessment models.ScreenerAssessment
	err := r.db.WithContext(ctx).
		Where("prison_number = ? AND screener_type = ?", prisonNumber, screener).
		Order("updated_at DESC, id DESC").
		First(&assessment).Error
	if err != nil {
		return models.ScreenerAssessment{}, err
	}

	return assessment, nil
}

func (r *needRepository) SaveAssessment(ctx context.Context, assessment *models.ScreenerAssessment) error {
	return r.db.WithContext(ctx).Create(assessment).Error
}
