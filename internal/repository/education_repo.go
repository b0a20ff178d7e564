package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/models"
)

// EducationRepository tracks education enrolment spells. The open enrolment
// (null end date) marks the person as in education.
type EducationRepository interface {
	OpenEnrolment(ctx context.Context, prisonNumber string) (models.EducationEnrolment, error)
	Create(ctx context.Context, enrolment *models.EducationEnrolment) error
	CloseOpen(ctx context.Context, prisonNumber string, endDate time.Time) error
}

type educationRepository struct {
	db *gorm.DB
}

// NewEducationRepository instantiates a GORM-backed repository.
func NewEducationRepository(db *gorm.DB) EducationRepository {
	return &educationRepository{db: db}
}

func (r *educationRepository) OpenEnrolment(ctx context.Context, prisonNumber string) (models.EducationEnrolment, error) {
	var enrolment models.EducationEnrolment
	err := r.db.WithContext(ctx).
		Where("prison_number = ? AND end_date IS NULL", prisonNumber).
		Order("start_date DESC").
		First(&enrolment).Error
	if err != nil {
		return models.EducationEnrolment{}, err
	}

	return enrolment, nil
}

func (r *educationRepository) Create(ctx context.Context, enrolment *models.EducationEnrolment) error {
	return r.db.WithContext(ctx).Create(enrolment).Error
}

func (r *educationRepository) CloseOpen(ctx context.Context, prisonNumber string, endDate time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.EducationEnrolment{}).
		Where("prison_number = ? AND end_date IS NULL", prisonNumber).
		Update("end_date", endDate)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
