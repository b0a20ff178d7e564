package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/models"
)

// ScheduleFilter describes pagination options for prison-level listings.
type ScheduleFilter struct {
	Kind     models.ScheduleKind
	Page     int
	PageSize int
}

// ScheduleRepository persists the current schedule per (person, kind) and its
// append-only history. Every mutation appends a history snapshot in the same
// transaction as the state write so the two can never diverge.
type ScheduleRepository interface {
	GetCurrent(ctx context.Context, prisonNumber string, kind models.ScheduleKind) (models.Schedule, error)
	ListCurrent(ctx context.Context, prisonNumber string) ([]models.Schedule, error)
	ListByPrison(ctx context.Context, prisonID string, filter ScheduleFilter) ([]models.Schedule, int64, error)
	CreateWithHistory(ctx context.Context, schedule *models.Schedule) error
	UpdateWithHistory(ctx context.Context, schedule *models.Schedule) error
	ChainWithHistory(ctx context.Context, completed, next *models.Schedule) error
	History(ctx context.Context, prisonNumber string, kind models.ScheduleKind) ([]models.ScheduleHistory, error)
}

type scheduleRepository struct {
	db *gorm.DB
}

// NewScheduleRepository instantiates a GORM-backed repository.
func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) GetCurrent(ctx context.Context, prisonNumber string, kind models.ScheduleKind) (models.Schedule, error) {
	var schedule models.Schedule
	err := r.db.WithContext(ctx).
		Where("prison_number = ? AND kind = ?", prisonNumber, kind).
		First(&schedule).Error
	if err != nil {
		return models.Schedule{}, err
	}

	return schedule, nil
}

func (r *scheduleRepository) ListCurrent(ctx context.Context, prisonNumber string) ([]models.Schedule, error) {
	var schedules []models.Schedule
	err := r.db.WithContext(ctx).
		Where("prison_number = ?", prisonNumber).
		Order("kind ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}

	return schedules, nil
}

func (r *scheduleRepository) ListByPrison(ctx context.Context, prisonID string, filter ScheduleFilter) ([]models.Schedule, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Schedule{}).
		Where("updated_at_prison = ?", strings.ToUpper(strings.TrimSpace(prisonID)))

	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("prison_number ASC, kind ASC")

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var schedules []models.Schedule
	if err := query.Find(&schedules).Error; err != nil {
		return nil, 0, err
	}

	return schedules, total, nil
}

func (r *scheduleRepository) CreateWithHistory(ctx context.Context, schedule *models.Schedule) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Schedule
		err := lockForUpdate(tx).
			Where("prison_number = ? AND kind = ?", schedule.PrisonNumber, schedule.Kind).
			First(&existing).Error
		if err == nil {
			return gorm.ErrDuplicatedKey
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(schedule).Error; err != nil {
			return err
		}

		return appendHistory(tx, *schedule)
	})
}

func (r *scheduleRepository) UpdateWithHistory(ctx context.Context, schedule *models.Schedule) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Schedule
		if err := lockForUpdate(tx).First(&current, schedule.ID).Error; err != nil {
			return err
		}

		if err := tx.Save(schedule).Error; err != nil {
			return err
		}

		return appendHistory(tx, *schedule)
	})
}

// ChainWithHistory commits a terminal snapshot and the reset that follows it
// as one transaction, so the row can never be left terminal without its
// successor. Both history rows land atomically.
func (r *scheduleRepository) ChainWithHistory(ctx context.Context, completed, next *models.Schedule) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Schedule
		if err := lockForUpdate(tx).First(&current, completed.ID).Error; err != nil {
			return err
		}

		if err := tx.Save(completed).Error; err != nil {
			return err
		}
		if err := appendHistory(tx, *completed); err != nil {
			return err
		}

		if err := tx.Save(next).Error; err != nil {
			return err
		}

		return appendHistory(tx, *next)
	})
}

func (r *scheduleRepository) History(ctx context.Context, prisonNumber string, kind models.ScheduleKind) ([]models.ScheduleHistory, error) {
	var history []models.ScheduleHistory
	err := r.db.WithContext(ctx).
		Where("prison_number = ? AND kind = ?", prisonNumber, kind).
		Order("version ASC").
		Find(&history).Error
	if err != nil {
		return nil, err
	}

	return history, nil
}

// appendHistory snapshots the schedule with the next version for its
// (person, kind) timeline. Versions are assigned inside the caller's
// transaction, never from wall-clock time, so concurrent appends for one
// person cannot reorder.
func appendHistory(tx *gorm.DB, schedule models.Schedule) error {
	var latest models.ScheduleHistory
	version := 1
	revision := 0
	err := tx.
		Where("prison_number = ? AND kind = ?", schedule.PrisonNumber, schedule.Kind).
		Order("version DESC").
		First(&latest).Error
	if err == nil {
		version = latest.Version + 1
		// Revisions count within one schedule instance; a fresh reference
		// (a chained next schedule) restarts at zero.
		if latest.Reference == schedule.Reference {
			revision = latest.RevisionNumber + 1
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	row := schedule.Snapshot(revision)
	row.Version = version

	return tx.Create(&row).Error
}

// lockForUpdate takes a row lock on engines that support it. SQLite (used in
// tests) has no FOR UPDATE; its single-writer model covers the same race.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
