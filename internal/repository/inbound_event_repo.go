package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/models"
)

// InboundEventRepository is the append-only ledger of consumed lifecycle
// messages, keyed by transport message id.
type InboundEventRepository interface {
	Seen(ctx context.Context, messageID string) (bool, error)
	Record(ctx context.Context, event *models.InboundEvent) error
}

type inboundEventRepository struct {
	db *gorm.DB
}

// NewInboundEventRepository instantiates a GORM-backed repository.
func NewInboundEventRepository(db *gorm.DB) InboundEventRepository {
	return &inboundEventRepository{db: db}
}

func (r *inboundEventRepository) Seen(ctx context.Context, messageID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.InboundEvent{}).
		Where("message_id = ?", messageID).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *inboundEventRepository) Record(ctx context.Context, event *models.InboundEvent) error {
	err := r.db.WithContext(ctx).Create(event).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return gorm.ErrDuplicatedKey
	}

	return err
}
