package repositories

import (
	"context"
	"fmt"
	"time"

	"shophub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMWebhookEventRepository is a GORM implementation of WebhookEventRepository.
type GORMWebhookEventRepository struct {
	db *gorm.DB
}

func NewGORMWebhookEventRepository(db *gorm.DB) *GORMWebhookEventRepository {
	return &GORMWebhookEventRepository{db: db}
}

func (r *GORMWebhookEventRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to look up webhook event %s: %w", eventID, err)
	}
	return count > 0, nil
}

// MarkProcessed records the event. Recording the same id twice is not an error.
func (r *GORMWebhookEventRepository) MarkProcessed(ctx context.Context, eventID, eventType string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&models.WebhookEvent{
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now(),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to record webhook event %s: %w", eventID, err)
	}
	return nil
}
