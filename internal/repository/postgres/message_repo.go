package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/shivanandham/pregnancy-assistant/internal/domain"
	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *messageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) GetRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	var msgs []*domain.ChatMessage
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}
