package postgres

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shivanandham/pregnancy-assistant/internal/domain"
	"gorm.io/gorm"
)

type chunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *chunkRepository {
	return &chunkRepository{db: db}
}

func (r *chunkRepository) Create(ctx context.Context, chunk *domain.ConversationChunk) error {
	return r.db.WithContext(ctx).Create(chunk).Error
}

func (r *chunkRepository) Search(ctx context.Context, userID uuid.UUID, keywords []string, limit int) ([]*domain.ConversationChunk, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	q := r.db.WithContext(ctx).Where("user_id = ?", userID)

	var conds []string
	var args []interface{}
	for _, kw := range keywords {
		conds = append(conds, "content ILIKE ? OR keywords ILIKE ?")
		pattern := "%" + escapeLike(kw) + "%"
		args = append(args, pattern, pattern)
	}
	q = q.Where(strings.Join(conds, " OR "), args...)

	var chunks []*domain.ConversationChunk
	err := q.Order("created_at DESC").Limit(limit).Find(&chunks).Error
	return chunks, err
}

func (r *chunkRepository) GetRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ConversationChunk, error) {
	var chunks []*domain.ConversationChunk
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&chunks).Error
	return chunks, err
}

func (r *chunkRepository) List(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ConversationChunk, error) {
	return r.GetRecent(ctx, userID, limit)
}

func (r *chunkRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		Delete(&domain.ConversationChunk{}).Error
}

func (r *chunkRepository) DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.ConversationChunk{})
	return res.RowsAffected, res.Error
}
