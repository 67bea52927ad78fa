package postgres

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shivanandham/pregnancy-assistant/internal/domain"
	"gorm.io/gorm"
)

type factRepository struct {
	db *gorm.DB
}

func NewFactRepository(db *gorm.DB) *factRepository {
	return &factRepository{db: db}
}

func (r *factRepository) Create(ctx context.Context, fact *domain.KnowledgeFact) error {
	return r.db.WithContext(ctx).Create(fact).Error
}

// Search matches any keyword as a substring of the fact text or category,
// case-insensitively. Keywords are OR-joined.
func (r *factRepository) Search(ctx context.Context, userID uuid.UUID, keywords []string, limit int) ([]*domain.KnowledgeFact, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	q := r.db.WithContext(ctx).Where("user_id = ?", userID)

	var conds []string
	var args []interface{}
	for _, kw := range keywords {
		conds = append(conds, "fact_text ILIKE ? OR category ILIKE ?")
		pattern := "%" + escapeLike(kw) + "%"
		args = append(args, pattern, pattern)
	}
	q = q.Where(strings.Join(conds, " OR "), args...)

	var facts []*domain.KnowledgeFact
	err := q.Order("created_at DESC").Limit(limit).Find(&facts).Error
	return facts, err
}

func (r *factRepository) GetRecentByCategory(ctx context.Context, userID uuid.UUID, category domain.FactCategory, limit int) ([]*domain.KnowledgeFact, error) {
	var facts []*domain.KnowledgeFact
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND category = ?", userID, category).
		Order("created_at DESC").
		Limit(limit).
		Find(&facts).Error
	return facts, err
}

func (r *factRepository) List(ctx context.Context, userID uuid.UUID, category string, limit int) ([]*domain.KnowledgeFact, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if category != "" {
		q = q.Where("category = ?", category)
	}

	var facts []*domain.KnowledgeFact
	err := q.Order("created_at DESC").Limit(limit).Find(&facts).Error
	return facts, err
}

func (r *factRepository) CountByCategory(ctx context.Context, userID uuid.UUID) (map[string]int64, error) {
	type row struct {
		Category string
		Count    int64
	}

	var rows []row
	err := r.db.WithContext(ctx).
		Model(&domain.KnowledgeFact{}).
		Select("category, count(*) as count").
		Where("user_id = ?", userID).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Category] = r.Count
	}
	return counts, nil
}

func (r *factRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		Delete(&domain.KnowledgeFact{}).Error
}

func (r *factRepository) DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.KnowledgeFact{})
	return res.RowsAffected, res.Error
}

// escapeLike escapes LIKE wildcards so keywords match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
