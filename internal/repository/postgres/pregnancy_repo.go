package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shivanandham/pregnancy-assistant/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type pregnancyRepository struct {
	db *gorm.DB
}

func NewPregnancyRepository(db *gorm.DB) *pregnancyRepository {
	return &pregnancyRepository{db: db}
}

func (r *pregnancyRepository) Upsert(ctx context.Context, p *domain.Pregnancy) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"due_date", "updated_at"}),
		}).
		Create(p).Error
}

func (r *pregnancyRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Pregnancy, error) {
	var p domain.Pregnancy
	err := r.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
