package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/living-legends/internal/model"
)

type CategoryClickRepository interface {
	// Track 点击数加一并返回累计值
	Track(ctx context.Context, userID, category string) (int, error)
	Top(ctx context.Context, userID string, limit int) ([]model.CategoryClick, error)
}

type categoryClickRepository struct {
	db *gorm.DB
}

func NewCategoryClickRepository(db *gorm.DB) CategoryClickRepository {
	return &categoryClickRepository{db: db}
}

func (r *categoryClickRepository) Track(ctx context.Context, userID, category string) (int, error) {
	now := time.Now()
	row := &model.CategoryClick{ID: uuid.New().String(), UserID: userID, Category: category, ClickCount: 1, UpdatedAt: now}
	var count int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 并发点击由唯一索引上的 upsert 合并
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "category"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"click_count": gorm.Expr("category_clicks.click_count + 1"),
				"updated_at":  now,
			}),
		}).Create(row).Error; err != nil {
			return err
		}
		return tx.Model(&model.CategoryClick{}).
			Where("user_id = ? AND category = ?", userID, category).
			Pluck("click_count", &count).Error
	})
	return count, err
}

func (r *categoryClickRepository) Top(ctx context.Context, userID string, limit int) ([]model.CategoryClick, error) {
	var out []model.CategoryClick
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("click_count DESC, updated_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
