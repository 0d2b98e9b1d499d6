package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/living-legends/internal/model"
)

type FollowRepository interface {
	WithTx(tx *gorm.DB) FollowRepository
	Create(ctx context.Context, userID, storyID string) error
	Delete(ctx context.Context, userID, storyID string) error
	Exists(ctx context.Context, userID, storyID string) (bool, error)
	FollowerIDs(ctx context.Context, storyID string) ([]string, error)
	DeleteByStories(ctx context.Context, storyIDs []string) error
}

type followRepository struct {
	db *gorm.DB
}

func NewFollowRepository(db *gorm.DB) FollowRepository { return &followRepository{db: db} }

func (r *followRepository) WithTx(tx *gorm.DB) FollowRepository { return &followRepository{db: tx} }

func (r *followRepository) Create(ctx context.Context, userID, storyID string) error {
	f := &model.Follow{ID: uuid.New().String(), UserID: userID, StoryID: storyID, CreatedAt: time.Now()}
	// 幂等：重复关注不报错
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(f).Error
}

func (r *followRepository) Delete(ctx context.Context, userID, storyID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND story_id = ?", userID, storyID).
		Delete(&model.Follow{}).Error
}

func (r *followRepository) Exists(ctx context.Context, userID, storyID string) (bool, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.Follow{}).
		Where("user_id = ? AND story_id = ?", userID, storyID).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *followRepository) FollowerIDs(ctx context.Context, storyID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Follow{}).
		Where("story_id = ?", storyID).
		Order("created_at").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *followRepository) DeleteByStories(ctx context.Context, storyIDs []string) error {
	if len(storyIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("story_id IN ?", storyIDs).Delete(&model.Follow{}).Error
}
