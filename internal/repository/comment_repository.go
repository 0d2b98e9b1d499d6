package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/living-legends/internal/model"
)

type CommentRepository interface {
	WithTx(tx *gorm.DB) CommentRepository
	Create(ctx context.Context, c *model.Comment) error
	CreateBatch(ctx context.Context, cs []model.Comment) error
	Get(ctx context.Context, id string) (*model.Comment, error)
	ListByStory(ctx context.Context, storyID string) ([]*model.Comment, error)
	// RecentAIReplies 最近 k 条楼主回复，按时间正序返回
	RecentAIReplies(ctx context.Context, storyID string, k int) ([]*model.Comment, error)
	// RecentUserComments 最近 n 条用户评论（不含 excludeID），按时间倒序
	RecentUserComments(ctx context.Context, storyID, excludeID string, n int) ([]*model.Comment, error)
	CommenterIDs(ctx context.Context, storyID string) ([]string, error)
	DeleteByStories(ctx context.Context, storyIDs []string) error
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository { return &commentRepository{db: db} }

func (r *commentRepository) WithTx(tx *gorm.DB) CommentRepository { return &commentRepository{db: tx} }

func (r *commentRepository) Create(ctx context.Context, c *model.Comment) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *commentRepository) CreateBatch(ctx context.Context, cs []model.Comment) error {
	if len(cs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&cs).Error
}

func (r *commentRepository) Get(ctx context.Context, id string) (*model.Comment, error) {
	var c model.Comment
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *commentRepository) ListByStory(ctx context.Context, storyID string) ([]*model.Comment, error) {
	var res []*model.Comment
	err := r.db.WithContext(ctx).Where("story_id = ?", storyID).Order("created_at, id").Find(&res).Error
	return res, err
}

func (r *commentRepository) RecentAIReplies(ctx context.Context, storyID string, k int) ([]*model.Comment, error) {
	if k <= 0 {
		return nil, nil
	}
	var res []*model.Comment
	if err := r.db.WithContext(ctx).
		Where("story_id = ? AND is_ai_reply = ?", storyID, true).
		Order("created_at DESC, id DESC").
		Limit(k).
		Find(&res).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, nil
}

func (r *commentRepository) RecentUserComments(ctx context.Context, storyID, excludeID string, n int) ([]*model.Comment, error) {
	if n <= 0 {
		return nil, nil
	}
	var res []*model.Comment
	err := r.db.WithContext(ctx).
		Where("story_id = ? AND is_ai_reply = ? AND id <> ?", storyID, false, excludeID).
		Order("created_at DESC").
		Limit(n).
		Find(&res).Error
	return res, err
}

func (r *commentRepository) CommenterIDs(ctx context.Context, storyID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Comment{}).
		Where("story_id = ? AND is_ai_reply = ? AND author_id IS NOT NULL", storyID, false).
		Distinct("author_id").
		Pluck("author_id", &ids).Error
	return ids, err
}

func (r *commentRepository) DeleteByStories(ctx context.Context, storyIDs []string) error {
	if len(storyIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("story_id IN ?", storyIDs).Delete(&model.Comment{}).Error
}
