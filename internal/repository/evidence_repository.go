package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/living-legends/internal/model"
)

type EvidenceRepository interface {
	WithTx(tx *gorm.DB) EvidenceRepository
	Create(ctx context.Context, e *model.Evidence) error
	ListByStory(ctx context.Context, storyID string) ([]*model.Evidence, error)
	CountByKind(ctx context.Context, storyID string, kind model.EvidenceKind) (int64, error)
	DeleteByStories(ctx context.Context, storyIDs []string) error
}

type evidenceRepository struct {
	db *gorm.DB
}

func NewEvidenceRepository(db *gorm.DB) EvidenceRepository { return &evidenceRepository{db: db} }

func (r *evidenceRepository) WithTx(tx *gorm.DB) EvidenceRepository { return &evidenceRepository{db: tx} }

func (r *evidenceRepository) Create(ctx context.Context, e *model.Evidence) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *evidenceRepository) ListByStory(ctx context.Context, storyID string) ([]*model.Evidence, error) {
	var res []*model.Evidence
	err := r.db.WithContext(ctx).Where("story_id = ?", storyID).Order("created_at, id").Find(&res).Error
	return res, err
}

func (r *evidenceRepository) CountByKind(ctx context.Context, storyID string, kind model.EvidenceKind) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Evidence{}).Where("story_id = ? AND kind = ?", storyID, kind).Count(&cnt).Error
	return cnt, err
}

func (r *evidenceRepository) DeleteByStories(ctx context.Context, storyIDs []string) error {
	if len(storyIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("story_id IN ?", storyIDs).Delete(&model.Evidence{}).Error
}
