package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/living-legends/internal/model"
)

// StoryListItem 列表页条目
type StoryListItem struct {
	model.Story
	CommentCount int64 `json:"comment_count"`
}

type StoryRepository interface {
	WithTx(tx *gorm.DB) StoryRepository
	Create(ctx context.Context, s *model.Story) error
	Get(ctx context.Context, id string) (*model.Story, error)
	List(ctx context.Context, offset, limit int) ([]StoryListItem, int64, error)
	CountActive(ctx context.Context) (int64, error)
	ListUnlocked(ctx context.Context) ([]*model.Story, error)
	SaveState(ctx context.Context, s *model.Story) error
	IncrementViews(ctx context.Context, id string) error
	// IncrementUserComments 原子加一并返回新值
	IncrementUserComments(ctx context.Context, id string) (int, error)
	// IncrementEvidence 按类型累加证据计数并返回更新后的故事
	IncrementEvidence(ctx context.Context, id string, kind model.EvidenceKind, now time.Time) (*model.Story, error)
	AppendBody(ctx context.Context, id, text string, now time.Time) error
	AIGeneratedIDs(ctx context.Context) ([]string, error)
	DeleteByIDs(ctx context.Context, ids []string) error
}

type storyRepository struct {
	db *gorm.DB
}

func NewStoryRepository(db *gorm.DB) StoryRepository { return &storyRepository{db: db} }

func (r *storyRepository) WithTx(tx *gorm.DB) StoryRepository { return &storyRepository{db: tx} }

func (r *storyRepository) Create(ctx context.Context, s *model.Story) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *storyRepository) Get(ctx context.Context, id string) (*model.Story, error) {
	var s model.Story
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *storyRepository) List(ctx context.Context, offset, limit int) ([]StoryListItem, int64, error) {
	// init 状态尚未发布，不出现在列表中
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Story{}).
		Where("current_state <> ?", model.StateInit).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var stories []model.Story
	if err := r.db.WithContext(ctx).
		Where("current_state <> ?", model.StateInit).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&stories).Error; err != nil {
		return nil, 0, err
	}
	if len(stories) == 0 {
		return []StoryListItem{}, total, nil
	}
	ids := make([]string, len(stories))
	for i, s := range stories {
		ids[i] = s.ID
	}
	type row struct {
		StoryID string
		Cnt     int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&model.Comment{}).
		Select("story_id, COUNT(*) AS cnt").
		Where("story_id IN ?", ids).
		Group("story_id").
		Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	counts := make(map[string]int64, len(rows))
	for _, rw := range rows {
		counts[rw.StoryID] = rw.Cnt
	}
	items := make([]StoryListItem, len(stories))
	for i, s := range stories {
		items[i] = StoryListItem{Story: s, CommentCount: counts[s.ID]}
	}
	return items, total, nil
}

func (r *storyRepository) CountActive(ctx context.Context) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Story{}).Where("current_state IN ?", model.ActiveStates).Count(&cnt).Error
	return cnt, err
}

func (r *storyRepository) ListUnlocked(ctx context.Context) ([]*model.Story, error) {
	var res []*model.Story
	err := r.db.WithContext(ctx).Where("current_state <> ?", model.StateLocked).Order("created_at").Find(&res).Error
	return res, err
}

func (r *storyRepository) SaveState(ctx context.Context, s *model.Story) error {
	return r.db.WithContext(ctx).Model(&model.Story{}).Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"current_state": s.CurrentState,
			"state_data":    s.StateData,
		}).Error
}

func (r *storyRepository) IncrementViews(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.Story{}).Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1)).Error
}

func (r *storyRepository) IncrementUserComments(ctx context.Context, id string) (int, error) {
	res := r.db.WithContext(ctx).Model(&model.Story{}).Where("id = ?", id).
		UpdateColumn("user_comment_count", gorm.Expr("user_comment_count + ?", 1))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	// 同一事务内读取本次写入后的值（postgres 行锁 / sqlite 单写者保证唯一）
	var n int
	if err := r.db.WithContext(ctx).Model(&model.Story{}).Where("id = ?", id).
		Select("user_comment_count").Scan(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *storyRepository) IncrementEvidence(ctx context.Context, id string, kind model.EvidenceKind, now time.Time) (*model.Story, error) {
	updates := map[string]interface{}{
		"evidence_count": gorm.Expr("evidence_count + ?", 1),
		"updated_at":     now,
	}
	switch kind {
	case model.EvidenceAudio:
		updates["audio_count"] = gorm.Expr("audio_count + ?", 1)
	case model.EvidenceImage:
		updates["image_count"] = gorm.Expr("image_count + ?", 1)
	}
	res := r.db.WithContext(ctx).Model(&model.Story{}).Where("id = ?", id).UpdateColumns(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *storyRepository) AppendBody(ctx context.Context, id, text string, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Story{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"body":       gorm.Expr("body || ?", text),
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *storyRepository) AIGeneratedIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Story{}).Where("is_ai_generated = ?", true).Pluck("id", &ids).Error
	return ids, err
}

func (r *storyRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.Story{}).Error
}
