package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/living-legends/internal/model"
)

// JobRepository 延迟任务外发盒
type JobRepository interface {
	WithTx(tx *gorm.DB) JobRepository
	// Create 按 DedupeKey 幂等插入，created=false 表示已存在
	Create(ctx context.Context, j *model.Job) (created bool, err error)
	Get(ctx context.Context, id string) (*model.Job, error)
	GetByDedupeKey(ctx context.Context, key string) (*model.Job, error)
	Due(ctx context.Context, now time.Time, limit int) ([]*model.Job, error)
	// Claim CAS 抢占 pending 任务，成功返回 true
	Claim(ctx context.Context, id string, now time.Time) (bool, error)
	Complete(ctx context.Context, id string, now time.Time) error
	// Retry 回到 pending 并推迟 runAt
	Retry(ctx context.Context, id string, runAt time.Time, cause string) error
	Fail(ctx context.Context, id string, now time.Time, cause string) error
	// RequeueStale 把超时未完成的 processing 任务放回队列
	RequeueStale(ctx context.Context, before time.Time) (int64, error)
	CountByStatus(ctx context.Context, status model.JobStatus) (int64, error)
	DeleteByStories(ctx context.Context, storyIDs []string) error
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository { return &jobRepository{db: db} }

func (r *jobRepository) WithTx(tx *gorm.DB) JobRepository { return &jobRepository{db: tx} }

func (r *jobRepository) Create(ctx context.Context, j *model.Job) (bool, error) {
	if j.Status == "" {
		j.Status = model.JobPending
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedupe_key"}}, DoNothing: true}).
		Create(j)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRepository) Get(ctx context.Context, id string) (*model.Job, error) {
	var j model.Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &j, nil
}

func (r *jobRepository) GetByDedupeKey(ctx context.Context, key string) (*model.Job, error) {
	var j model.Job
	if err := r.db.WithContext(ctx).First(&j, "dedupe_key = ?", key).Error; err != nil {
		return nil, translate(err)
	}
	return &j, nil
}

func (r *jobRepository) Due(ctx context.Context, now time.Time, limit int) ([]*model.Job, error) {
	var res []*model.Job
	err := r.db.WithContext(ctx).
		Where("status = ? AND run_at <= ?", model.JobPending, now).
		Order("run_at, created_at").
		Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *jobRepository) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Job{}).
		Where("id = ? AND status = ?", id, model.JobPending).
		UpdateColumns(map[string]interface{}{
			"status":     model.JobProcessing,
			"attempts":   gorm.Expr("attempts + ?", 1),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *jobRepository) Complete(ctx context.Context, id string, now time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Job{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"status":       model.JobDone,
			"processed_at": now,
			"updated_at":   now,
			"last_error":   "",
		}).Error
}

func (r *jobRepository) Retry(ctx context.Context, id string, runAt time.Time, cause string) error {
	return r.db.WithContext(ctx).Model(&model.Job{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"status":     model.JobPending,
			"run_at":     runAt,
			"last_error": cause,
			"updated_at": time.Now(),
		}).Error
}

func (r *jobRepository) Fail(ctx context.Context, id string, now time.Time, cause string) error {
	return r.db.WithContext(ctx).Model(&model.Job{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"status":       model.JobFailed,
			"last_error":   cause,
			"processed_at": now,
			"updated_at":   now,
		}).Error
}

func (r *jobRepository) RequeueStale(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Job{}).
		Where("status = ? AND updated_at < ?", model.JobProcessing, before).
		UpdateColumns(map[string]interface{}{
			"status":     model.JobPending,
			"updated_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

func (r *jobRepository) CountByStatus(ctx context.Context, status model.JobStatus) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Job{}).Where("status = ?", status).Count(&cnt).Error
	return cnt, err
}

func (r *jobRepository) DeleteByStories(ctx context.Context, storyIDs []string) error {
	if len(storyIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("story_id IN ?", storyIDs).Delete(&model.Job{}).Error
}
