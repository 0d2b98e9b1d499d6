package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/living-legends/internal/messaging"
	"github.com/d60-Lab/living-legends/internal/metrics"
	"github.com/d60-Lab/living-legends/internal/model"
	"github.com/d60-Lab/living-legends/internal/repository"
	"github.com/d60-Lab/living-legends/pkg/logger"
)

// Fanout 一次通知扇出
type Fanout struct {
	StoryID   string
	ActorID   string
	CommentID *string
	Category  model.NotificationCategory
	Type      model.NotificationType
	Content   string
}

// Notifier 计算收件人（关注者 ∪ 评论者）并整批写入通知
type Notifier struct {
	db       *gorm.DB
	follows  repository.FollowRepository
	comments repository.CommentRepository
	notes    repository.NotificationRepository
	pub      messaging.Publisher
	now      func() time.Time
	inflight sync.WaitGroup
}

// publishTimeout 单次后台发布的时限
const publishTimeout = 30 * time.Second

func NewNotifier(db *gorm.DB, pub messaging.Publisher) *Notifier {
	if pub == nil {
		pub = messaging.Nop{}
	}
	return &Notifier{
		db:       db,
		follows:  repository.NewFollowRepository(db),
		comments: repository.NewCommentRepository(db),
		notes:    repository.NewNotificationRepository(db),
		pub:      pub,
		now:      time.Now,
	}
}

// Recipients 关注者在前、评论者在后，去重；exclude 非空时剔除
func (n *Notifier) Recipients(ctx context.Context, tx *gorm.DB, storyID, exclude string) ([]string, error) {
	follows, comments := n.follows, n.comments
	if tx != nil {
		follows, comments = follows.WithTx(tx), comments.WithTx(tx)
	}
	followers, err := follows.FollowerIDs(ctx, storyID)
	if err != nil {
		return nil, err
	}
	commenters, err := comments.CommenterIDs(ctx, storyID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(followers)+len(commenters))
	out := make([]string, 0, len(followers)+len(commenters))
	for _, list := range [][]string{followers, commenters} {
		for _, id := range list {
			if id == "" || id == exclude {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out, nil
}

// Build 生成扇出通知行但不落库。comment 类不通知 actor 本人，evidence 类不排除
func (n *Notifier) Build(ctx context.Context, tx *gorm.DB, f Fanout) ([]model.Notification, error) {
	exclude := ""
	if f.Category == model.CategoryComment {
		exclude = f.ActorID
	}
	ids, err := n.Recipients(ctx, tx, f.StoryID, exclude)
	if err != nil {
		return nil, err
	}
	return n.Rows(ids, f), nil
}

// Rows 为给定收件人生成通知行
func (n *Notifier) Rows(recipients []string, f Fanout) []model.Notification {
	now := n.now()
	rows := make([]model.Notification, 0, len(recipients))
	for _, r := range recipients {
		rows = append(rows, model.Notification{
			ID:          uuid.New().String(),
			RecipientID: r,
			StoryID:     f.StoryID,
			CommentID:   f.CommentID,
			Category:    f.Category,
			Type:        f.Type,
			Content:     f.Content,
			CreatedAt:   now,
		})
	}
	return rows
}

// Deliver 在调用方事务内一次写入全部通知
func (n *Notifier) Deliver(ctx context.Context, tx *gorm.DB, rows []model.Notification) error {
	notes := n.notes
	if tx != nil {
		notes = notes.WithTx(tx)
	}
	return notes.CreateBatch(ctx, rows)
}

// Publish 事务提交后在后台推送事件，不阻塞调用方；失败只记日志。
// 调用方应先释放故事锁再调用。
func (n *Notifier) Publish(ctx context.Context, rows []model.Notification) {
	if len(rows) == 0 {
		return
	}
	for _, r := range rows {
		metrics.NotificationsCreated.WithLabelValues(string(r.Category), string(r.Type)).Inc()
	}
	events := messaging.FromNotifications(rows)
	storyID := rows[0].StoryID
	pctx := context.WithoutCancel(ctx)
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		ctx, cancel := context.WithTimeout(pctx, publishTimeout)
		defer cancel()
		if err := n.pub.Publish(ctx, events); err != nil {
			logger.Warn("publish notification events failed",
				zap.String("story_id", storyID), zap.Int("count", len(events)), zap.Error(err))
		}
	}()
}

// Flush 等待后台发布全部结束
func (n *Notifier) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify 独立事务完成一次扇出，要么全部写入要么全部不写
func (n *Notifier) Notify(ctx context.Context, f Fanout) ([]model.Notification, error) {
	var rows []model.Notification
	err := n.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if rows, err = n.Build(ctx, tx, f); err != nil {
			return err
		}
		return n.Deliver(ctx, tx, rows)
	})
	if err != nil {
		return nil, err
	}
	n.Publish(ctx, rows)
	return rows, nil
}
