package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/living-legends/internal/metrics"
	"github.com/d60-Lab/living-legends/internal/model"
	"github.com/d60-Lab/living-legends/internal/repository"
	"github.com/d60-Lab/living-legends/internal/storylock"
	"github.com/d60-Lab/living-legends/internal/storystate"
	"github.com/d60-Lab/living-legends/pkg/logger"
)

const maxCommentLen = 2000

// SubmitResult 评论提交结果
type SubmitResult struct {
	Comment          *model.Comment
	UserCommentCount int
	ReplyJobID       string
	EvidenceJobID    string
}

// CommentService 用户评论提交：写评论、记互动、排回复任务、到阈值时排证据任务
type CommentService struct {
	Deps
	stories  repository.StoryRepository
	comments repository.CommentRepository
	jobs     repository.JobRepository
	waker    interface{ Wake() }
}

func NewCommentService(d Deps, waker interface{ Wake() }) *CommentService {
	d = d.withDefaults()
	return &CommentService{
		Deps:     d,
		stories:  repository.NewStoryRepository(d.DB),
		comments: repository.NewCommentRepository(d.DB),
		jobs:     repository.NewJobRepository(d.DB),
		waker:    waker,
	}
}

// Submit 在故事锁内的单个事务中完成全部写入，计数与取模判断因此是原子的。
// 持久化失败直接返回给调用方；回复和证据在任务中异步产生。
func (s *CommentService) Submit(ctx context.Context, storyID, userID, body string) (*SubmitResult, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyComment
	}
	if utf8.RuneCountInString(body) > maxCommentLen {
		body = string([]rune(body)[:maxCommentLen])
	}

	unlock, err := s.Locker.Lock(ctx, storylock.StoryKey(storyID))
	if err != nil {
		return nil, fmt.Errorf("lock story: %w", err)
	}
	// 发布事件前释放
	unlock = sync.OnceFunc(unlock)
	defer unlock()

	now := s.Clock()
	threshold := s.Engine.EvidenceThreshold
	var (
		res    SubmitResult
		rows   []model.Notification
		replyJ *model.Job
		evJ    *model.Job
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stories := s.stories.WithTx(tx)
		story, err := stories.Get(ctx, storyID)
		if err != nil {
			return storyErr(err)
		}
		if !storystate.IsPublished(story) {
			return ErrStoryNotFound
		}
		if storystate.IsLocked(story) {
			return ErrStoryLocked
		}

		author := userID
		c := &model.Comment{ID: uuid.New().String(), StoryID: storyID, AuthorID: &author, Body: body, CreatedAt: now}
		if err := s.comments.WithTx(tx).Create(ctx, c); err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		res.Comment = c

		storystate.RecordInteraction(story)
		if err := stories.SaveState(ctx, story); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
		count, err := stories.IncrementUserComments(ctx, storyID)
		if err != nil {
			return storyErr(err)
		}
		res.UserCommentCount = count

		rows, err = s.Notifier.Build(ctx, tx, Fanout{
			StoryID:   storyID,
			ActorID:   userID,
			CommentID: &c.ID,
			Category:  model.CategoryComment,
			Type:      model.TypeNewReply,
			Content:   fmt.Sprintf(s.Catalog.Notifications.NewReply, story.Title),
		})
		if err != nil {
			return fmt.Errorf("build notifications: %w", err)
		}
		if err := s.Notifier.Deliver(ctx, tx, rows); err != nil {
			return fmt.Errorf("deliver notifications: %w", err)
		}

		jobs := s.jobs.WithTx(tx)
		replyJ = NewReplyJob(storyID, c.ID, now.Add(s.Engine.ReplyDelay))
		if _, err := jobs.Create(ctx, replyJ); err != nil {
			return fmt.Errorf("schedule reply: %w", err)
		}
		res.ReplyJobID = replyJ.ID

		if count >= threshold && count%threshold == 0 {
			evJ = NewEvidenceJob(storyID, c.ID, count, now)
			created, err := jobs.Create(ctx, evJ)
			if err != nil {
				return fmt.Errorf("schedule evidence: %w", err)
			}
			if created {
				res.EvidenceJobID = evJ.ID
			} else {
				logger.Info("evidence trigger already scheduled",
					zap.String("story_id", storyID), zap.Int("count", count), zap.Error(ErrDuplicateTrigger))
				evJ = nil
			}
		}
		return nil
	})
	unlock()
	if err != nil {
		return nil, err
	}

	s.Notifier.Publish(ctx, rows)
	metrics.JobsEnqueued.WithLabelValues(string(model.JobReply)).Inc()
	if evJ != nil {
		metrics.JobsEnqueued.WithLabelValues(string(model.JobEvidence)).Inc()
	}
	s.Feed.Invalidate(ctx)
	if s.waker != nil {
		s.waker.Wake()
	}
	return &res, nil
}
