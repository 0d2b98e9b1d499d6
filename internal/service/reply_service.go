package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/living-legends/internal/generator"
	"github.com/d60-Lab/living-legends/internal/metrics"
	"github.com/d60-Lab/living-legends/internal/model"
	"github.com/d60-Lab/living-legends/internal/repository"
	"github.com/d60-Lab/living-legends/internal/sanitize"
	"github.com/d60-Lab/living-legends/internal/storylock"
	"github.com/d60-Lab/living-legends/internal/storystate"
	"github.com/d60-Lab/living-legends/pkg/logger"
)

// ReplyService 楼主延迟回复任务
type ReplyService struct {
	Deps
	stories  repository.StoryRepository
	comments repository.CommentRepository
	text     generator.TextGenerator
	pipeline *sanitize.Pipeline
	log      *zap.Logger
}

func NewReplyService(d Deps, text generator.TextGenerator, opts ...sanitize.Option) *ReplyService {
	d = d.withDefaults()
	if text == nil {
		text = generator.Offline{}
	}
	return &ReplyService{
		Deps:     d,
		stories:  repository.NewStoryRepository(d.DB),
		comments: repository.NewCommentRepository(d.DB),
		text:     text,
		pipeline: sanitize.New(d.Engine.ReplyMaxLen, d.Catalog.ReplyTemplates, opts...),
		log:      logger.Named("reply"),
	}
}

func (s *ReplyService) Handle(ctx context.Context, job *model.Job) error {
	_, err := s.Reply(ctx, job.StoryID, job.CommentID)
	return err
}

// Reply 同一故事的回复任务串行执行；历史回复在执行时读取。
// 等锁和读取不受任务时限约束，时限只覆盖生成调用；生成失败或超时一律落到模板回复。
func (s *ReplyService) Reply(ctx context.Context, storyID, commentID string) (*model.Comment, error) {
	base := context.WithoutCancel(ctx)
	unlock, err := s.Locker.Lock(base, storylock.ReplyKey(storyID))
	if err != nil {
		return nil, fmt.Errorf("lock reply: %w", err)
	}
	defer unlock()

	story, err := s.stories.Get(base, storyID)
	if err != nil {
		return nil, storyErr(err)
	}
	trigger, err := s.comments.Get(base, commentID)
	if err != nil {
		return nil, commentErr(err)
	}
	if trigger.StoryID != storyID {
		return nil, ErrCommentNotFound
	}
	history, err := s.comments.RecentAIReplies(base, storyID, s.Engine.ReplyHistory)
	if err != nil {
		return nil, err
	}
	prior := make([]string, len(history))
	for i, h := range history {
		prior[i] = h.Body
	}

	gctx, cancel := StartBudget(ctx)
	text, stage := s.generate(gctx, story, trigger, prior)
	cancel()
	metrics.ReplyStage.WithLabelValues(stage).Inc()

	pctx, cancel := context.WithTimeout(base, 10*time.Second)
	defer cancel()
	return s.persist(pctx, story, trigger, text)
}

func (s *ReplyService) generate(ctx context.Context, story *model.Story, trigger *model.Comment, prior []string) (string, string) {
	raw, err := s.text.GenerateReply(ctx, generator.ReplyRequest{
		StoryTitle: story.Title,
		StoryBody:  story.Body,
		Persona:    story.Persona,
		Comment:    trigger.Body,
		History:    prior,
	})
	if err != nil {
		s.log.Warn("reply generation failed, using template",
			zap.String("story_id", story.ID), zap.String("comment_id", trigger.ID), zap.Error(err))
		return s.pipeline.Template(), "template"
	}
	res := s.pipeline.Clean(raw)
	if res.Fallback {
		s.log.Warn("reply rejected by sanitizer, using template",
			zap.String("story_id", story.ID), zap.String("comment_id", trigger.ID))
	}
	return res.Text, res.Stage
}

func (s *ReplyService) persist(ctx context.Context, story *model.Story, trigger *model.Comment, text string) (*model.Comment, error) {
	unlock, err := s.Locker.Lock(ctx, storylock.StoryKey(story.ID))
	if err != nil {
		return nil, fmt.Errorf("lock story: %w", err)
	}
	// 发布事件前释放
	unlock = sync.OnceFunc(unlock)
	defer unlock()

	reply := &model.Comment{ID: uuid.New().String(), StoryID: story.ID, Body: text, IsAIReply: true, CreatedAt: s.Clock()}
	var rows []model.Notification
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.stories.WithTx(tx).Get(ctx, story.ID)
		if err != nil {
			return storyErr(err)
		}
		if storystate.IsLocked(current) {
			return ErrStoryLocked
		}
		if err := s.comments.WithTx(tx).Create(ctx, reply); err != nil {
			return fmt.Errorf("create reply: %w", err)
		}

		texts := s.Catalog.Notifications
		commenter := ""
		if trigger.AuthorID != nil {
			commenter = *trigger.AuthorID
			rows = append(rows, s.Notifier.Rows([]string{commenter}, Fanout{
				StoryID:   story.ID,
				CommentID: &reply.ID,
				Category:  model.CategoryComment,
				Type:      model.TypeAIReply,
				Content:   fmt.Sprintf(texts.AIReply, current.Title),
			})...)
		}
		others, err := s.Notifier.Build(ctx, tx, Fanout{
			StoryID:   story.ID,
			ActorID:   commenter,
			CommentID: &reply.ID,
			Category:  model.CategoryComment,
			Type:      model.TypeStoryUpdate,
			Content:   fmt.Sprintf(texts.StoryUpdate, current.Title),
		})
		if err != nil {
			return err
		}
		rows = append(rows, others...)
		return s.Notifier.Deliver(ctx, tx, rows)
	})
	unlock()
	if err != nil {
		return nil, err
	}
	s.Notifier.Publish(ctx, rows)
	s.Feed.Invalidate(ctx)
	return reply, nil
}
