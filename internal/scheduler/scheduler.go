// Package scheduler 定时任务：生成新故事、推进状态机、定时重置种子帖。
// 本包只实现 tick 的语义，计时由 Driver 或外部调用方负责。
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/living-legends/config"
	"github.com/d60-Lab/living-legends/internal/cache"
	"github.com/d60-Lab/living-legends/internal/catalog"
	"github.com/d60-Lab/living-legends/internal/generator"
	"github.com/d60-Lab/living-legends/internal/metrics"
	"github.com/d60-Lab/living-legends/internal/model"
	"github.com/d60-Lab/living-legends/internal/repository"
	"github.com/d60-Lab/living-legends/internal/service"
	"github.com/d60-Lab/living-legends/internal/storylock"
	"github.com/d60-Lab/living-legends/internal/storystate"
	"github.com/d60-Lab/living-legends/pkg/logger"
)

// Task tick 的种类
type Task string

const (
	TaskStories Task = "stories"
	TaskStates  Task = "states"
	TaskRefresh Task = "refresh"
)

// Refresher 定时全量重置
type Refresher interface {
	Reset(ctx context.Context) (*service.ResetReport, error)
}

// GenerateReport 一次生成 tick 的结果
type GenerateReport struct {
	Created    int  `json:"created"`
	Skipped    int  `json:"skipped"`
	CeilingHit bool `json:"ceiling_hit"`
}

// SweepReport 一次状态 tick 的结果
type SweepReport struct {
	Checked      int `json:"checked"`
	Transitioned int `json:"transitioned"`
	Failed       int `json:"failed"`
}

type Scheduler struct {
	db      *gorm.DB
	stories repository.StoryRepository
	text    generator.TextGenerator
	cat     *catalog.Catalog
	rules   storystate.Rules
	locker  storylock.Locker
	refresh Refresher
	feed    cache.FeedCache
	cfg     config.SchedulerConfig
	now     func() time.Time
	log     *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Options 可选依赖，零值使用默认实现
type Options struct {
	Catalog   *catalog.Catalog
	Locker    storylock.Locker
	Refresher Refresher
	Feed      cache.FeedCache
	Clock     func() time.Time
	Rand      *rand.Rand
}

func New(db *gorm.DB, text generator.TextGenerator, rules storystate.Rules, cfg config.SchedulerConfig, opts Options) *Scheduler {
	s := &Scheduler{
		db:      db,
		stories: repository.NewStoryRepository(db),
		text:    text,
		cat:     opts.Catalog,
		rules:   rules,
		locker:  opts.Locker,
		refresh: opts.Refresher,
		feed:    opts.Feed,
		cfg:     cfg,
		now:     opts.Clock,
		rng:     opts.Rand,
		log:     logger.Named("scheduler"),
	}
	if s.text == nil {
		s.text = generator.Offline{}
	}
	if s.cat == nil {
		s.cat = catalog.Default()
	}
	if s.locker == nil {
		s.locker = storylock.NewLocal()
	}
	if s.feed == nil {
		s.feed = cache.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

// Tick 执行一次指定任务
func (s *Scheduler) Tick(ctx context.Context, task Task) error {
	switch task {
	case TaskStories:
		_, err := s.GenerateStories(ctx)
		return err
	case TaskStates:
		_, err := s.SweepStates(ctx)
		return err
	case TaskRefresh:
		_, err := s.Refresh(ctx)
		return err
	default:
		return fmt.Errorf("unknown task %q", task)
	}
}

// GenerateStories 活跃故事数低于上限时最多生成 StoryBatch 篇；
// 生成失败计为 skipped，不影响本批其余条目。
func (s *Scheduler) GenerateStories(ctx context.Context) (GenerateReport, error) {
	var rep GenerateReport
	active, err := s.stories.CountActive(ctx)
	if err != nil {
		return rep, fmt.Errorf("count active stories: %w", err)
	}
	for i := 0; i < s.cfg.StoryBatch; i++ {
		if active >= int64(s.cfg.MaxActiveStories) {
			rep.CeilingHit = true
			break
		}
		s.mu.Lock()
		category := s.cat.RandomCategory(s.rng)
		location := s.cat.RandomLocation(s.rng)
		persona := s.cat.RandomPersona(s.rng)
		s.mu.Unlock()

		draft, err := s.text.GenerateStory(ctx, category, location)
		if err != nil {
			rep.Skipped++
			metrics.StoriesGenerated.WithLabelValues("skipped").Inc()
			s.log.Warn("story generation skipped", zap.String("category", category.Key), zap.Error(err))
			continue
		}
		if draft.Persona == "" {
			draft.Persona = persona.Display()
		}
		now := s.now()
		st := &model.Story{
			ID:            uuid.New().String(),
			Title:         draft.Title,
			Body:          draft.Body,
			Category:      category.Key,
			Location:      location,
			Persona:       draft.Persona,
			IsAIGenerated: true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		st.SetState(storystate.New(model.StateInit, now))
		if err := s.stories.Create(ctx, st); err != nil {
			return rep, fmt.Errorf("create story: %w", err)
		}
		active++
		rep.Created++
		metrics.StoriesGenerated.WithLabelValues("created").Inc()
	}
	if rep.Created > 0 {
		s.feed.Invalidate(ctx)
	}
	s.log.Info("story sweep finished",
		zap.Int("created", rep.Created), zap.Int("skipped", rep.Skipped), zap.Bool("ceiling_hit", rep.CeilingHit))
	return rep, nil
}

// SweepStates 对每个未封帖故事至多推进一步。单个故事失败只记录，不中断扫描。
func (s *Scheduler) SweepStates(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	list, err := s.stories.ListUnlocked(ctx)
	if err != nil {
		return rep, fmt.Errorf("list stories: %w", err)
	}
	for _, st := range list {
		rep.Checked++
		moved, err := s.advance(ctx, st.ID)
		if err != nil {
			rep.Failed++
			s.log.Error("state transition failed", zap.String("story_id", st.ID), zap.Error(err))
			continue
		}
		if moved {
			rep.Transitioned++
		}
	}
	if rep.Transitioned > 0 {
		s.feed.Invalidate(ctx)
	}
	s.log.Info("state sweep finished",
		zap.Int("checked", rep.Checked), zap.Int("transitioned", rep.Transitioned), zap.Int("failed", rep.Failed))
	return rep, nil
}

// advance 持有故事锁并在事务内重新读取，避免覆盖并发评论写入的互动计数
func (s *Scheduler) advance(ctx context.Context, storyID string) (bool, error) {
	unlock, err := s.locker.Lock(ctx, storylock.StoryKey(storyID))
	if err != nil {
		return false, err
	}
	defer unlock()

	var tr model.Transition
	var moved bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stories := s.stories.WithTx(tx)
		st, err := stories.Get(ctx, storyID)
		if err != nil {
			return err
		}
		tr, moved = s.rules.MaybeTransition(st, s.now())
		if !moved {
			return nil
		}
		return stories.SaveState(ctx, st)
	})
	if err != nil {
		return false, err
	}
	if moved {
		metrics.StateTransitions.WithLabelValues(string(tr.From), string(tr.To)).Inc()
		s.log.Info("story state advanced", zap.String("story_id", storyID),
			zap.String("from", string(tr.From)), zap.String("to", string(tr.To)), zap.String("reason", tr.Reason))
	}
	return moved, nil
}

// Refresh 定时全量重置
func (s *Scheduler) Refresh(ctx context.Context) (*service.ResetReport, error) {
	if s.refresh == nil {
		return nil, fmt.Errorf("refresh not configured")
	}
	return s.refresh.Reset(ctx)
}
