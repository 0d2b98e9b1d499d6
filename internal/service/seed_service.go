package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/living-legends/internal/catalog"
	"github.com/d60-Lab/living-legends/internal/generator"
	"github.com/d60-Lab/living-legends/internal/model"
	"github.com/d60-Lab/living-legends/internal/repository"
	"github.com/d60-Lab/living-legends/internal/storystate"
	"github.com/d60-Lab/living-legends/pkg/logger"
)

const (
	legacyAge        = 3 * 365 * 24 * time.Hour
	legacyCommentGap = 365 * 24 * time.Hour
	seedUserPool     = 8
)

// ResetReport 一次重置的结果
type ResetReport struct {
	Deleted int      `json:"deleted"`
	Seeded  []string `json:"seeded"`
}

// SeedService 删除全部生成故事并写入三篇起始帖
type SeedService struct {
	Deps
	stories  repository.StoryRepository
	comments repository.CommentRepository
	evidence repository.EvidenceRepository
	follows  repository.FollowRepository
	notes    repository.NotificationRepository
	jobs     repository.JobRepository
	users    repository.UserRepository
	text     generator.TextGenerator

	mu  sync.Mutex
	rng *rand.Rand
	log *zap.Logger
}

func NewSeedService(d Deps, text generator.TextGenerator, rng *rand.Rand) *SeedService {
	d = d.withDefaults()
	if text == nil {
		text = generator.Offline{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &SeedService{
		Deps:     d,
		stories:  repository.NewStoryRepository(d.DB),
		comments: repository.NewCommentRepository(d.DB),
		evidence: repository.NewEvidenceRepository(d.DB),
		follows:  repository.NewFollowRepository(d.DB),
		notes:    repository.NewNotificationRepository(d.DB),
		jobs:     repository.NewJobRepository(d.DB),
		users:    repository.NewUserRepository(d.DB),
		text:     text,
		rng:      rng,
		log:      logger.Named("seed"),
	}
}

func (s *SeedService) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// Reset 级联删除生成故事后写入种子帖；正文优先使用生成内容，失败时用目录原文
func (s *SeedService) Reset(ctx context.Context) (*ResetReport, error) {
	seeds := s.Catalog.Seeds
	// 生成调用较慢，放在事务外
	goldfish := s.draft(ctx, seeds.Goldfish)
	subway := s.draft(ctx, seeds.Subway)

	now := s.Clock()
	report := &ResetReport{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := s.stories.WithTx(tx).AIGeneratedIDs(ctx)
		if err != nil {
			return err
		}
		if err := s.purge(ctx, tx, ids); err != nil {
			return err
		}
		report.Deleted = len(ids)

		for _, st := range []*model.Story{
			s.newSeed(goldfish, model.StateInitial, now, now),
			s.newSeed(subway, model.StateInitial, now.Add(time.Second), now.Add(time.Second)),
		} {
			crowd, err := s.crowdComments(ctx, tx, st)
			if err != nil {
				return err
			}
			st.UserCommentCount = len(crowd)
			if err := s.stories.WithTx(tx).Create(ctx, st); err != nil {
				return fmt.Errorf("seed %q: %w", st.Title, err)
			}
			if err := s.comments.WithTx(tx).CreateBatch(ctx, crowd); err != nil {
				return fmt.Errorf("seed %q comments: %w", st.Title, err)
			}
			report.Seeded = append(report.Seeded, st.ID)
		}

		legacy, err := s.seedLegacy(ctx, tx, now)
		if err != nil {
			return err
		}
		report.Seeded = append(report.Seeded, legacy.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Feed.Invalidate(ctx)
	s.log.Info("stories reset", zap.Int("deleted", report.Deleted), zap.Int("seeded", len(report.Seeded)))
	return report, nil
}

func (s *SeedService) purge(ctx context.Context, tx *gorm.DB, ids []string) error {
	steps := []func(context.Context, []string) error{
		s.notes.WithTx(tx).DeleteByStories,
		s.jobs.WithTx(tx).DeleteByStories,
		s.evidence.WithTx(tx).DeleteByStories,
		s.follows.WithTx(tx).DeleteByStories,
		s.comments.WithTx(tx).DeleteByStories,
		s.stories.WithTx(tx).DeleteByIDs,
	}
	for _, step := range steps {
		if err := step(ctx, ids); err != nil {
			return fmt.Errorf("purge stories: %w", err)
		}
	}
	return nil
}

type seedDraft struct {
	seed    catalog.SeedStory
	body    string
	persona string
}

func (s *SeedService) draft(ctx context.Context, seed catalog.SeedStory) seedDraft {
	d := seedDraft{seed: seed, body: seed.Body}
	s.mu.Lock()
	d.persona = s.Catalog.RandomPersona(s.rng).Display()
	s.mu.Unlock()

	cat, ok := s.Catalog.Category(seed.Category)
	if !ok {
		return d
	}
	gen, err := s.text.GenerateStory(ctx, cat, seed.Location)
	if err != nil {
		s.log.Warn("seed generation failed, using catalog text", zap.String("title", seed.Title), zap.Error(err))
		return d
	}
	for _, term := range seed.RequiredTerms {
		if !strings.Contains(gen.Body, term) {
			s.log.Warn("generated seed missing required term, using catalog text",
				zap.String("title", seed.Title), zap.String("term", term))
			return d
		}
	}
	d.body = gen.Body
	if gen.Persona != "" {
		d.persona = gen.Persona
	}
	return d
}

func (s *SeedService) newSeed(d seedDraft, state model.StoryState, created, entered time.Time) *model.Story {
	st := &model.Story{
		ID:            uuid.New().String(),
		Title:         d.seed.Title,
		Body:          d.body,
		Category:      d.seed.Category,
		Location:      d.seed.Location,
		Persona:       d.persona,
		IsAIGenerated: true,
		CreatedAt:     created,
		UpdatedAt:     entered,
	}
	st.SetState(storystate.New(state, entered))
	return st
}

// seedLegacy 三年前封帖的旧帖，附 3-5 条三到四年前的历史评论
func (s *SeedService) seedLegacy(ctx context.Context, tx *gorm.DB, now time.Time) (*model.Story, error) {
	lockedAt := now.Add(-legacyAge)
	created := lockedAt.Add(-legacyCommentGap - 7*24*time.Hour)
	st := s.newSeed(seedDraft{seed: s.Catalog.Seeds.Legacy, body: s.Catalog.Seeds.Legacy.Body, persona: "老街坊"},
		model.StateLocked, created, lockedAt)

	n := 3 + s.intn(3)
	authors, err := s.seedUsers(ctx, tx, n)
	if err != nil {
		return nil, err
	}
	pool := s.Catalog.HistoricalComments
	comments := make([]model.Comment, 0, n)
	for i := 0; i < n && len(pool) > 0; i++ {
		author := authors[i%len(authors)].ID
		at := lockedAt.Add(-time.Duration(s.intn(int(legacyCommentGap/time.Hour))) * time.Hour)
		comments = append(comments, model.Comment{
			ID:        uuid.New().String(),
			StoryID:   st.ID,
			AuthorID:  &author,
			Body:      pool[s.intn(len(pool))],
			CreatedAt: at,
		})
	}
	st.UserCommentCount = len(comments)
	if err := s.stories.WithTx(tx).Create(ctx, st); err != nil {
		return nil, fmt.Errorf("seed legacy: %w", err)
	}
	if err := s.comments.WithTx(tx).CreateBatch(ctx, comments); err != nil {
		return nil, fmt.Errorf("seed legacy comments: %w", err)
	}
	return st, nil
}

// crowdComments 按 SeedCommentChance 为种子帖准备 1-2 条网友评论（七成一条）
func (s *SeedService) crowdComments(ctx context.Context, tx *gorm.DB, st *model.Story) ([]model.Comment, error) {
	s.mu.Lock()
	roll, two := s.rng.Float64(), s.rng.Float64() < 0.3
	s.mu.Unlock()
	if roll >= s.Engine.SeedCommentChance {
		return nil, nil
	}
	n := 1
	if two {
		n = 2
	}
	authors, err := s.seedUsers(ctx, tx, n)
	if err != nil {
		return nil, err
	}
	used := make(map[string]bool, n)
	out := make([]model.Comment, 0, n)
	for i := 0; i < n; i++ {
		s.mu.Lock()
		body := s.Catalog.CrowdComment(s.rng, st.Title, st.Body, used)
		s.mu.Unlock()
		used[body] = true
		author := authors[i].ID
		out = append(out, model.Comment{
			ID:        uuid.New().String(),
			StoryID:   st.ID,
			AuthorID:  &author,
			Body:      body,
			CreatedAt: st.CreatedAt.Add(time.Duration(i) * time.Second),
		})
	}
	return out, nil
}

// seedUsers 复用已有种子用户，不足时补齐；种子用户没有密码
func (s *SeedService) seedUsers(ctx context.Context, tx *gorm.DB, n int) ([]*model.User, error) {
	users := s.users.WithTx(tx)
	existing, err := users.ListSeedUsers(ctx, seedUserPool)
	if err != nil {
		return nil, err
	}
	for len(existing) < n {
		s.mu.Lock()
		name := s.Catalog.RandomUsername(s.rng)
		s.mu.Unlock()
		taken, err := users.UsernameExists(ctx, name)
		if err != nil {
			return nil, err
		}
		if taken {
			name = fmt.Sprintf("%s%d", name, 10+s.intn(90))
		}
		id := uuid.New().String()
		u := &model.User{ID: id, Username: name, Email: id[:8] + "@seed.local", IsSeed: true, CreatedAt: s.Clock()}
		if err := users.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("create seed user: %w", err)
		}
		existing = append(existing, u)
	}
	// 打乱顺序，使每次重置的评论者不同
	s.mu.Lock()
	s.rng.Shuffle(len(existing), func(i, j int) { existing[i], existing[j] = existing[j], existing[i] })
	s.mu.Unlock()
	return existing, nil
}
