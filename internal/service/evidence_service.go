package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/living-legends/internal/classify"
	"github.com/d60-Lab/living-legends/internal/generator"
	"github.com/d60-Lab/living-legends/internal/metrics"
	"github.com/d60-Lab/living-legends/internal/model"
	"github.com/d60-Lab/living-legends/internal/repository"
	"github.com/d60-Lab/living-legends/internal/storylock"
	"github.com/d60-Lab/living-legends/pkg/logger"
)

// EvidenceRenderer 证据任务需要的图像与音频能力
type EvidenceRenderer interface {
	generator.ImageRenderer
	generator.AudioRenderer
}

// EvidenceOutcome 一次证据任务的结果
type EvidenceOutcome struct {
	Kind      model.EvidenceKind
	AudioType string
	Evidence  []*model.Evidence
	Narrative string
	Failed    bool
}

// EvidenceService 阈值触发的证据生成任务
type EvidenceService struct {
	Deps
	stories     repository.StoryRepository
	comments    repository.CommentRepository
	evidence    repository.EvidenceRepository
	renderer    EvidenceRenderer
	placeholder generator.ImageRenderer
	classifier  *classify.Classifier
	log         *zap.Logger
}

// NewEvidenceService placeholder 为 nil 时图像失败不降级
func NewEvidenceService(d Deps, renderer EvidenceRenderer, placeholder generator.ImageRenderer) *EvidenceService {
	d = d.withDefaults()
	if renderer == nil {
		renderer = generator.Offline{}
	}
	if !d.Engine.ImagePlaceholder {
		placeholder = nil
	}
	return &EvidenceService{
		Deps:        d,
		stories:     repository.NewStoryRepository(d.DB),
		comments:    repository.NewCommentRepository(d.DB),
		evidence:    repository.NewEvidenceRepository(d.DB),
		renderer:    renderer,
		placeholder: placeholder,
		classifier:  classify.New(d.Catalog, d.Engine.MaxCues),
		log:         logger.Named("evidence"),
	}
}

func (s *EvidenceService) Handle(ctx context.Context, job *model.Job) error {
	_, err := s.Generate(ctx, job.StoryID, job.CommentID)
	return err
}

// Generate 同一故事的证据任务串行执行。渲染失败时不写证据，只在正文追加失败叙述。
// 任务时限从拿到锁之后开始，只覆盖渲染调用。
func (s *EvidenceService) Generate(ctx context.Context, storyID, commentID string) (*EvidenceOutcome, error) {
	base := context.WithoutCancel(ctx)
	unlock, err := s.Locker.Lock(base, storylock.EvidenceKey(storyID))
	if err != nil {
		return nil, fmt.Errorf("lock evidence: %w", err)
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
	recent, err := s.comments.RecentUserComments(base, storyID, commentID, s.Engine.EvidenceContext)
	if err != nil {
		return nil, err
	}
	in := classify.Input{Title: story.Title, Body: story.Body, Location: story.Location, Comments: []string{trigger.Body}}
	for _, c := range recent {
		in.Comments = append(in.Comments, c.Body)
	}
	seed := classify.Seed(story.ID, story.Title)

	rctx, cancelRender := StartBudget(ctx)
	var out *EvidenceOutcome
	switch s.classifier.Kind(in) {
	case model.EvidenceAudio:
		out = s.audio(rctx, story, in, seed)
	default:
		out = s.image(rctx, story, in, seed)
	}
	cancelRender()

	pctx, cancel := context.WithTimeout(base, 10*time.Second)
	defer cancel()
	if err := s.persist(pctx, story.ID, trigger.ID, out); err != nil {
		return nil, err
	}
	status := "ok"
	if out.Failed {
		status = "failed"
	}
	metrics.EvidenceGenerated.WithLabelValues(string(out.Kind), status).Inc()
	return out, nil
}

func (s *EvidenceService) audio(ctx context.Context, story *model.Story, in classify.Input, seed int64) *EvidenceOutcome {
	n := s.Catalog.Narratives
	a := s.classifier.Audio(in, seed)
	out := &EvidenceOutcome{Kind: model.EvidenceAudio, AudioType: a.Type}

	file, err := s.renderer.RenderAudio(ctx, generator.AudioRequest{
		StoryID:   story.ID,
		Type:      a.Type,
		Intensity: a.Intensity,
		Seed:      seed,
		Script:    s.Catalog.AudioScript(a.Type, seed+int64(story.AudioCount)),
	})
	if err != nil {
		s.log.Warn("audio rendering failed", zap.String("story_id", story.ID), zap.Error(err))
		out.Failed = true
		out.Narrative = n.Failed
		return out
	}
	out.Evidence = append(out.Evidence, &model.Evidence{
		Kind:        model.EvidenceAudio,
		FileRef:     file.Ref,
		Description: a.Description,
	})

	audioN := story.AudioCount + 1
	if audioN%s.Engine.CrossModalEvery != 0 {
		out.Narrative = fmt.Sprintf(n.Audio, audioN)
		return out
	}
	img, desc, err := s.renderPrimary(ctx, story, in, seed)
	if err != nil {
		s.log.Warn("cross-modal image failed", zap.String("story_id", story.ID), zap.Error(err))
		out.Narrative = fmt.Sprintf(n.AudioImageMissing, audioN)
		return out
	}
	out.Evidence = append(out.Evidence, &model.Evidence{Kind: model.EvidenceImage, FileRef: img.Ref, Description: desc})
	out.Narrative = fmt.Sprintf(n.AudioWithImage, audioN/s.Engine.CrossModalEvery, audioN)
	return out
}

func (s *EvidenceService) image(ctx context.Context, story *model.Story, in classify.Input, seed int64) *EvidenceOutcome {
	out := &EvidenceOutcome{Kind: model.EvidenceImage}
	img, desc, err := s.renderPrimary(ctx, story, in, seed)
	if err != nil {
		s.log.Warn("image rendering failed", zap.String("story_id", story.ID), zap.Error(err))
		out.Failed = true
		out.Narrative = s.Catalog.Narratives.Failed
		return out
	}
	out.Evidence = append(out.Evidence, &model.Evidence{Kind: model.EvidenceImage, FileRef: img.Ref, Description: desc})
	out.Narrative = s.Catalog.Narratives.Image
	return out
}

// renderPrimary 渲染全部变体，只返回主图；服务不可用时使用占位图
func (s *EvidenceService) renderPrimary(ctx context.Context, story *model.Story, in classify.Input, seed int64) (generator.ImageVariant, string, error) {
	scene := s.classifier.Scene(in)
	sceneText := classify.Variant(scene, seed, story.ImageCount)
	cues := s.classifier.Cues(in)
	req := generator.ImageRequest{
		StoryID:  story.ID,
		Title:    story.Title,
		Variants: generator.BuildVariants(sceneText, story.Title, cues),
		Seed:     seed + int64(story.ImageCount),
	}
	desc := sceneText
	if len(cues) > 0 {
		desc += " | " + strings.Join(cues, "; ")
	}

	variants, err := s.renderer.RenderImage(ctx, req)
	if err != nil && s.placeholder != nil {
		s.log.Warn("image service unavailable, using placeholder", zap.String("story_id", story.ID), zap.Error(err))
		variants, err = s.placeholder.RenderImage(context.WithoutCancel(ctx), req)
	}
	if err != nil {
		return generator.ImageVariant{}, "", err
	}
	for _, v := range variants {
		if v.Name == generator.VariantPrimary {
			return v, desc, nil
		}
	}
	if len(variants) == 0 {
		return generator.ImageVariant{}, "", generator.ErrGenerationFailed
	}
	return variants[0], desc, nil
}

func (s *EvidenceService) persist(ctx context.Context, storyID, triggerID string, out *EvidenceOutcome) error {
	unlock, err := s.Locker.Lock(ctx, storylock.StoryKey(storyID))
	if err != nil {
		return fmt.Errorf("lock story: %w", err)
	}
	// 发布事件前释放
	unlock = sync.OnceFunc(unlock)
	defer unlock()

	now := s.Clock()
	var rows []model.Notification
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stories := s.stories.WithTx(tx)
		story, err := stories.Get(ctx, storyID)
		if err != nil {
			return storyErr(err)
		}
		for _, e := range out.Evidence {
			e.ID = uuid.New().String()
			e.StoryID = storyID
			e.TriggerCommentID = triggerID
			e.CreatedAt = now
			if err := s.evidence.WithTx(tx).Create(ctx, e); err != nil {
				return fmt.Errorf("create evidence: %w", err)
			}
			if _, err := stories.IncrementEvidence(ctx, storyID, e.Kind, now); err != nil {
				return storyErr(err)
			}
		}
		if err := stories.AppendBody(ctx, storyID, out.Narrative, now); err != nil {
			return storyErr(err)
		}
		if out.Failed {
			return nil
		}
		tid := triggerID
		rows, err = s.Notifier.Build(ctx, tx, Fanout{
			StoryID:   storyID,
			CommentID: &tid,
			Category:  model.CategoryEvidence,
			Type:      model.TypeEvidenceUpdate,
			Content:   fmt.Sprintf(s.Catalog.Notifications.EvidenceUpdate, story.Title),
		})
		if err != nil {
			return err
		}
		return s.Notifier.Deliver(ctx, tx, rows)
	})
	unlock()
	if err != nil {
		return err
	}
	s.Notifier.Publish(ctx, rows)
	s.Feed.Invalidate(ctx)
	return nil
}
