package service

import (
	"context"

	"github.com/d60-Lab/living-legends/internal/cache"
	"github.com/d60-Lab/living-legends/internal/model"
	"github.com/d60-Lab/living-legends/internal/repository"
	"github.com/d60-Lab/living-legends/internal/storystate"
)

const defaultPageSize = 8

// StoryDetail 故事详情页
type StoryDetail struct {
	Story    *model.Story      `json:"story"`
	State    model.StateData   `json:"state"`
	Locked   bool              `json:"locked"`
	Comments []*model.Comment  `json:"comments"`
	Evidence []*model.Evidence `json:"evidence"`
}

// StoryService 故事列表与详情
type StoryService interface {
	List(ctx context.Context, page, pageSize int) (*cache.FeedPage, error)
	Detail(ctx context.Context, id string) (*StoryDetail, error)
}

type storyService struct {
	stories  repository.StoryRepository
	comments repository.CommentRepository
	evidence repository.EvidenceRepository
	feed     cache.FeedCache
}

func NewStoryService(stories repository.StoryRepository, comments repository.CommentRepository,
	evidence repository.EvidenceRepository, feed cache.FeedCache) StoryService {
	if feed == nil {
		feed = cache.Nop{}
	}
	return &storyService{stories: stories, comments: comments, evidence: evidence, feed: feed}
}

func (s *storyService) List(ctx context.Context, page, pageSize int) (*cache.FeedPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 50 {
		pageSize = defaultPageSize
	}
	if p, ok := s.feed.Get(ctx, page, pageSize); ok {
		return p, nil
	}
	items, total, err := s.stories.List(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	p := &cache.FeedPage{Items: items, Total: total}
	s.feed.Set(ctx, page, pageSize, p)
	return p, nil
}

// Detail 浏览量原子加一后返回故事、评论与证据；未发布的故事视为不存在
func (s *storyService) Detail(ctx context.Context, id string) (*StoryDetail, error) {
	story, err := s.stories.Get(ctx, id)
	if err != nil {
		return nil, storyErr(err)
	}
	if !storystate.IsPublished(story) {
		return nil, ErrStoryNotFound
	}
	if err := s.stories.IncrementViews(ctx, id); err != nil {
		return nil, err
	}
	story.Views++
	comments, err := s.comments.ListByStory(ctx, id)
	if err != nil {
		return nil, err
	}
	evidence, err := s.evidence.ListByStory(ctx, id)
	if err != nil {
		return nil, err
	}
	return &StoryDetail{
		Story:    story,
		State:    story.State(),
		Locked:   storystate.IsLocked(story),
		Comments: comments,
		Evidence: evidence,
	}, nil
}
