package service

import (
	"context"

	"github.com/d60-Lab/living-legends/internal/repository"
)

// FollowService 用户关注故事
type FollowService interface {
	// Toggle 已关注则取消，否则关注；返回操作后的状态
	Toggle(ctx context.Context, userID, storyID string) (bool, error)
	IsFollowing(ctx context.Context, userID, storyID string) (bool, error)
}

type followService struct {
	stories repository.StoryRepository
	follows repository.FollowRepository
}

func NewFollowService(stories repository.StoryRepository, follows repository.FollowRepository) FollowService {
	return &followService{stories: stories, follows: follows}
}

func (s *followService) Toggle(ctx context.Context, userID, storyID string) (bool, error) {
	if _, err := s.stories.Get(ctx, storyID); err != nil {
		return false, storyErr(err)
	}
	following, err := s.follows.Exists(ctx, userID, storyID)
	if err != nil {
		return false, err
	}
	if following {
		return false, s.follows.Delete(ctx, userID, storyID)
	}
	if err := s.follows.Create(ctx, userID, storyID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *followService) IsFollowing(ctx context.Context, userID, storyID string) (bool, error) {
	return s.follows.Exists(ctx, userID, storyID)
}
