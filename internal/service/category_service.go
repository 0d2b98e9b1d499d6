package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/d60-Lab/living-legends/internal/model"
	"github.com/d60-Lab/living-legends/internal/repository"
)

const (
	topCategories     = 2
	maxCategoryLength = 50
)

// CategoryService 记录用户浏览档案分类的偏好
type CategoryService interface {
	// Track 点击数加一，返回累计次数
	Track(ctx context.Context, userID, category string) (int, error)
	// Top 点击最多的两个分类
	Top(ctx context.Context, userID string) ([]model.CategoryClick, error)
}

type categoryService struct {
	clicks repository.CategoryClickRepository
}

func NewCategoryService(clicks repository.CategoryClickRepository) CategoryService {
	return &categoryService{clicks: clicks}
}

func (s *categoryService) Track(ctx context.Context, userID, category string) (int, error) {
	category = strings.TrimSpace(category)
	if category == "" || utf8.RuneCountInString(category) > maxCategoryLength {
		return 0, ErrInvalidCategory
	}
	return s.clicks.Track(ctx, userID, category)
}

func (s *categoryService) Top(ctx context.Context, userID string) ([]model.CategoryClick, error) {
	return s.clicks.Top(ctx, userID, topCategories)
}
