package generator

import (
	"context"

	"github.com/d60-Lab/living-legends/internal/catalog"
)

// Offline 未配置外部服务时使用：所有调用返回 ErrUnavailable，由调用方走降级路径
type Offline struct{}

func (Offline) GenerateStory(context.Context, catalog.Category, string) (StoryDraft, error) {
	return StoryDraft{}, ErrUnavailable
}

func (Offline) GenerateReply(context.Context, ReplyRequest) (string, error) {
	return "", ErrUnavailable
}

func (Offline) RenderImage(context.Context, ImageRequest) ([]ImageVariant, error) {
	return nil, ErrUnavailable
}

func (Offline) RenderAudio(context.Context, AudioRequest) (AudioFile, error) {
	return AudioFile{}, ErrUnavailable
}

func (Offline) Translate(context.Context, string, string) (string, error) {
	return "", ErrUnavailable
}
