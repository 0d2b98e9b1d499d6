// Package generator 外部生成服务（文本、图像、语音）及其降级实现。
package generator

import (
	"context"
	"errors"

	"github.com/d60-Lab/living-legends/internal/catalog"
)

var (
	// ErrGenerationFailed 生成服务返回错误或空结果
	ErrGenerationFailed = errors.New("generation failed")
	// ErrUnavailable 生成服务未配置或不可达
	ErrUnavailable = errors.New("generator unavailable")
)

// StoryDraft 生成的故事草稿
type StoryDraft struct {
	Title   string
	Body    string
	Persona string
}

// ReplyRequest 楼主回复上下文；History 为最近的楼主回复，按时间正序
type ReplyRequest struct {
	StoryTitle string
	StoryBody  string
	Persona    string
	Comment    string
	History    []string
}

// ImageRequest 图像渲染请求；Variants 第一个为主图
type ImageRequest struct {
	StoryID  string
	Title    string
	Variants []VariantSpec
	Seed     int64
}

// VariantSpec 单个变体的名称与提示词
type VariantSpec struct {
	Name   string
	Prompt string
	Size   string
}

// ImageVariant 已渲染的变体
type ImageVariant struct {
	Name        string
	Ref         string
	Prompt      string
	Placeholder bool
}

// AudioRequest 音频渲染请求
type AudioRequest struct {
	StoryID   string
	Type      string
	Intensity float64
	Seed      int64
	Script    string
}

// AudioFile 已渲染的音频
type AudioFile struct {
	Ref  string
	Type string
}

type TextGenerator interface {
	GenerateStory(ctx context.Context, category catalog.Category, location string) (StoryDraft, error)
	GenerateReply(ctx context.Context, req ReplyRequest) (string, error)
}

type ImageRenderer interface {
	RenderImage(ctx context.Context, req ImageRequest) ([]ImageVariant, error)
}

type AudioRenderer interface {
	RenderAudio(ctx context.Context, req AudioRequest) (AudioFile, error)
}

// Translator 把帖子文本译为目标语言（如 en、ja）
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Generator 全部能力的组合
type Generator interface {
	TextGenerator
	ImageRenderer
	AudioRenderer
	Translator
}
