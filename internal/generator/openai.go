package generator

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/d60-Lab/living-legends/config"
	"github.com/d60-Lab/living-legends/internal/artifact"
	"github.com/d60-Lab/living-legends/internal/catalog"
)

// OpenAI 基于 go-openai 的文本、图像与语音生成
type OpenAI struct {
	client  *openai.Client
	cfg     config.AIConfig
	catalog *catalog.Catalog
	store   artifact.Store
	logger  *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewOpenAI(cfg config.AIConfig, cat *catalog.Catalog, store artifact.Store, logger *zap.Logger) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client:  openai.NewClientWithConfig(oc),
		cfg:     cfg,
		catalog: cat,
		store:   store,
		logger:  logger.Named("OpenAI"),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *OpenAI) chat(ctx context.Context, model, system, user string, temperature float32, maxTokens int) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStory 以随机人设生成正文，再单独生成标题
func (g *OpenAI) GenerateStory(ctx context.Context, category catalog.Category, location string) (StoryDraft, error) {
	g.mu.Lock()
	persona := g.catalog.RandomPersona(g.rng)
	g.mu.Unlock()

	body, err := g.chat(ctx, g.cfg.ChatModel, storySystemPrompt, category.RenderPrompt(persona, location), 0.9, 800)
	if err != nil {
		return StoryDraft{}, err
	}
	title, err := g.chat(ctx, g.cfg.TitleModel, "", titlePrompt(body), 0.7, 20)
	if err != nil {
		return StoryDraft{}, err
	}
	title = cleanTitle(title)
	if title == "" {
		return StoryDraft{}, fmt.Errorf("%w: empty title", ErrGenerationFailed)
	}
	return StoryDraft{Title: title, Body: strings.TrimSpace(body), Persona: persona.Display()}, nil
}

// GenerateReply 返回未经清洗的原始输出
func (g *OpenAI) GenerateReply(ctx context.Context, req ReplyRequest) (string, error) {
	return g.chat(ctx, g.cfg.ChatModel, "", replyPrompt(req), 0.8, 200)
}

// Translate 保留原文的语气和换行
func (g *OpenAI) Translate(ctx context.Context, text, target string) (string, error) {
	out, err := g.chat(ctx, g.cfg.ChatModel, translateSystemPrompt(target), text, 0.2, 1200)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RenderImage 并行渲染各变体；主图失败则整体失败，次要变体失败只记录日志
func (g *OpenAI) RenderImage(ctx context.Context, req ImageRequest) ([]ImageVariant, error) {
	if len(req.Variants) == 0 {
		return nil, fmt.Errorf("%w: no variants requested", ErrGenerationFailed)
	}
	results := make([]*ImageVariant, len(req.Variants))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(3)
	for i, spec := range req.Variants {
		i, spec := i, spec
		eg.Go(func() error {
			ref, err := g.renderOne(egCtx, spec)
			if err != nil {
				if i == 0 {
					return err
				}
				g.logger.Warn("secondary image variant failed", zap.String("story_id", req.StoryID), zap.String("variant", spec.Name), zap.Error(err))
				return nil
			}
			results[i] = &ImageVariant{Name: spec.Name, Ref: ref, Prompt: spec.Prompt}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	out := make([]ImageVariant, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (g *OpenAI) renderOne(ctx context.Context, spec VariantSpec) (string, error) {
	size := spec.Size
	if size == "" {
		size = openai.CreateImageSize1024x1024
	}
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         spec.Prompt,
		Model:          g.cfg.ImageModel,
		N:              1,
		Size:           size,
		Quality:        openai.CreateImageQualityStandard,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return "", fmt.Errorf("%w: create image: %v", ErrGenerationFailed, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", fmt.Errorf("%w: empty image response", ErrGenerationFailed)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return "", fmt.Errorf("%w: decode image: %v", ErrGenerationFailed, err)
	}
	return g.store.Save(ctx, "image", "png", data)
}

var voiceByType = map[string]openai.SpeechVoice{
	"voice":       openai.VoiceShimmer,
	"hollow_echo": openai.VoiceEcho,
	"knocking":    openai.VoiceOnyx,
}

// RenderAudio 用 TTS 朗读音效脚本，强度越高语速越慢
func (g *OpenAI) RenderAudio(ctx context.Context, req AudioRequest) (AudioFile, error) {
	voice, ok := voiceByType[req.Type]
	if !ok {
		voice = openai.SpeechVoice(g.cfg.Voice)
	}
	script := req.Script
	if script == "" {
		script = g.catalog.AudioScript(req.Type, req.Seed)
	}
	speed := 1.0 - 0.3*req.Intensity
	if speed < 0.25 {
		speed = 0.25
	}
	resp, err := g.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(g.cfg.TTSModel),
		Input:          script,
		Voice:          voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          speed,
	})
	if err != nil {
		return AudioFile{}, fmt.Errorf("%w: create speech: %v", ErrGenerationFailed, err)
	}
	defer resp.Close()
	data, err := io.ReadAll(resp)
	if err != nil {
		return AudioFile{}, fmt.Errorf("%w: read speech: %v", ErrGenerationFailed, err)
	}
	ref, err := g.store.Save(ctx, "audio", "mp3", data)
	if err != nil {
		return AudioFile{}, err
	}
	return AudioFile{Ref: ref, Type: req.Type}, nil
}
