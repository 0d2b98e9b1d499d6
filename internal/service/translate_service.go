package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/d60-Lab/living-legends/internal/generator"
)

const (
	defaultTranslateTarget = "en"
	maxTranslateLength     = 4000
)

// TranslateService 帖子与评论的即时翻译；生成服务不可用时返回 generator.ErrUnavailable
type TranslateService struct {
	tr generator.Translator
}

func NewTranslateService(tr generator.Translator) *TranslateService {
	if tr == nil {
		tr = generator.Offline{}
	}
	return &TranslateService{tr: tr}
}

// Translate 空文本直接返回空串，不调用生成服务
func (s *TranslateService) Translate(ctx context.Context, text, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if utf8.RuneCountInString(text) > maxTranslateLength {
		return "", ErrTextTooLong
	}
	target = strings.TrimSpace(target)
	if target == "" {
		target = defaultTranslateTarget
	}
	return s.tr.Translate(ctx, text, target)
}
