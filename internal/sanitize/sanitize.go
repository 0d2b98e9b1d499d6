// Package sanitize 清洗生成的楼主回复：去除推理标记，按阶段抽取可发布的短回复。
package sanitize

import (
	"math/rand"
	"regexp"
	"strings"
	"unicode/utf8"
)

var reasoningTags = []string{"think", "thinking", "reasoning", "analysis", "reflection"}

type markerSet struct {
	pair  *regexp.Regexp
	close *regexp.Regexp
	open  *regexp.Regexp
}

var markers = func() []markerSet {
	out := make([]markerSet, 0, len(reasoningTags))
	for _, tag := range reasoningTags {
		out = append(out, markerSet{
			pair:  regexp.MustCompile(`(?is)<\s*` + tag + `\s*>.*?<\s*/\s*` + tag + `\s*>`),
			close: regexp.MustCompile(`(?is)^.*?<\s*/\s*` + tag + `\s*>`),
			open:  regexp.MustCompile(`(?is)<\s*` + tag + `\s*>.*$`),
		})
	}
	return out
}()

// StripReasoning 去除推理标记段（大小写不敏感，允许未闭合）。
// 反复执行直到没有标记残留，因此 StripReasoning(StripReasoning(x)) == StripReasoning(x)。
func StripReasoning(s string) string {
	for {
		before := s
		for _, m := range markers {
			s = m.pair.ReplaceAllString(s, "")
		}
		for _, m := range markers {
			// 只有闭合标记：之前的内容都是推理
			s = m.close.ReplaceAllString(s, "")
			s = m.open.ReplaceAllString(s, "")
		}
		if s == before {
			return strings.TrimSpace(s)
		}
	}
}

// HasReasoningMarker 是否残留推理标记
func HasReasoningMarker(s string) bool {
	for _, m := range markers {
		if m.pair.MatchString(s) || m.close.MatchString(s) || m.open.MatchString(s) {
			return true
		}
	}
	return false
}

// DefaultMetaVocabulary 推理泄露的常见措辞
var DefaultMetaVocabulary = []string{
	"用户", "分析", "我需要", "我应该", "回复应该", "作为楼主", "作为讲述者", "作为故事的讲述者",
	"作为ai", "角色设定", "这条评论", "评论者", "提示词", "保持神秘感", "字数", "首先，", "接下来我",
	"the user", "let me", "i need to", "i should", "as the narrator", "as an ai", "analysis",
	"reasoning", "the comment", "the reply should", "the prompt",
}

// Result 清洗结果
type Result struct {
	Text     string
	Stage    string
	Fallback bool
}

// Stage 级联阶段；ok=false 表示本阶段无法产出
type Stage interface {
	Name() string
	Apply(text string) (string, bool)
}

// Pipeline 有序阶段管线，首个通过校验的阶段胜出，全部失败时使用模板
type Pipeline struct {
	maxLen    int
	vocab     []string
	stages    []Stage
	templates []string
	pick      func(n int) int
}

type Option func(*Pipeline)

// WithPicker 替换模板选择函数
func WithPicker(pick func(n int) int) Option {
	return func(p *Pipeline) { p.pick = pick }
}

// WithVocabulary 替换推理措辞表
func WithVocabulary(vocab []string) Option {
	return func(p *Pipeline) { p.vocab = vocab }
}

// New 构造默认四阶段管线：引号抽取 → 转述动词抽取 → 删除推理句 → 按句截断
func New(maxLen int, templates []string, opts ...Option) *Pipeline {
	if maxLen <= 0 {
		maxLen = 120
	}
	p := &Pipeline{maxLen: maxLen, vocab: DefaultMetaVocabulary, templates: templates, pick: rand.Intn}
	for _, o := range opts {
		o(p)
	}
	p.stages = []Stage{
		quotedSpeech{p: p},
		reportedSpeech{p: p},
		dropMeta{p: p},
		truncate{p: p},
	}
	return p
}

// Clean 执行完整清洗
func (p *Pipeline) Clean(raw string) Result {
	text := StripReasoning(raw)
	if p.Acceptable(text) {
		return Result{Text: trimQuotes(text), Stage: "raw"}
	}
	for _, st := range p.stages {
		out, ok := st.Apply(text)
		if !ok {
			continue
		}
		out = trimQuotes(strings.TrimSpace(out))
		if p.Acceptable(out) {
			return Result{Text: out, Stage: st.Name()}
		}
	}
	return Result{Text: p.Template(), Stage: "template", Fallback: true}
}

// Template 随机选取一条模板回复
func (p *Pipeline) Template() string {
	if len(p.templates) == 0 {
		return "……"
	}
	return p.templates[p.pick(len(p.templates))]
}

// Acceptable 非空、不超长、无推理措辞、无标记
func (p *Pipeline) Acceptable(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > p.maxLen {
		return false
	}
	return !p.LooksLikeReasoning(s) && !HasReasoningMarker(s)
}

// LooksLikeReasoning 包含推理措辞
func (p *Pipeline) LooksLikeReasoning(s string) bool {
	lower := strings.ToLower(s)
	for _, w := range p.vocab {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	for _, pair := range [][2]string{{"“", "”"}, {"\"", "\""}, {"「", "」"}, {"『", "』"}} {
		if strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) && len(s) > len(pair[0])+len(pair[1]) {
			inner := s[len(pair[0]) : len(s)-len(pair[1])]
			if !strings.ContainsAny(inner, pair[0]+pair[1]) {
				return strings.TrimSpace(inner)
			}
		}
	}
	return s
}
