// Package classify 证据分类：音频/图像判定、音频子类型、场景选择与字面线索抽取。
// 所有规则都是有序 (谓词, 类别) 列表，首个命中者胜出。
package classify

import (
	"encoding/binary"
	"strings"

	"github.com/google/uuid"

	"github.com/d60-Lab/living-legends/internal/catalog"
	"github.com/d60-Lab/living-legends/internal/model"
)

// Input 分类依据：故事文本与最近评论上下文
type Input struct {
	Title    string
	Body     string
	Location string
	Comments []string
}

func (in Input) storyText() string {
	return strings.ToLower(in.Title + "\n" + in.Location + "\n" + in.Body)
}

func (in Input) fullText() string {
	return in.storyText() + "\n" + strings.ToLower(strings.Join(in.Comments, "\n"))
}

// Audio 音频参数
type Audio struct {
	Type        string
	Description string
	Intensity   float64
	Seed        int64
}

type kindRule struct {
	name  string
	match func(text string) bool
	kind  model.EvidenceKind
}

type audioRule struct {
	rule  catalog.AudioRule
	match func(text string) bool
}

// Classifier 由只读目录构造，可并发使用
type Classifier struct {
	tables     catalog.EvidenceTables
	kindRules  []kindRule
	audioRules []audioRule
	maxCues    int
}

func New(c *catalog.Catalog, maxCues int) *Classifier {
	if maxCues <= 0 {
		maxCues = 6
	}
	t := c.Evidence
	cl := &Classifier{tables: t, maxCues: maxCues}
	cl.kindRules = []kindRule{
		{name: "sound", match: containsAny(t.SoundKeywords), kind: model.EvidenceAudio},
		{name: "eerie", match: containsAny(t.EerieKeywords), kind: model.EvidenceImage},
		{name: "default", match: func(string) bool { return true }, kind: model.EvidenceImage},
	}
	for _, r := range t.AudioRules {
		cl.audioRules = append(cl.audioRules, audioRule{rule: r, match: containsAny(r.Keywords)})
	}
	cl.audioRules = append(cl.audioRules,
		audioRule{rule: t.NocturnalAudio, match: containsAny(t.NocturnalKeywords)},
		audioRule{rule: t.DefaultAudio, match: func(string) bool { return true }},
	)
	return cl
}

func containsAny(words []string) func(string) bool {
	lowered := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			lowered = append(lowered, w)
		}
	}
	return func(text string) bool {
		for _, w := range lowered {
			if strings.Contains(text, w) {
				return true
			}
		}
		return false
	}
}

// Kind 故事正文或评论上下文中出现声音词即为音频，否则为图像
func (c *Classifier) Kind(in Input) model.EvidenceKind {
	text := in.fullText()
	for _, r := range c.kindRules {
		if r.match(text) {
			return r.kind
		}
	}
	return model.EvidenceImage
}

// Audio 依优先级判定音频子类型：节奏敲击 → 电子 → 空洞回声 → 人声 → 风声 → 深夜 → 默认
func (c *Classifier) Audio(in Input, seed int64) Audio {
	text := in.fullText()
	for _, r := range c.audioRules {
		if r.match(text) {
			return Audio{Type: r.rule.Type, Description: r.rule.Description, Intensity: r.rule.Intensity, Seed: seed}
		}
	}
	d := c.tables.DefaultAudio
	return Audio{Type: d.Type, Description: d.Description, Intensity: d.Intensity, Seed: seed}
}

// Scene 按关键词命中数选择场景，平局取表中靠前者，无命中时使用室内兜底场景
func (c *Classifier) Scene(in Input) catalog.Scene {
	text := in.fullText()
	best, bestScore := -1, 0
	for i, s := range c.tables.Scenes {
		score := 0
		for _, kw := range s.Keywords {
			if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return c.tables.FallbackScene
	}
	return c.tables.Scenes[best]
}

// Variant 在场景内按种子与序号轮换提示词
func Variant(s catalog.Scene, seed int64, n int) string {
	if len(s.Variants) == 0 {
		return ""
	}
	idx := (seed + int64(n)) % int64(len(s.Variants))
	if idx < 0 {
		idx = -idx
	}
	return s.Variants[idx]
}

// Seed 由故事身份确定性地派生音频/场景种子
func Seed(storyID, title string) int64 {
	u := uuid.NewSHA1(uuid.NameSpaceOID, []byte(storyID+"\x00"+title))
	return int64(binary.BigEndian.Uint64(u[:8]) >> 1)
}
