// Package catalog 只读配置表：人设、分类、地点、关键词表、场景表、种子帖。
// 在启动时从内嵌 YAML 解析一次，之后只读共享。
package catalog

import (
	_ "embed"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var raw []byte

type Persona struct {
	Name  string `yaml:"name"`
	Emoji string `yaml:"emoji"`
	Style string `yaml:"style"`
}

// Display 作为帖子署名
func (p Persona) Display() string { return strings.TrimSpace(p.Emoji + " " + p.Name) }

type Category struct {
	Key    string `yaml:"key"`
	Label  string `yaml:"label"`
	Prompt string `yaml:"prompt"`
}

// RenderPrompt 生成故事提示词
func (c Category) RenderPrompt(p Persona, location string) string {
	return strings.NewReplacer("{persona}", p.Name, "{location}", location).Replace(c.Prompt)
}

type UsernameParts struct {
	Prefixes []string `yaml:"prefixes"`
	Suffixes []string `yaml:"suffixes"`
	Lucky    []string `yaml:"lucky"`
}

// AudioRule 音频子类型规则
type AudioRule struct {
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Intensity   float64  `yaml:"intensity"`
	Keywords    []string `yaml:"keywords"`
}

// Scene 图像场景分类及其提示词变体
type Scene struct {
	Key      string   `yaml:"key"`
	Keywords []string `yaml:"keywords"`
	Variants []string `yaml:"variants"`
}

type EvidenceTables struct {
	SoundKeywords     []string            `yaml:"sound_keywords"`
	EerieKeywords     []string            `yaml:"eerie_keywords"`
	NocturnalKeywords []string            `yaml:"nocturnal_keywords"`
	AudioRules        []AudioRule         `yaml:"audio_rules"`
	NocturnalAudio    AudioRule           `yaml:"nocturnal_audio"`
	DefaultAudio      AudioRule           `yaml:"default_audio"`
	Scenes            []Scene             `yaml:"scenes"`
	FallbackScene     Scene               `yaml:"fallback_scene"`
	AudioScripts      map[string][]string `yaml:"audio_scripts"`
}

// Narratives 证据追加到正文的第一人称文案（fmt 模板）
type Narratives struct {
	Audio             string `yaml:"audio"`
	AudioWithImage    string `yaml:"audio_with_image"`
	AudioImageMissing string `yaml:"audio_image_missing"`
	Image             string `yaml:"image"`
	Failed            string `yaml:"failed"`
}

// NotificationTexts 通知文案（%s 为故事标题）
type NotificationTexts struct {
	NewReply       string `yaml:"new_reply"`
	AIReply        string `yaml:"ai_reply"`
	StoryUpdate    string `yaml:"story_update"`
	EvidenceUpdate string `yaml:"evidence_update"`
}

// CommentGroup 关键词组及其评论模板
type CommentGroup struct {
	Keywords []string `yaml:"keywords"`
	Comments []string `yaml:"comments"`
}

type CrowdComments struct {
	Groups  []CommentGroup `yaml:"groups"`
	Generic []string       `yaml:"generic"`
}

type SeedStory struct {
	Title         string   `yaml:"title"`
	Category      string   `yaml:"category"`
	Location      string   `yaml:"location"`
	Body          string   `yaml:"body"`
	RequiredTerms []string `yaml:"required_terms"`
}

type Seeds struct {
	Goldfish SeedStory `yaml:"goldfish"`
	Subway   SeedStory `yaml:"subway"`
	Legacy   SeedStory `yaml:"legacy"`
}

// Catalog 全部只读表
type Catalog struct {
	Personas           []Persona         `yaml:"personas"`
	Categories         []Category        `yaml:"categories"`
	Locations          []string          `yaml:"locations"`
	Usernames          UsernameParts     `yaml:"usernames"`
	ReplyTemplates     []string          `yaml:"reply_templates"`
	HistoricalComments []string          `yaml:"historical_comments"`
	CrowdComments      CrowdComments     `yaml:"crowd_comments"`
	Evidence           EvidenceTables    `yaml:"evidence"`
	Narratives         Narratives        `yaml:"narratives"`
	Notifications      NotificationTexts `yaml:"notifications"`
	Seeds              Seeds             `yaml:"seeds"`
}

var (
	once    sync.Once
	loaded  *Catalog
	loadErr error
)

// Load 解析内嵌 YAML，仅执行一次
func Load() (*Catalog, error) {
	once.Do(func() {
		loaded, loadErr = Parse(raw)
	})
	return loaded, loadErr
}

// Default 返回内嵌目录，解析失败直接 panic
func Default() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse 解析并校验一份目录
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	switch {
	case len(c.Personas) == 0:
		return fmt.Errorf("catalog: no personas")
	case len(c.Categories) == 0:
		return fmt.Errorf("catalog: no categories")
	case len(c.Locations) == 0:
		return fmt.Errorf("catalog: no locations")
	case len(c.ReplyTemplates) == 0:
		return fmt.Errorf("catalog: no reply templates")
	case len(c.CrowdComments.Generic) == 0:
		return fmt.Errorf("catalog: no generic crowd comments")
	case len(c.Evidence.FallbackScene.Variants) == 0:
		return fmt.Errorf("catalog: fallback scene has no variants")
	}
	for _, s := range c.Evidence.Scenes {
		if len(s.Variants) == 0 {
			return fmt.Errorf("catalog: scene %q has no variants", s.Key)
		}
	}
	return nil
}

// Category 按 key 查找分类
func (c *Catalog) Category(key string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.Key == key {
			return cat, true
		}
	}
	return Category{}, false
}

// Persona 按名称或风格查找人设
func (c *Catalog) Persona(nameOrStyle string) (Persona, bool) {
	for _, p := range c.Personas {
		if p.Name == nameOrStyle || p.Style == nameOrStyle || p.Display() == nameOrStyle {
			return p, true
		}
	}
	return Persona{}, false
}

func (c *Catalog) RandomPersona(rng *rand.Rand) Persona {
	return c.Personas[rng.Intn(len(c.Personas))]
}

func (c *Catalog) RandomCategory(rng *rand.Rand) Category {
	return c.Categories[rng.Intn(len(c.Categories))]
}

func (c *Catalog) RandomLocation(rng *rand.Rand) string {
	return c.Locations[rng.Intn(len(c.Locations))]
}

func (c *Catalog) RandomReplyTemplate(rng *rand.Rand) string {
	return c.ReplyTemplates[rng.Intn(len(c.ReplyTemplates))]
}

// RandomUsername 生成像真实网友的用户名，例如 夜行_2024、孤独666者、月光.行者
func (c *Catalog) RandomUsername(rng *rand.Rand) string {
	u := c.Usernames
	prefix := u.Prefixes[rng.Intn(len(u.Prefixes))]
	suffix := u.Suffixes[rng.Intn(len(u.Suffixes))]
	switch rng.Intn(5) {
	case 0:
		return fmt.Sprintf("%s_%d", prefix, 2020+rng.Intn(5))
	case 1:
		return prefix + u.Lucky[rng.Intn(len(u.Lucky))] + suffix
	case 2:
		return fmt.Sprintf("%s%s%d", prefix, suffix, 10+rng.Intn(9990))
	case 3:
		return fmt.Sprintf("%s%d", prefix, 100+rng.Intn(9900))
	default:
		return prefix + "." + suffix
	}
}

// crowdMatchRate 命中关键词组时取组内模板的概率
const crowdMatchRate = 0.8

// CrowdComment 按标题和正文挑一条网友评论，跳过 existing 中已有的；
// 模板都用过时在通用模板上加前后缀
func (c *Catalog) CrowdComment(rng *rand.Rand, title, body string, existing map[string]bool) string {
	text := strings.ToLower(title + " " + body)
	var matched []string
	for _, g := range c.CrowdComments.Groups {
		for _, kw := range g.Keywords {
			if strings.Contains(text, kw) {
				matched = append(matched, g.Comments...)
				break
			}
		}
	}
	pool := c.CrowdComments.Generic
	if len(matched) > 0 && rng.Float64() < crowdMatchRate {
		pool = matched
	}
	available := make([]string, 0, len(pool))
	for _, t := range pool {
		if !existing[t] {
			available = append(available, t)
		}
	}
	if len(available) > 0 {
		return available[rng.Intn(len(available))]
	}
	base := c.CrowdComments.Generic[rng.Intn(len(c.CrowdComments.Generic))]
	switch rng.Intn(4) {
	case 0:
		return "我" + base
	case 1:
		return "好像" + base
	case 2:
		return base + "吧"
	default:
		return "感觉" + base
	}
}

// AudioScript 按类型和种子选取 TTS 文本
func (c *Catalog) AudioScript(audioType string, seed int64) string {
	scripts := c.Evidence.AudioScripts[audioType]
	if len(scripts) == 0 {
		scripts = c.Evidence.AudioScripts[c.Evidence.DefaultAudio.Type]
	}
	if len(scripts) == 0 {
		return "……"
	}
	if seed < 0 {
		seed = -seed
	}
	return scripts[seed%int64(len(scripts))]
}
