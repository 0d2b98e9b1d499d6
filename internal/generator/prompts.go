package generator

import (
	"fmt"
	"strings"
)

const (
	VariantPrimary = "primary"
	VariantCloseUp = "closeup"
	VariantWide    = "wide"

	imageStyle = "found footage, security camera still, grainy, low light, authentic amateur photo, horror atmosphere, realistic"
)

const storySystemPrompt = "你是一个都市传说讲述者，擅长创作真实感极强的恐怖故事。使用第一人称，加入具体的时间、地点、人物细节，让读者感觉这是真实发生的事件。"

// BuildVariants 主图、特写（有线索时）与远景
func BuildVariants(scene, title string, cues []string) []VariantSpec {
	base := fmt.Sprintf("%s. Evidence photo for the forum post %q.", scene, title)
	out := []VariantSpec{{Name: VariantPrimary, Prompt: base + " " + imageStyle, Size: "1024x1024"}}
	if len(cues) > 0 {
		out = append(out, VariantSpec{
			Name:   VariantCloseUp,
			Prompt: fmt.Sprintf("Close-up detail, %s. Visible details: %s. %s", scene, strings.Join(cues, "; "), imageStyle),
			Size:   "1024x1024",
		})
	}
	out = append(out, VariantSpec{
		Name:   VariantWide,
		Prompt: fmt.Sprintf("Wide establishing shot, %s. %s", scene, imageStyle),
		Size:   "1792x1024",
	})
	return out
}

var languageNames = map[string]string{
	"en": "English",
	"zh": "Simplified Chinese",
	"ja": "Japanese",
	"ko": "Korean",
}

func translateSystemPrompt(target string) string {
	lang, ok := languageNames[strings.ToLower(target)]
	if !ok {
		lang = target
	}
	return fmt.Sprintf("Translate the user's forum post into %s. Keep the first-person voice, tone and line breaks. Output only the translation.", lang)
}

func titlePrompt(body string) string {
	r := []rune(body)
	if len(r) > 200 {
		r = r[:200]
	}
	return "为以下都市传说故事生成一个简短（5-10字）、吸引人、略带悬疑的标题。不要加引号。\n\n" + string(r)
}

func replyPrompt(req ReplyRequest) string {
	summary := []rune(req.StoryBody)
	if len(summary) > 300 {
		summary = summary[:300]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "你是故事\"%s\"的讲述者（%s）。\n\n故事摘要：\n%s...\n\n", req.StoryTitle, req.Persona, string(summary))
	if len(req.History) > 0 {
		b.WriteString("你之前的回复（按时间顺序）：\n")
		for i, h := range req.History {
			fmt.Fprintf(&b, "%d. %s\n", i+1, h)
		}
		b.WriteString("\n不要重复之前说过的内容。\n\n")
	}
	fmt.Fprintf(&b, "用户评论：\n%s\n\n", req.Comment)
	b.WriteString("作为故事的讲述者，请用1-3句话直接回复用户的评论，可以透露细节、表达恐惧、提出疑问或描述后续发展。保持神秘感和紧张氛围，不要完全揭示真相。只输出回复本身。")
	return b.String()
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("\"", "", "“", "", "”", "", "《", "", "》", "").Replace(s)
	if i := strings.IndexAny(s, "\n"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
