package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var templates = []string{"我现在有点不敢一个人待着。", "有新情况马上更新。"}

func TestStripReasoning(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
	}{
		"closed pair":       {"<think>用户在问</think>我也听到了。", "我也听到了。"},
		"case insensitive":  {"<THINK>x</Think>好的。", "好的。"},
		"unterminated":      {"别去那里。<thinking>用户想知道", "别去那里。"},
		"stray close":       {"先分析一下用户</think>门又响了。", "门又响了。"},
		"nested":            {"<think>a<think>b</think>c</think>好。", "好。"},
		"reassembled tag":   {"<thi<think>x</think>nk>秘密</think>剩下的。", "剩下的。"},
		"no markers":        {"  昨晚又来了。 ", "昨晚又来了。"},
		"multiple tags":     {"<reasoning>r</reasoning>一<analysis>a</analysis>二", "一二"},
		"everything inside": {"<think>全部都是推理", ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := StripReasoning(tc.in)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, got, StripReasoning(got), "must be idempotent")
			assert.False(t, HasReasoningMarker(got))
		})
	}
}

func TestClean_RawWhenClean(t *testing.T) {
	p := New(120, templates)
	res := p.Clean("“我也说不清，昨晚门又响了。”")
	assert.Equal(t, "我也说不清，昨晚门又响了。", res.Text)
	assert.Equal(t, "raw", res.Stage)
	assert.False(t, res.Fallback)
}

func TestClean_QuotedSpeech(t *testing.T) {
	p := New(120, templates)
	raw := "用户说他也听到了敲门声。我需要保持神秘感，回复要简短。最终回复：“别再靠近那扇门了，我是认真的。”"
	res := p.Clean(raw)
	assert.Equal(t, "quoted", res.Stage)
	assert.Equal(t, "别再靠近那扇门了，我是认真的。", res.Text)
}

func TestClean_ReportedSpeech(t *testing.T) {
	p := New(120, templates)
	raw := "The user is scared. Let me answer in character.\nReply: 我今晚会把录音放上来，你们听听。"
	res := p.Clean(raw)
	assert.Equal(t, "reported", res.Stage)
	assert.Equal(t, "我今晚会把录音放上来，你们听听。", res.Text)
}

func TestClean_DropMetaSentences(t *testing.T) {
	p := New(120, templates)
	raw := "首先，我需要分析评论者的情绪。窗外那个影子今晚又出现了。这条评论很关键。"
	res := p.Clean(raw)
	assert.Equal(t, "drop_meta", res.Stage)
	assert.Equal(t, "窗外那个影子今晚又出现了。", res.Text)
}

func TestClean_LongUnterminatedReasoningIsTruncated(t *testing.T) {
	p := New(120, templates)
	body := strings.Repeat("那天晚上我又听到了三下敲门声，声音比之前更近。", 10)
	raw := body + "<think>用户在追问细节，我需要分析一下怎么回复才能保持神秘感" + strings.Repeat("嗯", 40)
	require.Greater(t, utf8.RuneCountInString(raw), 300)

	res := p.Clean(raw)
	assert.False(t, res.Fallback)
	assert.Equal(t, "truncate", res.Stage)
	assert.LessOrEqual(t, utf8.RuneCountInString(res.Text), 120)
	assert.True(t, endsSentence(res.Text))
	assert.False(t, p.LooksLikeReasoning(res.Text))
	assert.False(t, HasReasoningMarker(res.Text))
}

func TestClean_TemplateFallback(t *testing.T) {
	p := New(120, templates, WithPicker(func(int) int { return 1 }))
	res := p.Clean("<think>只有推理，没有任何回复内容")
	assert.True(t, res.Fallback)
	assert.Equal(t, "template", res.Stage)
	assert.Equal(t, templates[1], res.Text)
}

func TestClean_SingleOverlongSentenceFallsBack(t *testing.T) {
	p := New(20, templates, WithPicker(func(int) int { return 0 }))
	res := p.Clean(strings.Repeat("长", 50) + "。")
	assert.True(t, res.Fallback)
	assert.Equal(t, templates[0], res.Text)
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("一。二！！“三？”\n四")
	assert.Equal(t, []string{"一。", "二！！", "“三？”", "四"}, got)
}
