package catalog

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, c.Personas)
	assert.NotEmpty(t, c.Evidence.Scenes)
	assert.Equal(t, "knocking", c.Evidence.AudioRules[0].Type)
	assert.Contains(t, c.Notifications.AIReply, "%s")
	assert.Contains(t, c.Narratives.Audio, "%d")

	again, err := Load()
	require.NoError(t, err)
	assert.Same(t, c, again)
}

func TestRenderPrompt(t *testing.T) {
	c := Default()
	cat, ok := c.Category("subway_ghost")
	require.True(t, ok)
	p := c.Personas[0]
	out := cat.RenderPrompt(p, "旺角")
	assert.Contains(t, out, p.Name)
	assert.Contains(t, out, "旺角")
	assert.NotContains(t, out, "{location}")
}

func TestRandomUsername(t *testing.T) {
	c := Default()
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		name := c.RandomUsername(rng)
		require.NotEmpty(t, name)
		found := false
		for _, p := range c.Usernames.Prefixes {
			if strings.HasPrefix(name, p) {
				found = true
				break
			}
		}
		assert.True(t, found, name)
	}
}

func TestParseRejectsEmptyCatalog(t *testing.T) {
	_, err := Parse([]byte("personas: []"))
	assert.Error(t, err)
}

func TestAudioScriptDeterministic(t *testing.T) {
	c := Default()
	assert.Equal(t, c.AudioScript("knocking", 7), c.AudioScript("knocking", 7))
	assert.NotEmpty(t, c.AudioScript("unknown", -3))
}

func TestCrowdComment(t *testing.T) {
	c := Default()
	rng := rand.New(rand.NewSource(3))

	var subway []string
	for _, g := range c.CrowdComments.Groups {
		if g.Keywords[0] == "地铁" {
			subway = g.Comments
		}
	}
	require.NotEmpty(t, subway)

	matched := 0
	for i := 0; i < 200; i++ {
		out := c.CrowdComment(rng, "末班地铁", "车厢里只剩我一个人", nil)
		if assert.Contains(t, append(append([]string{}, subway...), c.CrowdComments.Generic...), out) {
			for _, s := range subway {
				if s == out {
					matched++
				}
			}
		}
	}
	// 命中关键词时大部分取组内模板
	assert.Greater(t, matched, 120)

	for i := 0; i < 50; i++ {
		assert.Contains(t, c.CrowdComments.Generic, c.CrowdComment(rng, "无关", "平平无奇", nil))
	}
}

func TestCrowdComment_SkipsExisting(t *testing.T) {
	c := Default()
	rng := rand.New(rand.NewSource(9))

	existing := map[string]bool{}
	for _, s := range c.CrowdComments.Generic {
		existing[s] = true
	}
	for i := 0; i < 20; i++ {
		out := c.CrowdComment(rng, "无关", "平平无奇", existing)
		assert.False(t, existing[out], out)
		assert.True(t, strings.HasPrefix(out, "我") || strings.HasPrefix(out, "好像") ||
			strings.HasPrefix(out, "感觉") || strings.HasSuffix(out, "吧"), out)
	}

	delete(existing, c.CrowdComments.Generic[0])
	assert.Equal(t, c.CrowdComments.Generic[0], c.CrowdComment(rng, "无关", "平平无奇", existing))
}
