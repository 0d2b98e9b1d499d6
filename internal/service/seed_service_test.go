package service

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/living-legends/config"
	"github.com/d60-Lab/living-legends/internal/model"
	"github.com/d60-Lab/living-legends/internal/repository"
)

func TestSeedService_Reset(t *testing.T) {
	e := newEnv(t, nil)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	e.deps.Clock = func() time.Time { return now }
	ctx := context.Background()

	old := e.story(t, "旧的生成故事", "正文", model.StateClimax)
	require.NoError(t, e.db.Model(&model.Story{}).Where("id = ?", old.ID).UpdateColumn("is_ai_generated", true).Error)
	addComment(t, e, old.ID, ptr("user-a"), "评论", false, time.Now())
	e.follow(t, "user-a", old.ID)
	enqueue(t, e, NewReplyJob(old.ID, "c1", time.Now()))
	keep := e.story(t, "手写故事", "正文", model.StateInitial)

	svc := NewSeedService(e.deps, &fakeText{err: errors.New("offline")}, rand.New(rand.NewSource(7)))
	report, err := svc.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
	require.Len(t, report.Seeded, 3)

	_, err = e.stories.Get(ctx, old.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = e.stories.Get(ctx, keep.ID)
	assert.NoError(t, err)
	for _, tbl := range []interface{}{&model.Comment{}, &model.Follow{}, &model.Job{}} {
		var n int64
		require.NoError(t, e.db.Model(tbl).Where("story_id = ?", old.ID).Count(&n).Error)
		assert.Zero(t, n)
	}

	seeds := e.deps.Catalog.Seeds
	goldfish, err := e.stories.Get(ctx, report.Seeded[0])
	require.NoError(t, err)
	assert.Equal(t, seeds.Goldfish.Title, goldfish.Title)
	assert.Equal(t, seeds.Goldfish.Body, goldfish.Body)
	assert.Equal(t, model.StateInitial, goldfish.CurrentState)
	assert.True(t, goldfish.IsAIGenerated)

	subway, err := e.stories.Get(ctx, report.Seeded[1])
	require.NoError(t, err)
	assert.Equal(t, seeds.Subway.Title, subway.Title)
	assert.Equal(t, model.StateInitial, subway.CurrentState)

	legacy, err := e.stories.Get(ctx, report.Seeded[2])
	require.NoError(t, err)
	assert.Equal(t, model.StateLocked, legacy.CurrentState)
	assert.True(t, legacy.CreatedAt.Before(now.Add(-legacyAge-legacyCommentGap)))
	assert.WithinDuration(t, now.Add(-legacyAge), legacy.State().EnteredAt, time.Second)

	var comments []model.Comment
	require.NoError(t, e.db.Where("story_id = ?", legacy.ID).Find(&comments).Error)
	assert.GreaterOrEqual(t, len(comments), 3)
	assert.LessOrEqual(t, len(comments), 5)
	assert.Equal(t, len(comments), legacy.UserCommentCount)
	for _, c := range comments {
		require.NotNil(t, c.AuthorID)
		assert.Contains(t, e.deps.Catalog.HistoricalComments, c.Body)
		assert.False(t, c.CreatedAt.After(now.Add(-legacyAge)))
		assert.True(t, c.CreatedAt.After(now.Add(-legacyAge-legacyCommentGap)))

		var u model.User
		require.NoError(t, e.db.First(&u, "id = ?", *c.AuthorID).Error)
		assert.True(t, u.IsSeed)
		assert.Empty(t, u.PasswordHash)
		assert.True(t, strings.HasSuffix(u.Email, "@seed.local"))
	}
}

func TestSeedService_ResetTwice(t *testing.T) {
	e := newEnv(t, nil)
	svc := NewSeedService(e.deps, &fakeText{err: errors.New("offline")}, rand.New(rand.NewSource(1)))
	ctx := context.Background()

	_, err := svc.Reset(ctx)
	require.NoError(t, err)
	report, err := svc.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Deleted)

	var n int64
	require.NoError(t, e.db.Model(&model.Story{}).Count(&n).Error)
	assert.EqualValues(t, 3, n)
}

func TestSeedService_GeneratedBodyNeedsRequiredTerms(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	svc := NewSeedService(e.deps, &fakeText{reply: "那天晚上车厢里只剩下一个人。"}, rand.New(rand.NewSource(1)))
	report, err := svc.Reset(ctx)
	require.NoError(t, err)
	goldfish, err := e.stories.Get(ctx, report.Seeded[0])
	require.NoError(t, err)
	assert.Equal(t, e.deps.Catalog.Seeds.Goldfish.Body, goldfish.Body)
	subway, err := e.stories.Get(ctx, report.Seeded[1])
	require.NoError(t, err)
	assert.Equal(t, "那天晚上车厢里只剩下一个人。", subway.Body)

	svc = NewSeedService(e.deps, &fakeText{reply: "我在旺角买的鱼会盯着我看。"}, rand.New(rand.NewSource(1)))
	report, err = svc.Reset(ctx)
	require.NoError(t, err)
	goldfish, err = e.stories.Get(ctx, report.Seeded[0])
	require.NoError(t, err)
	assert.Equal(t, "我在旺角买的鱼会盯着我看。", goldfish.Body)
}

func TestSeedService_CrowdComments(t *testing.T) {
	e := newEnv(t, func(c *config.EngineConfig) { c.SeedCommentChance = 1 })
	ctx := context.Background()

	report, err := NewSeedService(e.deps, &fakeText{err: errors.New("offline")}, rand.New(rand.NewSource(5))).Reset(ctx)
	require.NoError(t, err)

	crowd := e.deps.Catalog.CrowdComments
	known := append([]string{}, crowd.Generic...)
	for _, g := range crowd.Groups {
		known = append(known, g.Comments...)
	}
	for _, id := range report.Seeded[:2] {
		st, err := e.stories.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.StateInitial, st.CurrentState)
		assert.Zero(t, st.State().InteractionCount)

		var comments []model.Comment
		require.NoError(t, e.db.Where("story_id = ?", id).Find(&comments).Error)
		require.NotEmpty(t, comments)
		assert.LessOrEqual(t, len(comments), 2)
		assert.Equal(t, len(comments), st.UserCommentCount)
		seen := map[string]bool{}
		for _, c := range comments {
			assert.False(t, c.IsAIReply)
			assert.Contains(t, known, c.Body)
			assert.False(t, seen[c.Body], "duplicate %q", c.Body)
			seen[c.Body] = true

			require.NotNil(t, c.AuthorID)
			var u model.User
			require.NoError(t, e.db.First(&u, "id = ?", *c.AuthorID).Error)
			assert.True(t, u.IsSeed)
		}
	}
}

func TestSeedService_NoCrowdComments(t *testing.T) {
	e := newEnv(t, func(c *config.EngineConfig) { c.SeedCommentChance = 0 })
	ctx := context.Background()

	report, err := NewSeedService(e.deps, &fakeText{err: errors.New("offline")}, rand.New(rand.NewSource(5))).Reset(ctx)
	require.NoError(t, err)
	for _, id := range report.Seeded[:2] {
		var n int64
		require.NoError(t, e.db.Model(&model.Comment{}).Where("story_id = ?", id).Count(&n).Error)
		assert.Zero(t, n)
	}
}
