package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/living-legends/config"
	"github.com/d60-Lab/living-legends/internal/model"
	"github.com/d60-Lab/living-legends/internal/storylock"
)

type countingWaker struct{ n atomic.Int32 }

func (w *countingWaker) Wake() { w.n.Add(1) }

func TestCommentService_Submit(t *testing.T) {
	e := newEnv(t, nil)
	s := e.story(t, "金鱼街的怪声", "每晚都有人在楼下徘徊", model.StateInitial)
	w := &countingWaker{}
	svc := NewCommentService(e.deps, w)

	res, err := svc.Submit(context.Background(), s.ID, "user-a", "  我也见过  ")
	require.NoError(t, err)
	assert.Equal(t, "我也见过", res.Comment.Body)
	assert.Equal(t, 1, res.UserCommentCount)
	assert.NotEmpty(t, res.ReplyJobID)
	assert.Empty(t, res.EvidenceJobID)
	assert.EqualValues(t, 1, w.n.Load())

	got, err := e.stories.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UserCommentCount)
	assert.Equal(t, 1, got.State().InteractionCount)
	assert.EqualValues(t, 1, e.countJobs(t, s.ID, model.JobReply))
}

func TestCommentService_Submit_Validation(t *testing.T) {
	e := newEnv(t, nil)
	svc := NewCommentService(e.deps, nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "missing", "user-a", "hello")
	assert.ErrorIs(t, err, ErrStoryNotFound)

	s := e.story(t, "标题", "正文", model.StateInitial)
	_, err = svc.Submit(ctx, s.ID, "user-a", "   ")
	assert.ErrorIs(t, err, ErrEmptyComment)

	res, err := svc.Submit(ctx, s.ID, "user-a", strings.Repeat("长", maxCommentLen+50))
	require.NoError(t, err)
	assert.Equal(t, maxCommentLen, utf8.RuneCountInString(res.Comment.Body))
}

func TestCommentService_Submit_UnpublishedStory(t *testing.T) {
	e := newEnv(t, nil)
	s := e.story(t, "草稿", "还没发布", model.StateInit)
	svc := NewCommentService(e.deps, nil)

	_, err := svc.Submit(context.Background(), s.ID, "user-a", "抢沙发")
	assert.ErrorIs(t, err, ErrStoryNotFound)

	got, err := e.stories.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Zero(t, got.UserCommentCount)
	assert.Zero(t, e.countJobs(t, s.ID, model.JobReply))
}

func TestCommentService_Submit_LockedStory(t *testing.T) {
	e := newEnv(t, nil)
	s := e.story(t, "旧案", "多年前的事", model.StateLocked)
	svc := NewCommentService(e.deps, nil)

	_, err := svc.Submit(context.Background(), s.ID, "user-a", "还有人记得吗")
	assert.ErrorIs(t, err, ErrStoryLocked)

	var n int64
	require.NoError(t, e.db.Model(&model.Comment{}).Where("story_id = ?", s.ID).Count(&n).Error)
	assert.Zero(t, n)
	assert.Zero(t, e.countJobs(t, s.ID, model.JobReply))
}

func TestCommentService_Submit_EvidenceAtMultiples(t *testing.T) {
	e := newEnv(t, func(c *config.EngineConfig) { c.EvidenceThreshold = 2 })
	s := e.story(t, "标题", "正文", model.StateInitial)
	svc := NewCommentService(e.deps, nil)

	var triggered []int
	for i := 1; i <= 4; i++ {
		res, err := svc.Submit(context.Background(), s.ID, fmt.Sprintf("user-%d", i), "评论")
		require.NoError(t, err)
		if res.EvidenceJobID != "" {
			triggered = append(triggered, res.UserCommentCount)
		}
	}
	assert.Equal(t, []int{2, 4}, triggered)
	assert.EqualValues(t, 2, e.countJobs(t, s.ID, model.JobEvidence))
}

func TestCommentService_Submit_Concurrent(t *testing.T) {
	e := newEnv(t, func(c *config.EngineConfig) { c.EvidenceThreshold = 3 })
	s := e.story(t, "标题", "正文", model.StateInitial)
	svc := NewCommentService(e.deps, nil)

	const n = 10
	var wg sync.WaitGroup
	counts := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Submit(context.Background(), s.ID, fmt.Sprintf("user-%d", i), "并发评论")
			errs[i] = err
			if err == nil {
				counts[i] = res.UserCommentCount
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[counts[i]], "count %d observed twice", counts[i])
		seen[counts[i]] = true
	}
	got, err := e.stories.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.UserCommentCount)
	assert.EqualValues(t, n/3, e.countJobs(t, s.ID, model.JobEvidence))
	assert.EqualValues(t, n, e.countJobs(t, s.ID, model.JobReply))
}

func TestCommentService_Submit_NotifiesOthers(t *testing.T) {
	e := newEnv(t, nil)
	s := e.story(t, "标题", "正文", model.StateInitial)
	e.follow(t, "follower", s.ID)
	svc := NewCommentService(e.deps, nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, s.ID, "user-a", "第一条")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, s.ID, "user-b", "第二条")
	require.NoError(t, err)

	replies := recipients(e.notifications(t, s.ID), model.TypeNewReply)
	assert.ElementsMatch(t, []string{"follower", "follower", "user-a"}, replies)
	assert.NotContains(t, replies, "user-b")
	assert.Len(t, e.events(t), 3)
}

// 消息代理变慢时评论提交不被拖慢，也不占用故事锁
func TestCommentService_Submit_SlowBrokerDoesNotHoldStoryLock(t *testing.T) {
	e := newEnv(t, nil)
	broker := &slowBroker{delay: 500 * time.Millisecond}
	e.deps.Notifier = NewNotifier(e.db, broker)
	s := e.story(t, "标题", "正文", model.StateInitial)
	e.follow(t, "follower", s.ID)
	svc := NewCommentService(e.deps, nil)
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Submit(ctx, s.ID, fmt.Sprintf("user-%d", i), "有人吗")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Less(t, time.Since(start), time.Second)

	lctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	unlock, err := e.deps.Locker.Lock(lctx, storylock.StoryKey(s.ID))
	require.NoError(t, err)
	unlock()

	fctx, fcancel := context.WithTimeout(ctx, 5*time.Second)
	defer fcancel()
	require.NoError(t, e.deps.Notifier.Flush(fctx))
	// 1 + 2 + 3 + 4：关注者加上之前的评论者
	assert.Len(t, broker.Events(), 10)
}
