package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/living-legends/config"
	"github.com/d60-Lab/living-legends/internal/catalog"
	"github.com/d60-Lab/living-legends/internal/generator"
	"github.com/d60-Lab/living-legends/internal/messaging"
	"github.com/d60-Lab/living-legends/internal/model"
	"github.com/d60-Lab/living-legends/internal/repository"
	"github.com/d60-Lab/living-legends/internal/storylock"
	"github.com/d60-Lab/living-legends/internal/storystate"
	"github.com/d60-Lab/living-legends/pkg/database"
)

type env struct {
	db      *gorm.DB
	deps    Deps
	pub     *messaging.Memory
	stories repository.StoryRepository
}

func newEnv(t *testing.T, tweak func(*config.EngineConfig)) *env {
	t.Helper()
	db, err := database.OpenMemory(t.Name(), model.All()...)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	eng := config.Default().Engine
	if tweak != nil {
		tweak(&eng)
	}
	pub := &messaging.Memory{}
	return &env{
		db:  db,
		pub: pub,
		deps: Deps{
			DB:       db,
			Locker:   storylock.NewLocal(),
			Notifier: NewNotifier(db, pub),
			Catalog:  catalog.Default(),
			Engine:   eng,
		},
		stories: repository.NewStoryRepository(db),
	}
}

func (e *env) story(t *testing.T, title, body string, state model.StoryState) *model.Story {
	t.Helper()
	now := time.Now()
	s := &model.Story{ID: uuid.NewString(), Title: title, Body: body, Location: "旺角", CreatedAt: now, UpdatedAt: now}
	s.SetState(storystate.New(state, now))
	require.NoError(t, e.stories.Create(context.Background(), s))
	return s
}

func (e *env) follow(t *testing.T, userID, storyID string) {
	t.Helper()
	require.NoError(t, repository.NewFollowRepository(e.db).Create(context.Background(), userID, storyID))
}

func (e *env) notifications(t *testing.T, storyID string) []model.Notification {
	t.Helper()
	var ns []model.Notification
	require.NoError(t, e.db.Where("story_id = ?", storyID).Order("created_at").Find(&ns).Error)
	return ns
}

// events 等待后台发布结束后返回已发布事件
func (e *env) events(t *testing.T) []messaging.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.deps.Notifier.Flush(ctx))
	return e.pub.Events()
}

func recipients(ns []model.Notification, typ model.NotificationType) []string {
	var out []string
	for _, n := range ns {
		if n.Type == typ {
			out = append(out, n.RecipientID)
		}
	}
	return out
}

func (e *env) countJobs(t *testing.T, storyID string, kind model.JobKind) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.Job{}).Where("story_id = ? AND kind = ?", storyID, kind).Count(&n).Error)
	return n
}

// fakeText 记录回复请求
type fakeText struct {
	mu     sync.Mutex
	reply  string
	err    error
	lastRq generator.ReplyRequest
	calls  int
}

func (f *fakeText) GenerateStory(_ context.Context, c catalog.Category, location string) (generator.StoryDraft, error) {
	if f.err != nil {
		return generator.StoryDraft{}, f.err
	}
	return generator.StoryDraft{Title: c.Label, Body: f.reply}, nil
}

func (f *fakeText) GenerateReply(_ context.Context, req generator.ReplyRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastRq = req
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// slowText 每次生成耗时 delay，记录同时在途的最大调用数
type slowText struct {
	delay    time.Duration
	reply    string
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *slowText) GenerateStory(context.Context, catalog.Category, string) (generator.StoryDraft, error) {
	return generator.StoryDraft{}, errors.New("not used")
}

func (f *slowText) GenerateReply(ctx context.Context, _ generator.ReplyRequest) (string, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(f.delay):
		return f.reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// slowBroker 每次发布耗时 delay
type slowBroker struct {
	messaging.Memory
	delay time.Duration
}

func (b *slowBroker) Publish(ctx context.Context, events []messaging.Event) error {
	time.Sleep(b.delay)
	return b.Memory.Publish(ctx, events)
}

// fakeRenderer 按调用返回固定产物
type fakeRenderer struct {
	mu         sync.Mutex
	audioErr   error
	imageErr   error
	audioCalls int
	imageCalls int
	lastImage  generator.ImageRequest
	lastAudio  generator.AudioRequest
}

func (f *fakeRenderer) RenderImage(_ context.Context, req generator.ImageRequest) ([]generator.ImageVariant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageCalls++
	f.lastImage = req
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	out := make([]generator.ImageVariant, len(req.Variants))
	for i, v := range req.Variants {
		out[i] = generator.ImageVariant{Name: v.Name, Ref: fmt.Sprintf("/static/%s_%d.png", v.Name, f.imageCalls), Prompt: v.Prompt}
	}
	return out, nil
}

func (f *fakeRenderer) RenderAudio(_ context.Context, req generator.AudioRequest) (generator.AudioFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audioCalls++
	f.lastAudio = req
	if f.audioErr != nil {
		return generator.AudioFile{}, f.audioErr
	}
	return generator.AudioFile{Ref: fmt.Sprintf("/static/audio_%d.mp3", f.audioCalls), Type: req.Type}, nil
}
