// fanoutbench 测量一个故事有 N 个关注者时一次通知扇出的写入延迟
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/living-legends/config"
	"github.com/d60-Lab/living-legends/internal/model"
	"github.com/d60-Lab/living-legends/internal/repository"
	"github.com/d60-Lab/living-legends/internal/service"
	"github.com/d60-Lab/living-legends/internal/storystate"
	"github.com/d60-Lab/living-legends/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func pct(vs []time.Duration, p float64) time.Duration {
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(float64(len(xs)) * p)
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	if err := db.AutoMigrate(model.All()...); err != nil {
		panic(err)
	}
	ctx := context.Background()

	followers := envInt("N", 5000)
	repeat := envInt("REPEAT", 20)

	now := time.Now()
	story := &model.Story{ID: uuid.New().String(), Title: "fanoutbench", Body: "bench", CreatedAt: now, UpdatedAt: now}
	story.SetState(storystate.New(model.StateInitial, now))
	if err := repository.NewStoryRepository(db).Create(ctx, story); err != nil {
		panic(err)
	}
	rows := make([]model.Follow, followers)
	for i := range rows {
		rows[i] = model.Follow{ID: uuid.New().String(), UserID: uuid.New().String(), StoryID: story.ID, CreatedAt: now}
	}
	if err := db.CreateInBatches(rows, 500).Error; err != nil {
		panic(err)
	}

	notifier := service.NewNotifier(db, nil)
	durations := make([]time.Duration, 0, repeat)
	for i := 0; i < repeat; i++ {
		st := time.Now()
		written, err := notifier.Notify(ctx, service.Fanout{
			StoryID:  story.ID,
			Category: model.CategoryEvidence,
			Type:     model.TypeEvidenceUpdate,
			Content:  "bench",
		})
		if err != nil {
			panic(err)
		}
		if len(written) != followers {
			panic(fmt.Sprintf("expected %d notifications, got %d", followers, len(written)))
		}
		durations = append(durations, time.Since(st))
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	fmt.Printf("FOLLOWERS=%d REPEAT=%d\n", followers, repeat)
	fmt.Printf("fan-out: avg=%v p95=%v p99=%v\n", sum/time.Duration(len(durations)), pct(durations, 0.95), pct(durations, 0.99))

	// 清理基准数据
	_ = repository.NewNotificationRepository(db).DeleteByStories(ctx, []string{story.ID})
	_ = repository.NewFollowRepository(db).DeleteByStories(ctx, []string{story.ID})
	_ = repository.NewStoryRepository(db).DeleteByIDs(ctx, []string{story.ID})
}
