// commentbench 并发向同一故事提交 N 条评论，校验证据任务数为 floor(N/阈值) 并输出提交延迟
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
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

	n := envInt("N", 300)
	conc := envInt("CONC", 16)
	threshold := envInt("THRESHOLD", cfg.Engine.EvidenceThreshold)
	engine := cfg.Engine
	engine.EvidenceThreshold = threshold

	now := time.Now()
	story := &model.Story{ID: uuid.New().String(), Title: "commentbench", Body: "bench", CreatedAt: now, UpdatedAt: now}
	story.SetState(storystate.New(model.StateInitial, now))
	stories := repository.NewStoryRepository(db)
	if err := stories.Create(ctx, story); err != nil {
		panic(err)
	}

	svc := service.NewCommentService(service.Deps{DB: db, Engine: engine}, nil)
	var (
		mu        sync.Mutex
		durations = make([]time.Duration, 0, n)
		failures  int
		wg        sync.WaitGroup
	)
	sem := make(chan struct{}, conc)
	start := time.Now()
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			st := time.Now()
			_, err := svc.Submit(ctx, story.ID, fmt.Sprintf("bench-user-%d", i%50), "bench comment")
			d := time.Since(st)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				return
			}
			durations = append(durations, d)
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	got := must(stories.Get(ctx, story.ID))
	var evidenceJobs int64
	if err := db.Model(&model.Job{}).Where("story_id = ? AND kind = ?", story.ID, model.JobEvidence).Count(&evidenceJobs).Error; err != nil {
		panic(err)
	}
	want := got.UserCommentCount / threshold

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	fmt.Printf("N=%d CONC=%d THRESHOLD=%d elapsed=%v failures=%d\n", n, conc, threshold, elapsed, failures)
	if len(durations) > 0 {
		fmt.Printf("submit: avg=%v p95=%v p99=%v\n", sum/time.Duration(len(durations)), pct(durations, 0.95), pct(durations, 0.99))
	}
	fmt.Printf("user_comment_count=%d evidence_jobs=%d expected=%d\n", got.UserCommentCount, evidenceJobs, want)
	if int(evidenceJobs) != want {
		fmt.Println("MISMATCH: evidence trigger count is not floor(count/threshold)")
		os.Exit(1)
	}
}
