package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/living-legends/config"
	"github.com/d60-Lab/living-legends/pkg/logger"
)

// Ticker 由 Driver 驱动的对象
type Ticker interface {
	Tick(ctx context.Context, task Task) error
}

// Driver 进程内时钟：按间隔触发生成与状态扫描，每天在固定时刻触发重置
type Driver struct {
	target     Ticker
	storyEvery time.Duration
	stateEvery time.Duration
	refreshAt  []time.Duration
	now        func() time.Time
	log        *zap.Logger
}

func NewDriver(target Ticker, cfg config.SchedulerConfig) (*Driver, error) {
	offsets, err := ParseRefreshTimes(cfg.RefreshTimes)
	if err != nil {
		return nil, err
	}
	return &Driver{
		target:     target,
		storyEvery: cfg.StoryInterval,
		stateEvery: cfg.StateInterval,
		refreshAt:  offsets,
		now:        time.Now,
		log:        logger.Named("driver"),
	}, nil
}

// ParseRefreshTimes 解析 "HH:MM"，返回当天零点起的偏移，升序
func ParseRefreshTimes(times []string) ([]time.Duration, error) {
	out := make([]time.Duration, 0, len(times))
	for _, t := range times {
		parsed, err := time.Parse("15:04", t)
		if err != nil {
			return nil, fmt.Errorf("invalid refresh time %q: %w", t, err)
		}
		out = append(out, time.Duration(parsed.Hour())*time.Hour+time.Duration(parsed.Minute())*time.Minute)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// NextRefresh now 之后（不含）最近的重置时刻，按 now 所在时区计算
func NextRefresh(now time.Time, offsets []time.Duration) (time.Time, bool) {
	if len(offsets) == 0 {
		return time.Time{}, false
	}
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	for _, off := range offsets {
		if at := midnight.Add(off); at.After(now) {
			return at, true
		}
	}
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()).Add(offsets[0]), true
}

// Start 启动后台循环，返回的停止函数等待循环退出
func (d *Driver) Start(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if d.storyEvery > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.every(ctx, d.storyEvery, TaskStories)
		}()
	}
	if d.stateEvery > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.every(ctx, d.stateEvery, TaskStates)
		}()
	}
	if len(d.refreshAt) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.daily(ctx)
		}()
	}
	return func() {
		cancel()
		wg.Wait()
	}
}

func (d *Driver) every(ctx context.Context, interval time.Duration, task Task) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.fire(ctx, task)
		}
	}
}

func (d *Driver) daily(ctx context.Context) {
	for {
		next, _ := NextRefresh(d.now(), d.refreshAt)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			d.fire(ctx, TaskRefresh)
		}
	}
}

func (d *Driver) fire(ctx context.Context, task Task) {
	if err := d.target.Tick(ctx, task); err != nil {
		d.log.Error("scheduled task failed", zap.String("task", string(task)), zap.Error(err))
	}
}
