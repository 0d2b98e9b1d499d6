package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/living-legends/config"
	"github.com/d60-Lab/living-legends/internal/metrics"
	"github.com/d60-Lab/living-legends/internal/model"
	"github.com/d60-Lab/living-legends/internal/repository"
	"github.com/d60-Lab/living-legends/pkg/logger"
	"github.com/d60-Lab/living-legends/pkg/monitor"
	"github.com/d60-Lab/living-legends/pkg/telemetry"
)

// JobHandler 处理一类任务；返回 ErrStoryNotFound 等视为静默结束。
// ctx 不带截止时间，处理器拿到故事锁后用 StartBudget 开始计时。
type JobHandler interface {
	Handle(ctx context.Context, job *model.Job) error
}

type JobHandlerFunc func(ctx context.Context, job *model.Job) error

func (f JobHandlerFunc) Handle(ctx context.Context, job *model.Job) error { return f(ctx, job) }

type budgetKey struct{}

// WithBudget 附带任务执行时限，等锁时间不计入
func WithBudget(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, budgetKey{}, d)
}

// StartBudget 从此刻起按 WithBudget 附带的时限计时；未附带时只派生可取消的 ctx
func StartBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	if d, ok := ctx.Value(budgetKey{}).(time.Duration); ok && d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// NewReplyJob 每条用户评论至多一个回复任务
func NewReplyJob(storyID, commentID string, runAt time.Time) *model.Job {
	return &model.Job{
		ID:        uuid.New().String(),
		Kind:      model.JobReply,
		StoryID:   storyID,
		CommentID: commentID,
		DedupeKey: "reply:" + commentID,
		RunAt:     runAt,
		Status:    model.JobPending,
	}
}

// NewEvidenceJob 每个阈值倍数至多一个证据任务
func NewEvidenceJob(storyID, commentID string, count int, runAt time.Time) *model.Job {
	return &model.Job{
		ID:        uuid.New().String(),
		Kind:      model.JobEvidence,
		StoryID:   storyID,
		CommentID: commentID,
		DedupeKey: fmt.Sprintf("evidence:%s:%d", storyID, count),
		RunAt:     runAt,
		Status:    model.JobPending,
	}
}

// JobQueue 轮询 jobs 表中到期任务，CAS 抢占后交给固定数量的 worker
type JobQueue struct {
	jobs         repository.JobRepository
	handlers     map[model.JobKind]JobHandler
	workers      int
	pollInterval time.Duration
	timeout      time.Duration
	maxAttempts  int
	ch           chan *model.Job
	wake         chan struct{}
	now          func() time.Time
	log          *zap.Logger
}

func NewJobQueue(db *gorm.DB, cfg config.EngineConfig) *JobQueue {
	q := &JobQueue{
		jobs:         repository.NewJobRepository(db),
		handlers:     make(map[model.JobKind]JobHandler),
		workers:      cfg.Workers,
		pollInterval: cfg.PollInterval,
		timeout:      cfg.JobTimeout,
		maxAttempts:  cfg.MaxAttempts,
		wake:         make(chan struct{}, 1),
		now:          time.Now,
		log:          logger.Named("jobs"),
	}
	if q.workers <= 0 {
		q.workers = 4
	}
	if q.pollInterval <= 0 {
		q.pollInterval = time.Second
	}
	if q.timeout <= 0 {
		q.timeout = 90 * time.Second
	}
	if q.maxAttempts <= 0 {
		q.maxAttempts = 3
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 1024
	}
	q.ch = make(chan *model.Job, size)
	return q
}

// Register 必须在 Start 之前调用
func (q *JobQueue) Register(kind model.JobKind, h JobHandler) { q.handlers[kind] = h }

// Wake 有新任务落库时提前触发一次轮询
func (q *JobQueue) Wake() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// QueueLen 进程内等待执行的任务数
func (q *JobQueue) QueueLen() int { return len(q.ch) }

// Start 启动轮询协程与 worker；返回的停止函数等待所有协程退出
func (q *JobQueue) Start(ctx context.Context) func(context.Context) error {
	if n, err := q.jobs.RequeueStale(ctx, q.now().Add(-q.timeout)); err != nil {
		q.log.Warn("requeue stale jobs failed", zap.Error(err))
	} else if n > 0 {
		q.log.Info("requeued stale jobs", zap.Int64("count", n))
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(q.workers + 1)
	go func() {
		defer wg.Done()
		q.poll(stop)
	}()
	for i := 0; i < q.workers; i++ {
		go func() {
			defer wg.Done()
			q.work(stop)
		}()
	}
	return func(ctx context.Context) error {
		close(stop)
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (q *JobQueue) poll(stop <-chan struct{}) {
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()
	for {
		q.dispatch(stop)
		select {
		case <-stop:
			return
		case <-ticker.C:
		case <-q.wake:
		}
	}
}

// dispatch 抢占到期任务并送入队列；进程退出时已抢占未执行的任务由下次启动重新入队
func (q *JobQueue) dispatch(stop <-chan struct{}) {
	room := cap(q.ch) - len(q.ch)
	if room <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	due, err := q.jobs.Due(ctx, q.now(), room)
	if err != nil {
		q.log.Warn("load due jobs failed", zap.Error(err))
		return
	}
	for _, j := range due {
		won, err := q.jobs.Claim(ctx, j.ID, q.now())
		if err != nil {
			q.log.Warn("claim job failed", zap.String("job_id", j.ID), zap.Error(err))
			continue
		}
		if !won {
			continue
		}
		j.Attempts++
		select {
		case q.ch <- j:
			metrics.QueueDepth.Set(float64(len(q.ch)))
		case <-stop:
			return
		}
	}
}

func (q *JobQueue) work(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case j := <-q.ch:
			metrics.QueueDepth.Set(float64(len(q.ch)))
			q.run(j)
		}
	}
}

// RunDue 在调用方协程内同步执行全部到期任务，返回执行数量
func (q *JobQueue) RunDue(ctx context.Context) (int, error) {
	due, err := q.jobs.Due(ctx, q.now(), cap(q.ch))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, j := range due {
		won, err := q.jobs.Claim(ctx, j.ID, q.now())
		if err != nil {
			return n, err
		}
		if !won {
			continue
		}
		j.Attempts++
		q.run(j)
		n++
	}
	return n, nil
}

func (q *JobQueue) run(j *model.Job) {
	ctx, span := telemetry.Start(WithBudget(context.Background(), q.timeout), "job."+string(j.Kind),
		attribute.String("job.id", j.ID),
		attribute.String("story.id", j.StoryID),
		attribute.String("comment.id", j.CommentID),
		attribute.Int("job.attempt", j.Attempts),
	)
	defer span.End()

	start := time.Now()
	err := q.invoke(ctx, j)
	metrics.JobDuration.WithLabelValues(string(j.Kind)).Observe(time.Since(start).Seconds())
	if err != nil && !silentAbort(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	q.finish(ctx, j, err)
}

func (q *JobQueue) invoke(ctx context.Context, j *model.Job) (err error) {
	h, ok := q.handlers[j.Kind]
	if !ok {
		return fmt.Errorf("no handler for job kind %q", j.Kind)
	}
	defer func() {
		if r := recover(); r != nil {
			monitor.CapturePanic(ctx, r, jobTags(j))
			err = fmt.Errorf("job panic: %v", r)
		}
	}()
	return h.Handle(ctx, j)
}

func (q *JobQueue) finish(ctx context.Context, j *model.Job, err error) {
	// 任务超时后仍需记录结果
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	now := q.now()
	fields := []zap.Field{zap.String("job_id", j.ID), zap.String("kind", string(j.Kind)),
		zap.String("story_id", j.StoryID), zap.String("comment_id", j.CommentID)}

	var status string
	var werr error
	switch {
	case err == nil:
		status = "done"
		werr = q.jobs.Complete(wctx, j.ID, now)
	case silentAbort(err):
		status = "aborted"
		q.log.Info("job aborted", append(fields, zap.Error(err))...)
		werr = q.jobs.Complete(wctx, j.ID, now)
	case j.Attempts < q.maxAttempts:
		status = "retry"
		q.log.Warn("job failed, will retry", append(fields, zap.Int("attempt", j.Attempts), zap.Error(err))...)
		werr = q.jobs.Retry(wctx, j.ID, now.Add(q.backoff(j.Attempts)), err.Error())
	default:
		status = "failed"
		q.log.Error("job failed", append(fields, zap.Int("attempt", j.Attempts), zap.Error(err))...)
		monitor.CaptureError(ctx, err, jobTags(j))
		werr = q.jobs.Fail(wctx, j.ID, now, err.Error())
	}
	if werr != nil {
		q.log.Error("record job result failed", append(fields, zap.Error(werr))...)
	}
	metrics.JobsProcessed.WithLabelValues(string(j.Kind), status).Inc()
}

func (q *JobQueue) backoff(attempt int) time.Duration {
	d := q.pollInterval << uint(attempt)
	if d > time.Minute || d <= 0 {
		d = time.Minute
	}
	return d
}

func jobTags(j *model.Job) map[string]string {
	return map[string]string{"job_id": j.ID, "kind": string(j.Kind), "story_id": j.StoryID}
}
