package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/living-legends/internal/catalog"
	"github.com/d60-Lab/living-legends/internal/metrics"
	"github.com/d60-Lab/living-legends/pkg/telemetry"
)

// Limited 为外部调用加上限流、超时、指标与 tracing
type Limited struct {
	next    Generator
	limiter *rate.Limiter
	timeout time.Duration
}

func NewLimited(next Generator, perSec float64, burst int, timeout time.Duration) *Limited {
	limit := rate.Inf
	if perSec > 0 {
		limit = rate.Limit(perSec)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(limit, burst), timeout: timeout}
}

func (l *Limited) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := telemetry.Start(ctx, "generator."+op, attribute.String("generator.op", op))
	defer span.End()

	if err := l.limiter.Wait(ctx); err != nil {
		metrics.GeneratorRequests.WithLabelValues(op, "throttled").Inc()
		span.SetStatus(codes.Error, "throttled")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	start := time.Now()
	err := fn(ctx)
	metrics.GeneratorLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		metrics.GeneratorRequests.WithLabelValues(op, "ok").Inc()
	case errors.Is(err, context.DeadlineExceeded):
		metrics.GeneratorRequests.WithLabelValues(op, "timeout").Inc()
	default:
		metrics.GeneratorRequests.WithLabelValues(op, "error").Inc()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (l *Limited) GenerateStory(ctx context.Context, category catalog.Category, location string) (StoryDraft, error) {
	var out StoryDraft
	err := l.do(ctx, "story", func(ctx context.Context) error {
		var err error
		out, err = l.next.GenerateStory(ctx, category, location)
		return err
	})
	return out, err
}

func (l *Limited) GenerateReply(ctx context.Context, req ReplyRequest) (string, error) {
	var out string
	err := l.do(ctx, "reply", func(ctx context.Context) error {
		var err error
		out, err = l.next.GenerateReply(ctx, req)
		return err
	})
	return out, err
}

func (l *Limited) RenderImage(ctx context.Context, req ImageRequest) ([]ImageVariant, error) {
	var out []ImageVariant
	err := l.do(ctx, "image", func(ctx context.Context) error {
		var err error
		out, err = l.next.RenderImage(ctx, req)
		return err
	})
	return out, err
}

func (l *Limited) RenderAudio(ctx context.Context, req AudioRequest) (AudioFile, error) {
	var out AudioFile
	err := l.do(ctx, "audio", func(ctx context.Context) error {
		var err error
		out, err = l.next.RenderAudio(ctx, req)
		return err
	})
	return out, err
}

func (l *Limited) Translate(ctx context.Context, text, target string) (string, error) {
	var out string
	err := l.do(ctx, "translate", func(ctx context.Context) error {
		var err error
		out, err = l.next.Translate(ctx, text, target)
		return err
	})
	return out, err
}
