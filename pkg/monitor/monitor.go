package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/d60-Lab/living-legends/config"
)

var enabled bool

// Init 初始化 Sentry；DSN 为空时所有上报均为空操作
func Init(cfg config.SentryConfig) error {
	if cfg.DSN == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		SampleRate:  cfg.SampleRate,
	}); err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	enabled = true
	return nil
}

// CaptureError 上报错误并附带标签
func CaptureError(ctx context.Context, err error, tags map[string]string) {
	if !enabled || err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}

// CapturePanic 上报 recover 得到的值
func CapturePanic(ctx context.Context, rec interface{}, tags map[string]string) {
	if !enabled || rec == nil {
		return
	}
	CaptureError(ctx, fmt.Errorf("panic: %v", rec), tags)
}

// Flush 退出前等待事件发送完成
func Flush(timeout time.Duration) {
	if enabled {
		sentry.Flush(timeout)
	}
}
