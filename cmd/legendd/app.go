package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/living-legends/config"
	"github.com/d60-Lab/living-legends/internal/artifact"
	"github.com/d60-Lab/living-legends/internal/cache"
	"github.com/d60-Lab/living-legends/internal/catalog"
	"github.com/d60-Lab/living-legends/internal/generator"
	"github.com/d60-Lab/living-legends/internal/messaging"
	"github.com/d60-Lab/living-legends/internal/model"
	"github.com/d60-Lab/living-legends/internal/scheduler"
	"github.com/d60-Lab/living-legends/internal/service"
	"github.com/d60-Lab/living-legends/internal/storylock"
	"github.com/d60-Lab/living-legends/internal/storystate"
	"github.com/d60-Lab/living-legends/pkg/database"
	"github.com/d60-Lab/living-legends/pkg/logger"
	"github.com/d60-Lab/living-legends/pkg/monitor"
	"github.com/d60-Lab/living-legends/pkg/telemetry"
)

// app 进程级依赖；close 按创建的逆序释放
type app struct {
	cfg         *config.Config
	db          *gorm.DB
	redis       *redis.Client
	catalog     *catalog.Catalog
	gen         generator.Generator
	placeholder *generator.Placeholder
	deps        service.Deps
	closers     []func(context.Context) error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}
	a.onClose(func(context.Context) error { logger.Sync(); return nil })

	if err := monitor.Init(cfg.Sentry); err != nil {
		logger.Warn("sentry disabled", zap.Error(err))
	}
	a.onClose(func(context.Context) error { monitor.Flush(2 * time.Second); return nil })

	shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	} else {
		a.onClose(shutdownTracing)
	}

	if a.db, err = database.InitDB(cfg); err != nil {
		return nil, a.fail(ctx, err)
	}
	a.onClose(func(context.Context) error {
		sqlDB, err := a.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	if a.catalog, err = catalog.Load(); err != nil {
		return nil, a.fail(ctx, err)
	}

	locker := storylock.Locker(storylock.NewLocal())
	feed := cache.FeedCache(cache.Nop{})
	if cfg.Redis.Enabled() {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.onClose(func(context.Context) error { return a.redis.Close() })
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, a.fail(ctx, fmt.Errorf("redis ping: %w", err))
		}
		feed = cache.NewRedisFeed(a.redis, cfg.Redis.FeedTTL)
		if cfg.Engine.LockBackend == "redis" {
			locker = storylock.NewRedis(a.redis, cfg.Engine.LockTTL)
		}
	} else if cfg.Engine.LockBackend == "redis" {
		return nil, a.fail(ctx, errors.New("engine.lock_backend=redis requires redis.addr"))
	}

	var pub messaging.Publisher = messaging.Nop{}
	if cfg.Messaging.Enabled {
		rabbit, err := messaging.DialRabbit(cfg.Messaging.URL, cfg.Messaging.Exchange)
		if err != nil {
			return nil, a.fail(ctx, err)
		}
		pub = rabbit
		a.onClose(func(context.Context) error { return rabbit.Close() })
	}

	store, err := artifact.NewFileStore(cfg.Storage.GeneratedDir, cfg.Storage.PublicPrefix)
	if err != nil {
		return nil, a.fail(ctx, err)
	}
	a.placeholder = generator.NewPlaceholder(store)
	a.gen = generator.Offline{}
	if cfg.AI.Enabled() {
		a.gen = generator.NewLimited(generator.NewOpenAI(cfg.AI, a.catalog, store, logger.Named("openai")),
			cfg.AI.RatePerSec, cfg.AI.Burst, cfg.AI.Timeout)
	} else {
		logger.Warn("ai.api_key not set, using offline generator")
	}

	a.deps = service.Deps{
		DB:       a.db,
		Locker:   locker,
		Notifier: service.NewNotifier(a.db, pub),
		Catalog:  a.catalog,
		Engine:   cfg.Engine,
		Feed:     feed,
	}
	a.onClose(func(ctx context.Context) error {
		fctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return a.deps.Notifier.Flush(fctx)
	})
	return a, nil
}

func (a *app) onClose(fn func(context.Context) error) { a.closers = append(a.closers, fn) }

func (a *app) fail(ctx context.Context, err error) error {
	a.close(ctx)
	return err
}

func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("shutdown step failed", zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *app) migrate() error {
	if err := a.db.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (a *app) seeds() *service.SeedService {
	return service.NewSeedService(a.deps, a.gen, rand.New(rand.NewSource(time.Now().UnixNano())))
}

func (a *app) scheduler(seeds *service.SeedService) *scheduler.Scheduler {
	return scheduler.New(a.db, a.gen, storystate.RulesFromConfig(a.cfg.State), a.cfg.Scheduler, scheduler.Options{
		Catalog:   a.catalog,
		Locker:    a.deps.Locker,
		Refresher: seeds,
		Feed:      a.deps.Feed,
	})
}

// jobQueue 注册回复与证据任务
func (a *app) jobQueue() *service.JobQueue {
	q := service.NewJobQueue(a.db, a.cfg.Engine)
	q.Register(model.JobReply, service.NewReplyService(a.deps, a.gen))
	q.Register(model.JobEvidence, service.NewEvidenceService(a.deps, a.gen, a.placeholder))
	return q
}
