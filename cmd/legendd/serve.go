package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/d60-Lab/living-legends/internal/api"
	"github.com/d60-Lab/living-legends/internal/api/handler"
	"github.com/d60-Lab/living-legends/internal/repository"
	"github.com/d60-Lab/living-legends/internal/scheduler"
	"github.com/d60-Lab/living-legends/internal/service"
	"github.com/d60-Lab/living-legends/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, job workers and scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())
	if err := a.migrate(); err != nil {
		return err
	}
	cfg := a.cfg

	queue := a.jobQueue()
	stopQueue := queue.Start(ctx)

	seeds := a.seeds()
	driver, err := scheduler.NewDriver(a.scheduler(seeds), cfg.Scheduler)
	if err != nil {
		return err
	}
	stopDriver := driver.Start(ctx)

	stories := repository.NewStoryRepository(a.db)
	auth := service.NewAuthService(repository.NewUserRepository(a.db), cfg.JWT)
	h := handler.New(handler.Options{
		Auth:          auth,
		Stories:       service.NewStoryService(stories, repository.NewCommentRepository(a.db), repository.NewEvidenceRepository(a.db), a.deps.Feed),
		Comments:      service.NewCommentService(a.deps, queue),
		Follows:       service.NewFollowService(stories, repository.NewFollowRepository(a.db)),
		Notifications: service.NewNotificationService(repository.NewNotificationRepository(a.db)),
		Resetter:      seeds,
		Categories:    service.NewCategoryService(repository.NewCategoryClickRepository(a.db)),
		Translator:    service.NewTranslateService(a.gen),
	})
	router := api.NewRouter(h, auth, api.RouterOptions{
		Mode:         cfg.Server.Mode,
		ServiceName:  cfg.Tracing.ServiceName,
		Tracing:      cfg.Tracing.Enabled,
		AdminKey:     cfg.Server.AdminKey,
		StaticDir:    cfg.Storage.GeneratedDir,
		StaticPrefix: cfg.Storage.PublicPrefix,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}
	logger.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if serr := srv.Shutdown(sctx); serr != nil {
		logger.Warn("http shutdown", zap.Error(serr))
	}
	stopDriver()
	if qerr := stopQueue(sctx); qerr != nil {
		logger.Warn("job queue shutdown", zap.Error(qerr))
	}
	return err
}
