package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/d60-Lab/void-feed/config"
	"github.com/d60-Lab/void-feed/internal/api"
	"github.com/d60-Lab/void-feed/internal/api/handler"
	"github.com/d60-Lab/void-feed/internal/audio"
	"github.com/d60-Lab/void-feed/internal/audio/otobackend"
	"github.com/d60-Lab/void-feed/internal/repository"
	"github.com/d60-Lab/void-feed/internal/service"
	"github.com/d60-Lab/void-feed/pkg/cache"
	"github.com/d60-Lab/void-feed/pkg/database"
	"github.com/d60-Lab/void-feed/pkg/logger"
	"github.com/d60-Lab/void-feed/pkg/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			SampleRate:       cfg.Sentry.SampleRate,
			AttachStacktrace: true,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	rdb, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	changes := repository.NewChangeRepository(db)
	posts := repository.NewPostRepository(db, changes)
	deletions := repository.NewDeletionRepository(db)

	tally := service.NewDeletionTally(deletions, rdb, cfg.Feed.TallyTTL)
	gateway := service.NewFeedGateway(posts, deletions, rdb, cfg.Redis.Channel,
		service.WithDeletionRecordedHook(tally.OnDeletionRecorded))

	relay := service.NewChangeRelay(changes, rdb, cfg.Redis.Channel, cfg.Feed.RelayWorkers, cfg.Feed.RelayClaimLimit, cfg.Feed.RelayInterval)
	stopRelay := relay.Start()
	audit := service.NewAuditQueue(gateway, cfg.Feed.AuditQueueSize, cfg.Feed.PersistTimeout)
	stopAudit := audit.Start(cfg.Feed.AuditWorkers)

	synth := audio.NewSynthesizer(
		audio.WithEnabled(cfg.Audio.Enabled),
		audio.WithSampleRate(cfg.Audio.SampleRate),
		audio.WithBackendFactory(otobackend.New))
	defer synth.Close()

	store := service.NewFeedStore()
	notices := service.NewNoticeLog(cfg.Feed.NoticeCapacity)
	controller := service.NewFeedController(store, gateway, synth, notices,
		service.WithAuditSink(audit),
		service.WithPersistTimeout(cfg.Feed.PersistTimeout))
	syncer := service.NewFeedSyncer(store, gateway, notices, cfg.Feed.TickInterval, cfg.Feed.FetchTimeout)

	stopSyncer, err := syncer.Start(ctx)
	if err != nil {
		return fmt.Errorf("start feed syncer: %w", err)
	}

	h := handler.NewHandler(store, controller, syncer, notices, tally, synth)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(cfg, h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// 顺序：先停 HTTP 与订阅，再中断动画，最后排空外发盒与审计
		errs := []error{srv.Shutdown(sctx), stopSyncer(sctx)}
		controller.Close()
		errs = append(errs, stopRelay(sctx), stopAudit(sctx), shutdownTracing(sctx))
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("exit with error", zap.Error(err))
		return err
	}
	return nil
}
