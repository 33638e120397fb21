package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nonotalk/backend/internal/analysis/crisis"
	"github.com/nonotalk/backend/internal/config"
	"github.com/nonotalk/backend/internal/handler"
	"github.com/nonotalk/backend/internal/logging"
	"github.com/nonotalk/backend/internal/mail"
	"github.com/nonotalk/backend/internal/middleware"
	"github.com/nonotalk/backend/internal/model/persona"
	"github.com/nonotalk/backend/internal/queue"
	"github.com/nonotalk/backend/internal/service/ai"
	"github.com/nonotalk/backend/internal/service/auth"
	"github.com/nonotalk/backend/internal/service/chat"
	"github.com/nonotalk/backend/internal/service/invite"
	"github.com/nonotalk/backend/internal/service/quota"
	"github.com/nonotalk/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := store.Open(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Migrate(db, logger); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Server.UploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload directory: %w", err)
	}

	personas := persona.NewMemoryStore(persona.Seed())

	// Initialize AI service
	var chatModel model.ChatModel
	if cfg.AI.Enabled() {
		chatModel, err = cfg.AI.NewChatModel(ctx)
		if err != nil {
			return fmt.Errorf("create chat model: %w", err)
		}
	} else {
		logger.Warn("model credentials missing, replies will use the apology fallback")
		chatModel = ai.NewUnavailableModel("model credentials missing")
	}
	aiSvc, err := ai.NewService(ctx, chatModel, personas, cfg.AI, logger)
	if err != nil {
		return err
	}
	if cfg.AI.Warmup && cfg.AI.Enabled() {
		ai.StartWarmup(ctx, chatModel, cfg.AI.WarmupTimeout, logger)
	}

	ledger := quota.NewLedger(logger)
	pipeline := chat.NewPipeline(db, aiSvc, crisis.NewDetector(cfg.Crisis.Keywords), ledger, chat.Options{
		RichHistory:   cfg.AI.RichHistory,
		StreamHistory: cfg.AI.StreamHistory,
		UploadDir:     cfg.Server.UploadDir,
	}, logger)
	authSvc := auth.NewService(db, ledger, cfg.Auth.SessionTTL, logger)

	queueClient, queueServer, err := queue.New(cfg.Queue, logger)
	if err != nil {
		return err
	}
	defer queueClient.Close()
	invite.RegisterEmailTask(queueServer, mail.NewSender(cfg.Mail, logger), cfg.Mail.BaseURL, cfg.Mail.SignupURL)
	inviteSvc := invite.NewService(db, queueClient, logger)

	var pattern *regexp.Regexp
	if cfg.Server.OriginPattern != "" {
		pattern = regexp.MustCompile(cfg.Server.OriginPattern)
	}

	router := handler.NewRouter(handler.Deps{
		Config:   cfg,
		DB:       db,
		Personas: personas,
		Auth:     authSvc,
		Pipeline: pipeline,
		Invites:  inviteSvc,
		Origins:  middleware.NewOriginMatcher(cfg.Server.Origins, pattern),
		Logger:   logger,
	})

	addr, err := cfg.Server.Addr()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("NonoTalk backend listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return queueServer.Run(gctx)
	})

	return g.Wait()
}
