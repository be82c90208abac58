package main

import (
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botrelay/internal/infrastructure"
	"botrelay/internal/interfaces"
	"botrelay/internal/interfaces/http"
	"botrelay/internal/repository"
	"botrelay/internal/usecases"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	outboundRate  = 25 // messages per second per bot
	outboundBurst = 30
	guardMaxAge   = 10 * time.Minute
)

func main() {
	bootLogger, err := infrastructure.NewLogger(os.Getenv("GIN_MODE"))
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	cfg := infrastructure.LoadConfig(bootLogger)

	logger, err := infrastructure.NewLogger(cfg.Server.Mode)
	if err != nil {
		bootLogger.Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync()
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]http.HealthCheck{}

	// Direct connection is optional; without it schema apply and SQL go through exec_sql
	var sqlRunner interfaces.SQLRunner
	if cfg.Database.URL != "" {
		pgClient, err := infrastructure.NewPostgresClient(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pgClient.Close()
		sqlRunner = repository.NewSQLRunner(pgClient)
		checks["postgres"] = pgClient.Ping
		logger.Info("direct database connection ready")
	}

	var dedup interfaces.Deduper = infrastructure.NewMemoryDeduper()
	if cfg.Redis.URL != "" {
		rdb, err := infrastructure.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		dedup = infrastructure.NewRedisDeduper(rdb)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logger.Info("webhook dedup backed by redis")
	}

	// OpenAI first, Gemini as fallback
	var providers []interfaces.AIProvider
	if cfg.AI.OpenAIKey != "" {
		providers = append(providers, infrastructure.NewOpenAIClient(cfg.AI))
	}
	if cfg.AI.GeminiKey != "" {
		gemini, err := infrastructure.NewGeminiClient(ctx, cfg.AI)
		if err != nil {
			logger.Error("gemini client disabled", zap.Error(err))
		} else {
			providers = append(providers, gemini)
		}
	}
	if len(providers) == 0 {
		logger.Warn("no AI provider configured; AI routes will return 503")
	}
	validators := map[string]usecases.KeyValidator{
		infrastructure.ProviderOpenAI: func(ctx context.Context, key string) error {
			return infrastructure.ValidateOpenAIKey(ctx, key, cfg.AI.OpenAIBaseURL)
		},
		infrastructure.ProviderGemini: infrastructure.ValidateGeminiKey,
	}
	aiService := usecases.NewAIService(providers, validators, logger)

	tgManager := infrastructure.NewTelegramBotManager(cfg.Telegram.APIEndpoint, logger)
	limiter := infrastructure.NewMessageRateLimiter(outboundRate, outboundBurst)
	defer limiter.Close()
	guard := infrastructure.NewChatGuard()
	go pruneGuard(ctx, guard, logger)

	tenants := repository.NewTenantManager(cfg.Supabase)
	if !cfg.Supabase.Configured() {
		logger.Warn("no default Supabase project; requests need credential cookies or headers")
	}

	authUsecase, err := usecases.NewAuthUsecase(cfg.Admin)
	if err != nil {
		logger.Fatal("failed to initialise admin auth", zap.Error(err))
	}
	if !authUsecase.Enabled() {
		logger.Warn("ADMIN_PASSWORD not set; admin login disabled")
	}

	messageService := usecases.NewMessageService(tgManager, aiService, limiter, guard, dedup, cfg.Telegram.BotToken, logger)
	botUsecase := usecases.NewBotUsecase(tgManager, cfg.Server.PublicBaseURL, cfg.Telegram.WebhookSecret, logger)
	setupUsecase := usecases.NewSetupUsecase(tenants, sqlRunner, cfg.Supabase, cfg.AI.EmbeddingDimensions)
	dashboardUsecase := usecases.NewDashboardUsecase(sqlRunner)

	r := gin.New()
	r.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(logger, true))

	http.SetupRoutes(r, http.Deps{
		Config:    cfg,
		Logger:    logger,
		Auth:      authUsecase,
		Setup:     setupUsecase,
		Messages:  messageService,
		Bots:      botUsecase,
		AI:        aiService,
		Dashboard: dashboardUsecase,
		Resolver:  tenants,
		Checks:    checks,
	})

	srv := &nethttp.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port), zap.Strings("ai_providers", aiService.Providers()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// pruneGuard drops idle chat sessions so the guard map does not grow forever
func pruneGuard(ctx context.Context, guard *infrastructure.ChatGuard, logger *zap.Logger) {
	ticker := time.NewTicker(guardMaxAge)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := guard.Prune(guardMaxAge); n > 0 {
				logger.Debug("pruned idle chat sessions", zap.Int("count", n))
			}
		}
	}
}
