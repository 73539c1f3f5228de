package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appbilling "github.com/partnerbill/backend/internal/application/billing"
	"github.com/partnerbill/backend/internal/infrastructure/auth"
	"github.com/partnerbill/backend/internal/infrastructure/cache"
	"github.com/partnerbill/backend/internal/infrastructure/config"
	"github.com/partnerbill/backend/internal/infrastructure/event"
	"github.com/partnerbill/backend/internal/infrastructure/logger"
	"github.com/partnerbill/backend/internal/infrastructure/notification"
	"github.com/partnerbill/backend/internal/infrastructure/persistence"
	"github.com/partnerbill/backend/internal/infrastructure/scheduler"
	"github.com/partnerbill/backend/internal/interfaces/http/handler"
	"github.com/partnerbill/backend/internal/interfaces/http/middleware"
	"github.com/partnerbill/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.FromAppConfig(cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting partner billing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database with zap-backed gorm logging
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Repositories and transaction scope
	channelRepo := persistence.NewGormChannelRepository(db.DB)
	configRepo := persistence.NewGormStatementConfigRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)
	tenantSource := persistence.NewGormTenantSource(db.DB)

	// Config cache: Redis when reachable, in-memory otherwise
	cacheFactory := cache.NewConfigCacheFactory(cfg.Redis, cfg.Billing.ConfigCacheTTL,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true),
	)
	configCache, err := cacheFactory.CreateCache()
	if err != nil {
		log.Fatal("Failed to create config cache", zap.Error(err))
	}

	// In-process event bus with an audit log subscriber
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewAuditLogHandler(log), event.Wildcard)

	// Email dispatch
	transport, err := notification.NewTransport(cfg.Notification, log)
	if err != nil {
		log.Fatal("Failed to create notification transport", zap.Error(err))
	}
	notifier := notification.NewQueueNotifier(transport, cfg.Notification, log)
	defer func() {
		if err := notifier.Close(); err != nil {
			log.Error("Error closing notifier", zap.Error(err))
		}
	}()

	// Application services
	channelSvc := appbilling.NewChannelService(channelRepo, configRepo, eventBus, log)
	configSvc := appbilling.NewConfigService(channelRepo, configRepo, configCache, log)
	ledgerSvc := appbilling.NewLedgerService(txScope, eventBus, log)
	paymentSvc := appbilling.NewPaymentService(txScope, eventBus, log)
	statementSvc := appbilling.NewStatementService(txScope, configSvc, notifier, eventBus, log)
	reminderSvc := appbilling.NewReminderService(txScope, configSvc, notifier, eventBus, cfg.Billing.FinanceEmail, log)

	// Background billing passes
	billingScheduler := scheduler.NewBillingScheduler(statementSvc, reminderSvc, tenantSource, log, scheduler.BillingSchedulerConfig{
		Enabled:           cfg.Scheduler.Enabled,
		StatementInterval: cfg.Scheduler.StatementInterval,
		ReminderInterval:  cfg.Scheduler.ReminderInterval,
		PassTimeout:       cfg.Scheduler.PassTimeout,
	})
	if err := billingScheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start billing scheduler", zap.Error(err))
	}

	// HTTP engine and middleware chain
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	tokens := auth.NewTokenManager(cfg.JWT)
	engine.Use(middleware.JWTAuthMiddleware(tokens))

	// Routes
	systemHandler := handler.NewSystemHandler(map[string]handler.ReadinessChecker{
		"database": db,
	})
	engine.GET("/health", systemHandler.Health)
	engine.GET("/ready", systemHandler.Ready)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(systemHandler).
		Register(handler.NewChannelHandler(channelSvc, configSvc)).
		Register(handler.NewLedgerHandler(ledgerSvc, paymentSvc)).
		Register(handler.NewStatementHandler(statementSvc, paymentSvc, reminderSvc))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := billingScheduler.Stop(ctx); err != nil {
		log.Error("Error stopping billing scheduler", zap.Error(err))
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
