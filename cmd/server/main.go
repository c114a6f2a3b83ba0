package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/chatdesk/internal/config"
	"github.com/iliyamo/chatdesk/internal/database"
	"github.com/iliyamo/chatdesk/internal/handler"
	"github.com/iliyamo/chatdesk/internal/logger"
	"github.com/iliyamo/chatdesk/internal/metrics"
	"github.com/iliyamo/chatdesk/internal/middleware"
	"github.com/iliyamo/chatdesk/internal/presence"
	"github.com/iliyamo/chatdesk/internal/queue"
	"github.com/iliyamo/chatdesk/internal/realtime"
	"github.com/iliyamo/chatdesk/internal/repository"
	"github.com/iliyamo/chatdesk/internal/router"
	"github.com/iliyamo/chatdesk/internal/service"
)

func main() {
	cfg := config.Load() // Load environment config

	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		zl.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			zl.Fatal("migrate database", zap.Error(err))
		}
		zl.Info("database schema applied")
	}

	// Presence and queue index: Redis when configured, in-process otherwise.
	var (
		kv  presence.KV
		rdb *redis.Client
	)
	rcfg := config.LoadRedisConfig()
	if rcfg.Disabled {
		kv = presence.NewMemoryStore()
		zl.Info("redis disabled, using in-memory presence")
	} else {
		rdb = config.NewRedisClient(rcfg)
		defer rdb.Close()
		store := presence.NewRedisStore(rdb, zl, presence.Options{
			MaxRetries: rcfg.MaxRetries,
			MaxBackoff: rcfg.MaxBackoff,
			OnState:    func(st presence.State) { metrics.PresenceState.Set(float64(st)) },
		})
		store.Start(ctx)
		kv = store
	}
	tracker := presence.NewTracker(kv)

	// Repositories
	companies := repository.NewCompanyRepo(db)
	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	plans := repository.NewPlanRepo(db)
	depts := repository.NewDepartmentRepo(db)
	chats := repository.NewChatRepo(db)
	messages := repository.NewMessageRepo(db)
	events := repository.NewAnalyticsRepo(db)
	tokens := repository.NewTokenRepo(db)

	// Services
	checker := service.NewPlanChecker(plans, users, depts)
	perms := service.NewPermissionEvaluator(roles, cfg.PermissionTTL)
	analytics := service.NewAnalyticsService(events, chats, messages, checker)
	authSvc := service.NewAuthService(service.AuthConfig{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
		TrialDays:      cfg.TrialDays,
		DefaultPlan:    cfg.DefaultPlan,
	}, users, companies, roles, plans, tokens)

	// Chat events go through RabbitMQ when configured; the consumer feeds
	// analytics.  Without a broker they are tracked in-process.
	var publisher service.EventPublisher
	if cfg.AMQPURL != "" {
		pub := queue.NewPublisher(cfg.AMQPURL, zl)
		defer pub.Close()
		publisher = pub
		consumer := queue.NewConsumer(cfg.AMQPURL, analytics.Track, zl)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("chat event consumer stopped", zap.Error(err))
			}
		}()
	} else {
		publisher = queue.Direct{Handle: analytics.Track, Log: zl}
	}

	hub := realtime.NewHub(tracker, zl)
	chatSvc := service.NewChatService(chats, messages, depts, users, tracker, publisher, hub)
	msgSvc := service.NewMessageService(messages, users, chatSvc, publisher)
	widgetSvc := service.NewWidgetService(companies, users, checker, tracker)

	if cfg.SuperAdminEmail != "" {
		if err := authSvc.EnsureSuperAdmin(logger.WithContext(ctx, zl), cfg.SuperAdminEmail, cfg.SuperAdminPassword); err != nil {
			zl.Fatal("bootstrap super admin", zap.Error(err))
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Validator = handler.NewValidator()
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	e.Use(echomw.Recover())
	e.Use(middleware.RequestID(zl))
	e.Use(logger.Middleware())
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization,
			middleware.HeaderWidgetKey, middleware.HeaderTenantSlug, middleware.HeaderSubdomain,
		},
	}))

	router.Register(e, router.Handlers{
		Health:        &handler.HealthHandler{DB: db, Presence: tracker},
		Auth:          handler.NewAuthHandler(authSvc),
		Chats:         handler.NewChatHandler(chatSvc, widgetSvc),
		Messages:      handler.NewMessageHandler(msgSvc, hub),
		Users:         handler.NewUserHandler(service.NewUserService(users, roles, depts, checker, cfg.BcryptCost)),
		Roles:         handler.NewRoleHandler(service.NewRoleService(roles, users, checker, perms)),
		Departments:   handler.NewDepartmentHandler(service.NewDepartmentService(depts, checker)),
		Permissions:   handler.NewPermissionHandler(perms),
		Plans:         handler.NewPlanHandler(service.NewPlanService(plans)),
		Subscriptions: handler.NewSubscriptionHandler(service.NewSubscriptionService(plans, checker)),
		Companies:     handler.NewCompanyHandler(service.NewCompanyService(companies)),
		Widget:        handler.NewWidgetHandler(widgetSvc),
		Analytics:     handler.NewAnalyticsHandler(analytics),
		Admin:         handler.NewAdminHandler(service.NewAdminService(companies, users, chats)),
		Gateway:       realtime.NewGateway(hub, authSvc, widgetSvc, chatSvc, msgSvc, cfg.WSOrigins, zl),
	}, router.Guards{
		Auth:      authSvc,
		Tenants:   service.NewTenantResolver(companies),
		Perms:     perms,
		RateLimit: middleware.NewWidgetLimiter(config.LoadRateLimitConfig(), rdb),
	})

	addr := ":" + cfg.Port // Address string with port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	hub.Close()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("http shutdown", zap.Error(err))
	}
}
