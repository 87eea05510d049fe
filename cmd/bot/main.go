package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/app"
	"github.com/Freeeeeet/attendance_bot/internal/auth"
	"github.com/Freeeeeet/attendance_bot/internal/config"
	"github.com/Freeeeeet/attendance_bot/internal/controller"
	"github.com/Freeeeeet/attendance_bot/internal/controller/common"
	"github.com/Freeeeeet/attendance_bot/internal/events"
	"github.com/Freeeeeet/attendance_bot/internal/httpapi"
	"github.com/Freeeeeet/attendance_bot/internal/metrics"
	"github.com/Freeeeeet/attendance_bot/internal/repository"
	"github.com/Freeeeeet/attendance_bot/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(app.LogOptions{
		Env:      cfg.Environment,
		Level:    cfg.LogLevel,
		Location: cfg.Location,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Sugar().Infow("Starting attendance service",
		"environment", cfg.Environment,
		"timezone", cfg.Timezone,
		"bot_enabled", cfg.TelegramToken != "",
		"redis_enabled", cfg.RedisAddr != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Service stopped with error", zap.Error(err))
	}
	logger.Info("Service stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	logger.Info("✅ Connected to database")

	migrator, err := app.NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	if err := migrator.Run(ctx); err != nil {
		return err
	}
	_ = migrator.Close()

	// Репозитории
	templateRepo := repository.NewTemplateRepository(pool, logger)
	lessonRepo := repository.NewLessonRepository(pool)
	attendanceRepo := repository.NewAttendanceRepository(pool)
	rosterRepo := repository.NewRosterRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	catalogRepo := repository.NewCatalogRepository(pool, logger)

	// События: метрики всегда, Redis по желанию
	m := metrics.New(prometheus.DefaultRegisterer)
	sinks := events.Fanout{m}
	if cfg.RedisAddr != "" {
		client := events.NewRedisClient(cfg.RedisAddr)
		defer client.Close()

		publisher := events.NewRedisPublisher(client, cfg.RedisEventsKey)
		if !publisher.Healthy(ctx) {
			logger.Warn("Redis is not reachable, events will be retried per publish", zap.String("addr", cfg.RedisAddr))
		}
		sinks = append(sinks, publisher)
	}

	// Сервисы
	policy := service.NewWindowPolicy(cfg.OpenBefore, cfg.CloseAfter, cfg.LateThreshold, cfg.Location)
	userService := service.NewUserService(userRepo, rosterRepo, cfg.IsAdmin, logger)
	lessonService := service.NewLessonService(templateRepo, lessonRepo, attendanceRepo, rosterRepo, policy, sinks, logger)
	todayService := service.NewTodayService(lessonService, templateRepo, attendanceRepo, rosterRepo, logger)
	reportService := service.NewReportService(templateRepo, lessonRepo, attendanceRepo, rosterRepo, logger)
	catalogService := service.NewCatalogService(catalogRepo, templateRepo, templateRepo, rosterRepo, rosterRepo, userRepo, logger)
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)

	// Фоновые задачи
	planner, err := app.NewPlanner(cfg.PlanCron, lessonService, templateRepo, logger)
	if err != nil {
		return err
	}
	if _, err := planner.Plan(ctx, time.Now()); err != nil {
		logger.Error("Initial planning failed", zap.Error(err))
	}
	planner.Start()
	defer planner.Stop()

	sweeper := app.NewSweeper(lessonService, templateRepo, lessonRepo, cfg.SweepInterval, m, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// Telegram
	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken, bot.WithErrorsHandler(func(err error) {
			logger.Error("Telegram error", zap.Error(err))
		}))
		if err != nil {
			return err
		}

		botController := controller.NewBotController(b, &common.Services{
			Users:   userService,
			Lessons: lessonService,
			Today:   todayService,
			Reports: reportService,
			Issuer:  issuer,
			Logger:  logger,
		})
		if err := botController.RegisterHandlers(ctx); err != nil {
			logger.Warn("Bot commands menu not set", zap.Error(err))
		}
		go botController.Start(ctx)
	}

	// HTTP
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(httpapi.Deps{
		Users:       userService,
		Lessons:     lessonService,
		Today:       todayService,
		Reports:     reportService,
		Catalog:     catalogService,
		Issuer:      issuer,
		BotToken:    cfg.TelegramToken,
		InitDataTTL: cfg.InitDataTTL,
		DB:          pool,
		Metrics:     promhttp.Handler(),
		Middlewares: []gin.HandlerFunc{m.GinMiddleware()},
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
