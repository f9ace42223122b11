package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coin-miner/internal/cache"
	"coin-miner/internal/clock"
	"coin-miner/internal/config"
	"coin-miner/internal/httpapi"
	"coin-miner/internal/leaderboard"
	"coin-miner/internal/metrics"
	"coin-miner/internal/migrations"
	"coin-miner/internal/mining"
	"coin-miner/internal/referral"
	"coin-miner/internal/scheduler"
	"coin-miner/internal/store"
	"coin-miner/internal/tasks"

	"go.uber.org/zap"
)

func main() {
	// Инициализация логгера
	logger, err := initLogger()
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("запуск приложения Coin Miner")

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("ошибка загрузки конфигурации", zap.Error(err))
	}

	// Инициализация базы данных
	st, err := store.NewStore(cfg, logger)
	if err != nil {
		logger.Fatal("ошибка инициализации базы данных", zap.Error(err))
	}
	defer st.Close()

	// Применение миграций
	if err := migrations.RunMigrations(cfg, logger); err != nil {
		logger.Fatal("ошибка применения миграций", zap.Error(err))
	}

	clk := clock.NewSystem()

	// Инициализация метрик
	metricsSystem := metrics.New(logger)
	metricsHandler := metrics.NewHandler(metricsSystem, st, logger)

	// Кэш рейтинга опционален: без Redis рейтинг читается из базы
	var leaderboardCache leaderboard.Cache
	if cfg.Redis.Enabled {
		redisClient, err := cache.Connect(cfg)
		if err != nil {
			logger.Fatal("ошибка подключения к Redis", zap.Error(err))
		}
		defer redisClient.Close()

		leaderboardCache = cache.NewLeaderboardCache(redisClient, cfg.Redis.TTL, logger)
		logger.Info("кэш рейтинга включен", zap.String("addr", cfg.Redis.GetAddr()))
	} else {
		logger.Info("кэш рейтинга отключен")
	}

	// Инициализация сервисов
	miningService := mining.NewService(st, clk, cfg.Game, metricsSystem, logger)
	referralService := referral.NewService(st, clk, cfg.Game, cfg.App.BaseURL, metricsSystem, logger)
	tasksService := tasks.NewService(st, clk, cfg.Game, metricsSystem, logger)
	leaderboardService := leaderboard.NewService(st, clk, cfg.Game, leaderboardCache, metricsSystem, logger)

	// Инициализация HTTP обработчика игрового API
	apiHandler := httpapi.NewHandler(miningService, referralService, tasksService, leaderboardService, logger)

	// Инициализация планировщика задач
	taskScheduler := scheduler.NewScheduler(logger)
	taskScheduler.AddJob(scheduler.NewLeaderboardRewardsJob(leaderboardService, logger))

	// Создание канала для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Обработка сигналов для graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Запуск HTTP сервера
	go startServer(ctx, cfg.App.Port, apiHandler, metricsHandler, logger)

	// Запуск планировщика задач (каждый час; повторный запуск за день безопасен)
	go taskScheduler.Start(ctx, time.Hour)

	logger.Info("приложение запущено и готово к работе",
		zap.String("address", fmt.Sprintf("http://localhost:%d", cfg.App.Port)),
	)

	// Ожидание сигнала завершения
	<-sigChan
	logger.Info("получен сигнал завершения, начинаем graceful shutdown")

	cancel()
	time.Sleep(time.Second)

	logger.Info("приложение завершено")
}

// initLogger инициализирует логгер
func initLogger() (*zap.Logger, error) {
	// В продакшене можно использовать JSON формат
	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{"stdout", "logs/app.log"}
	config.ErrorOutputPaths = []string{"stderr", "logs/error.log"}

	// Создаем директорию для логов если её нет
	if err := os.MkdirAll("logs", 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории логов: %w", err)
	}

	return config.Build()
}

// startServer запускает HTTP сервер игрового API и метрик
func startServer(ctx context.Context, port int, apiHandler *httpapi.Handler, metricsHandler *metrics.Handler, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler.MetricsHandler())
	mux.HandleFunc("/health", metricsHandler.HealthHandler)

	apiHandler.Register(mux)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	logger.Info("HTTP сервер запущен", zap.String("address", server.Addr))

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ошибка HTTP сервера", zap.Error(err))
		}
	}()

	// Ожидание сигнала завершения
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("ошибка остановки HTTP сервера", zap.Error(err))
	}
}
