package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/epi-orchestrator/internal/engine"
	"github.com/xela07ax/epi-orchestrator/internal/infra"
	"github.com/xela07ax/epi-orchestrator/internal/repository"
	"github.com/xela07ax/epi-orchestrator/internal/repository/memory"
	"github.com/xela07ax/epi-orchestrator/internal/repository/postgres"
	"github.com/xela07ax/epi-orchestrator/internal/server"
	"github.com/xela07ax/epi-orchestrator/internal/server/handler"
	"github.com/xela07ax/epi-orchestrator/internal/service"
)

func main() {
	// 1. Инфраструктура и ресурсы
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Хранилище: postgres (prod) или memory (стенды без базы)
	var store repository.Store
	switch cfg.Engine.Store {
	case "memory":
		logger.Warn("using in-memory event store, data will not survive restarts")
		store = memory.New()
	default:
		pg, err := postgres.New(appCtx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			logger.Fatal("failed to init postgres store", zap.Error(err))
		}
		defer pg.Close()

		// Базе даем время подняться (docker-compose и т.п.)
		r := retry.New(
			retry.Context(appCtx),
			retry.Attempts(5),
		)
		if err := r.Do(func() error {
			pingCtx, pingCancel := context.WithTimeout(appCtx, 5*time.Second)
			defer pingCancel()
			return pg.Ping(pingCtx)
		}); err != nil {
			logger.Fatal("database unreachable", zap.Error(err))
		}

		if err := pg.Migrate(appCtx); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		store = pg
	}

	// 3. Метрики
	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	// Экспортируем метрики для Prometheus
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		logger.Info("metrics listener started", zap.String("addr", cfg.Metrics.Addr))
		if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
			logger.Error("metrics listener failed", zap.Error(err))
		}
	}()

	// 4. Надежность: таймауты + Circuit Breaker вокруг хранилища
	safeStore := engine.NewReliableStore(store, engine.ReliabilitySettings{
		StoreTimeout:  cfg.Engine.StoreTimeout,
		CBMaxRequests: cfg.Engine.CBMaxRequests,
		CBInterval:    cfg.Engine.CBInterval,
		CBTimeout:     cfg.Engine.CBTimeout,
	}, metrics)

	// 5. Трансляция решений (опционально, по наличию Redis)
	var notifier engine.DecisionNotifier
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		notifier = engine.NewDecisionPublisher(rdb, logger)
	}

	// 6. Сборка ядра и слоев (Dependency Injection)
	orch := engine.NewOrchestrator(safeStore, notifier, metrics, logger)
	querySvc := service.NewQueryService(
		safeStore,
		cfg.Engine.HistoryLimit,
		cfg.Engine.MaxHistoryLimit,
		cfg.Engine.AllowClear,
		logger,
	)

	srv := server.New(
		cfg,
		logger,
		handler.NewEventHandler(orch, logger),
		handler.NewOrchestrationHandler(orch, logger),
		handler.NewQueryHandler(querySvc, logger),
	)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 7. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("EPI orchestrator started", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("EPI orchestrator stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("EPI orchestrator exited properly")
}
