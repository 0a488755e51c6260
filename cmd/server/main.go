// Package main запускает сервис VizLab для просмотра временных рядов
// аппаратных счетчиков производительности.
// Сервис реализует:
// - реестр устройств по каталогу данных с перестроением без перезапуска
// - выдачу сигналов из CSV с метками атаки
// - производные отношения сигналов с кэшем на сессию
// - экспорт метрик в Prometheus
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"vizlab-service/internal/analytics"
	"vizlab-service/internal/cache"
	"vizlab-service/internal/config"
	"vizlab-service/internal/handlers"
	"vizlab-service/internal/labels"
	"vizlab-service/internal/models"
	"vizlab-service/internal/registry"
	"vizlab-service/internal/signals"
)

func main() {
	cfg, err := config.Load(os.Getenv("VIZLAB_CONFIG"))
	if err != nil {
		// логгер еще не создан
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
	logger.Info("service stopped")
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting VizLab service",
		zap.String("addr", cfg.Server.Addr),
		zap.String("data_root", cfg.Data.Root),
	)

	// Реестр устройств: пустой реестр не мешает старту, сервис работает
	// в деградированном режиме до успешного POST /reload
	reg := registry.New(cfg.Data.Root, logger.Named("registry"))
	reloader := registry.NewReloader(reg, cfg.Reload.PerSecond, cfg.Reload.Burst, logger.Named("registry"))
	if _, err := reloader.Reload(ctx); err != nil {
		if !errors.Is(err, models.ErrEmptyRegistry) && !errors.Is(err, models.ErrConfig) {
			return err
		}
		logger.Error("registry unavailable, serving degraded", zap.Error(err))
	}

	counters, redisCache := connectCounters(cfg.Redis, logger)
	if redisCache != nil {
		defer redisCache.Close()
	}

	signalService := signals.NewService(reg, labels.NewResolver(), logger.Named("signals"))
	engine := analytics.NewEngine(signalService, logger.Named("ratios"))
	engine.OnCompute(func(models.RatioKey) {
		if _, err := counters.IncrementCounter(cache.RatiosComputedKey); err != nil {
			logger.Warn("counter update failed", zap.Error(err))
		}
	})
	sessions := analytics.NewSessionStore(logger.Named("sessions"))

	// перестроения через API и через наблюдатель каталога считаются одинаково
	reloader.OnReload(func(*registry.Snapshot) {
		if _, err := counters.IncrementCounter(cache.ReloadsKey); err != nil {
			logger.Warn("counter update failed", zap.Error(err))
		}
	})

	h := handlers.NewHandler(handlers.Deps{
		Registry: reg,
		Reloader: reloader,
		Signals:  signalService,
		Engine:   engine,
		Sessions: sessions,
		Counters: counters,
		Redis:    redisCache,
		Logger:   logger.Named("http"),
	})

	router := mux.NewRouter()
	h.Routes(router)
	router.Handle("/prometheus", promhttp.Handler())
	router.Use(handlers.LoggingMiddleware(logger.Named("http")))
	router.Use(handlers.MetricsMiddleware)

	var handler http.Handler = router
	if cfg.Server.Gzip {
		handler = gzhttp.GzipHandler(router)
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return sessions.RunSweeper(gctx, cfg.Sessions.SweepInterval, cfg.Sessions.IdleTTL)
	})

	if cfg.Data.Watch {
		watcher, err := registry.NewWatcher(reloader, cfg.Data.Debounce, logger.Named("watcher"))
		if err != nil {
			logger.Warn("data root watcher disabled", zap.Error(err))
		} else {
			g.Go(func() error {
				return watcher.Run(gctx)
			})
		}
	}

	return g.Wait()
}

// connectCounters подключает Redis с повторами; без Redis счетчики хранятся в памяти
func connectCounters(cfg config.RedisConfig, logger *zap.Logger) (cache.Counters, *cache.RedisCache) {
	if cfg.Addr == "" {
		logger.Info("redis disabled, using in-memory counters")
		return cache.NewMemoryCounters(), nil
	}

	var err error
	for i := 0; i < 5; i++ {
		var rc *cache.RedisCache
		rc, err = cache.NewRedisCache(cfg.Addr, cfg.Password, cfg.DB)
		if err == nil {
			logger.Info("connected to redis", zap.String("addr", cfg.Addr))
			return rc, rc
		}
		logger.Warn("redis connection attempt failed", zap.Int("attempt", i+1), zap.Error(err))
		if i < 4 {
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}

	logger.Warn("failed to connect to redis, using in-memory counters", zap.Error(err))
	return cache.NewMemoryCounters(), nil
}

// newLogger создает zap логгер по конфигурации
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build()
}
