package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Showroom/internal/api"
	"github.com/shaiso/Showroom/internal/filecache"
	"github.com/shaiso/Showroom/internal/gateway"
	"github.com/shaiso/Showroom/internal/governor"
	"github.com/shaiso/Showroom/internal/mq"
	"github.com/shaiso/Showroom/internal/render"
	"github.com/shaiso/Showroom/internal/repo"
	"github.com/shaiso/Showroom/internal/storage"
	"github.com/shaiso/Showroom/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "showroom_api_http_requests_total",
		Help: "Total HTTP requests handled by showroom_api",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting showroom-api")

	// Подключаемся к базе данных
	pool, err := repo.NewPool(context.Background())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// Создаём репозитории
	tenantRepo := repo.NewTenantRepo(pool)
	assetRepo := repo.NewAssetRepo(pool)
	roomRepo := repo.NewRoomRepo(pool)
	runRepo := repo.NewRunRepo(pool)
	jobRepo := repo.NewJobRepo(pool)

	// Object storage и генеративный провайдер
	store := storage.New(storage.ConfigFromEnv())

	gw, err := gateway.New(context.Background(), gateway.ConfigFromEnv())
	if err != nil {
		logger.Error("failed to create provider client", "error", err)
		os.Exit(1)
	}
	stager := filecache.New(gw)

	// Governor: глобальный семафор + межпроцессный tenant lock на
	// advisory locks того же пула.
	gov := governor.New(governor.Config{
		GlobalParallelism: envInt("RENDER_PARALLELISM"),
		LockWaitTimeout:   envDuration("LOCK_WAIT_TIMEOUT"),
		Dist:              governor.NewPgAdvisoryLock(pool),
	})

	engine := render.New(gw, repo.NewRenderStore(runRepo, tenantRepo), store, gov, render.Config{
		VariantTimeout: envDuration("VARIANT_TIMEOUT"),
	})

	// RabbitMQ опционален: без него batch-задачи подберёт polling воркера.
	var publisher *mq.Publisher
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL != "" {
		mqConn, err := mq.NewConnection(mqURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, job wakeup disabled", "error", err)
		} else {
			defer mqConn.Close()
			if err := mq.SetupTopology(context.Background(), mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			publisher = mq.NewPublisher(mqConn, logger)
			logger.Info("RabbitMQ connected")
		}
	}

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		Tenants:   tenantRepo,
		Assets:    assetRepo,
		Rooms:     roomRepo,
		Runs:      runRepo,
		Jobs:      jobRepo,
		Engine:    engine,
		Admission: gov,
		Objects:   store,
		Stager:    stager,
		Publisher: publisher,
		Logger:    logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

// envInt читает целое из окружения; 0 при отсутствии или мусоре
// (пакеты сами подставят дефолт).
func envInt(name string) int {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// envDuration читает длительность из окружения; 0 при отсутствии
// или мусоре (пакеты сами подставят дефолт).
func envDuration(name string) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}
