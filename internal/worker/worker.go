package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Showroom/internal/domain"
	"github.com/shaiso/Showroom/internal/mq"
	"github.com/shaiso/Showroom/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 5
	defaultStaleWindow  = 15 * time.Minute
	defaultMaxAttempts  = 3
	defaultRetryBase    = 2 * time.Second
	defaultRetryMax     = 30 * time.Second
	defaultPrefetch     = 5
	defaultMaxErrorLen  = 500
)

// JobQueue — подмножество repo.JobRepo, нужное воркеру.
type JobQueue interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RenderJob, error)
	ListQueued(ctx context.Context, limit int) ([]domain.RenderJob, error)
	Claim(ctx context.Context, id uuid.UUID) error
	Update(ctx context.Context, job *domain.RenderJob) error
	ListStale(ctx context.Context, window time.Duration, limit int) ([]domain.RenderJob, error)
	Touch(ctx context.Context, id uuid.UUID) error
}

// Worker — batch-процессор задач подготовки и отложенного рендера.
//
// Stateless: несколько экземпляров могут работать над одной таблицей,
// условный claim исключает двойную обработку. MQ-wakeup опционален;
// без него воркер живёт на одном polling.
type Worker struct {
	jobs     JobQueue
	registry *Registry

	// MQ (опционально)
	conn     *mq.Connection
	consumer *mq.Consumer

	pollInterval time.Duration
	batchSize    int
	staleWindow  time.Duration
	maxAttempts  int
	retryBase    time.Duration
	retryMax     time.Duration

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Jobs     JobQueue
	Registry *Registry

	// Conn — соединение с RabbitMQ для event-driven wakeup.
	// Nil допустим: воркер работает на одном polling.
	Conn *mq.Connection

	// PollInterval — интервал polling fallback (default: 10s).
	PollInterval time.Duration

	// BatchSize — количество задач за один poll (default: 5).
	BatchSize int

	// StaleWindow — окно, после которого claim считается устаревшим
	// (default: 15m).
	StaleWindow time.Duration

	// MaxAttempts — предел повторных попыток задачи (default: 3).
	MaxAttempts int

	// RetryBase, RetryMax — база и потолок экспоненциального backoff.
	RetryBase time.Duration
	RetryMax  time.Duration

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	staleWindow := cfg.StaleWindow
	if staleWindow <= 0 {
		staleWindow = defaultStaleWindow
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	retryBase := cfg.RetryBase
	if retryBase <= 0 {
		retryBase = defaultRetryBase
	}
	retryMax := cfg.RetryMax
	if retryMax <= 0 {
		retryMax = defaultRetryMax
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	return &Worker{
		jobs:         cfg.Jobs,
		registry:     registry,
		conn:         cfg.Conn,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		staleWindow:  staleWindow,
		maxAttempts:  maxAttempts,
		retryBase:    retryBase,
		retryMax:     retryMax,
		logger:       logger,
	}
}

// Start запускает Worker: consumer для jobs.ready (если есть MQ)
// и polling-горутину.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
		"stale_window", w.staleWindow,
	)

	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueJobsReady),
			Handler:  w.handleJobReady,
			Prefetch: defaultPrefetch,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("job consumer error", "error", err)
			}
		}()
	} else {
		w.logger.Warn("no MQ connection, running on polling only")
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// pollLoop — цикл polling fallback.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте: подхватываем задачи,
	// поставленные пока воркер был выключен.
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выполняет один цикл: сначала stale recovery, затем пачка
// queued-задач.
func (w *Worker) poll(ctx context.Context) {
	w.recoverStale(ctx)

	jobs, err := w.jobs.ListQueued(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list queued jobs", "error", err)
		return
	}
	if len(jobs) == 0 {
		return
	}

	w.logger.Debug("poll found queued jobs", "count", len(jobs))

	for i := range jobs {
		if err := w.processJob(ctx, jobs[i].ID); err != nil {
			w.logger.Error("failed to process job from poll",
				"job_id", jobs[i].ID,
				"error", err,
			)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// recoverStale возвращает в очередь задачи с устаревшим claim.
// Задача, исчерпавшая попытки, помечается FAILED.
func (w *Worker) recoverStale(ctx context.Context) {
	stale, err := w.jobs.ListStale(ctx, w.staleWindow, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list stale jobs", "error", err)
		return
	}

	for i := range stale {
		job := &stale[i]
		if job.CanRetry(w.maxAttempts) {
			job.ResetForRetry()
			w.logger.Warn("requeued stale job",
				"job_id", job.ID,
				"kind", job.Kind,
				"retry_count", job.RetryCount,
			)
		} else {
			job.MarkFailed("stale claim: retry attempts exhausted")
			w.logger.Warn("stale job failed permanently",
				"job_id", job.ID,
				"kind", job.Kind,
			)
		}
		if err := w.jobs.Update(ctx, job); err != nil {
			w.logger.Error("failed to update stale job", "job_id", job.ID, "error", err)
			continue
		}
		telemetry.StaleJobsRecovered.Inc()
	}
}
