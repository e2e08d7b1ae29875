package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики рендер-движка. Регистрируются в default registry,
// экспортируются через promhttp в main каждого сервиса.
var (
	// RunsTotal — количество завершённых render runs по терминальному статусу
	// (completed / partial / failed).
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "showroom",
		Name:      "render_runs_total",
		Help:      "Завершённые render runs по терминальному статусу.",
	}, []string{"status"})

	// VariantsTotal — количество вариантов по терминальному статусу
	// (SUCCESS / FAILED / TIMEOUT).
	VariantsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "showroom",
		Name:      "render_variants_total",
		Help:      "Завершённые варианты по терминальному статусу.",
	}, []string{"status"})

	// VariantLatency — время выполнения одного composite-вызова провайдера.
	VariantLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "showroom",
		Name:      "variant_latency_seconds",
		Help:      "Латентность одного composite-вызова.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// FileCacheHits — попадания в кэш provider file references.
	FileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "showroom",
		Name:      "file_cache_hits_total",
		Help:      "Возвраты валидной ссылки без загрузки.",
	})

	// FileCacheMisses — промахи кэша (потребовалась загрузка).
	FileCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "showroom",
		Name:      "file_cache_misses_total",
		Help:      "Загрузки файла из-за отсутствующей или истекающей ссылки.",
	})

	// GovernorWait — время ожидания слота глобального семафора.
	GovernorWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "showroom",
		Name:      "governor_wait_seconds",
		Help:      "Ожидание admission-слота перед вызовом провайдера.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	// JobsProcessed — обработанные batch-задачи по результату
	// (completed / requeued / failed).
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "showroom",
		Name:      "batch_jobs_total",
		Help:      "Batch-задачи по результату обработки.",
	}, []string{"result"})

	// StaleJobsRecovered — задачи, возвращённые из зависшего processing.
	StaleJobsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "showroom",
		Name:      "stale_jobs_recovered_total",
		Help:      "Задачи, восстановленные после устаревшего claim.",
	})

	// RoomsSwept — room sessions, удалённые retention-свипом.
	RoomsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "showroom",
		Name:      "rooms_swept_total",
		Help:      "Room sessions, удалённые по истечении окна хранения.",
	})
)
