package domain

// AssetStatus — статус подготовки ProductAsset.
//
// Жизненный цикл:
//
//	PREPARING → PROCESSING → READY
//	                       ↘ FAILED (может быть retry → обратно в PREPARING)
type AssetStatus string

const (
	// AssetStatusPreparing — asset создан, ожидает подготовки.
	AssetStatusPreparing AssetStatus = "PREPARING"

	// AssetStatusProcessing — asset захвачен batch-процессором.
	AssetStatusProcessing AssetStatus = "PROCESSING"

	// AssetStatusReady — факты и placement set построены, asset пригоден для рендера.
	AssetStatusReady AssetStatus = "READY"

	// AssetStatusFailed — подготовка завершилась неудачей (после всех retry).
	AssetStatusFailed AssetStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s AssetStatus) IsTerminal() bool {
	switch s {
	case AssetStatusReady, AssetStatusFailed:
		return true
	default:
		return false
	}
}

// RunStatus — статус render run.
//
// Жизненный цикл:
//
//	RUNNING → COMPLETED (8/8 успешных)
//	        ↘ PARTIAL   (1..7 успешных)
//	        ↘ FAILED    (0 успешных)
type RunStatus string

const (
	// RunStatusRunning — run выполняется, варианты в полёте.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusCompleted — все варианты успешны.
	RunStatusCompleted RunStatus = "COMPLETED"

	// RunStatusPartial — часть вариантов успешна. Это валидный
	// терминальный статус, не ошибка.
	RunStatusPartial RunStatus = "PARTIAL"

	// RunStatusFailed — ни один вариант не успешен.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusPartial, RunStatusFailed:
		return true
	default:
		return false
	}
}

// VariantStatus — терминальный статус одного варианта.
// Вариант записывается ровно один раз, уже с терминальным статусом.
type VariantStatus string

const (
	// VariantStatusSuccess — composite-вызов вернул изображение.
	VariantStatusSuccess VariantStatus = "SUCCESS"

	// VariantStatusFailed — провайдер вернул ошибку.
	VariantStatusFailed VariantStatus = "FAILED"

	// VariantStatusTimeout — вызов не уложился в свой таймаут.
	VariantStatusTimeout VariantStatus = "TIMEOUT"
)

// JobStatus — статус batch-задачи.
//
// Жизненный цикл:
//
//	QUEUED → PROCESSING → COMPLETED
//	                    ↘ FAILED (может быть requeue → обратно в QUEUED)
type JobStatus string

const (
	// JobStatusQueued — задача в очереди, ожидает claim.
	JobStatusQueued JobStatus = "QUEUED"

	// JobStatusProcessing — задача захвачена процессором.
	JobStatusProcessing JobStatus = "PROCESSING"

	// JobStatusCompleted — задача успешно выполнена.
	JobStatusCompleted JobStatus = "COMPLETED"

	// JobStatusFailed — задача провалена (после всех retry или stale-таймаута).
	JobStatusFailed JobStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}
