package domain

import (
	"time"

	"github.com/google/uuid"
)

// RenderRun — один вызов fan-out движка.
//
// Run создаётся когда:
// - Покупатель запускает рендер через API (интерактивно или через SSE)
// - Batch-процессор выполняет отложенный RenderJob
//
// Run хранит снимок resolved facts и placement set, с которыми он
// выполнялся, и финализируется ровно один раз — когда все варианты
// получили терминальный статус.
type RenderRun struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// TenantID — магазин, в рамках которого выполняется рендер.
	TenantID uuid.UUID `json:"tenant_id"`

	// AssetID — ссылка на ProductAsset.
	AssetID uuid.UUID `json:"asset_id"`

	// RoomID — ссылка на RoomSession.
	RoomID uuid.UUID `json:"room_id"`

	// TraceID — идентификатор для сквозной корреляции запроса.
	TraceID string `json:"trace_id,omitempty"`

	// Status — текущий статус run.
	Status RunStatus `json:"status"`

	// FactsSnapshot — resolved facts на момент запуска.
	FactsSnapshot *ProductFacts `json:"facts_snapshot,omitempty"`

	// PlacementsSnapshot — placement set на момент запуска.
	PlacementsSnapshot *PlacementSet `json:"placements_snapshot,omitempty"`

	// Succeeded — число вариантов со статусом SUCCESS.
	Succeeded int `json:"succeeded"`

	// Failed — число вариантов со статусом FAILED.
	Failed int `json:"failed"`

	// TimedOut — число вариантов со статусом TIMEOUT.
	TimedOut int `json:"timed_out"`

	// StartedAt — время создания run.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время финализации. Nil, пока run выполняется.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *RenderRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// IsFinished возвращает true, если run завершён.
func (r *RenderRun) IsFinished() bool {
	return r.Status.IsTerminal()
}

// Finalize переводит run в терминальный статус по счётчикам вариантов:
// COMPLETED при всех успешных, FAILED при нуле успешных, иначе PARTIAL.
func (r *RenderRun) Finalize() {
	now := time.Now()
	r.FinishedAt = &now
	switch {
	case r.Succeeded == PlacementCount:
		r.Status = RunStatusCompleted
	case r.Succeeded == 0:
		r.Status = RunStatusFailed
	default:
		r.Status = RunStatusPartial
	}
}

// RecordVariant учитывает терминальный статус одного варианта.
func (r *RenderRun) RecordVariant(status VariantStatus) {
	switch status {
	case VariantStatusSuccess:
		r.Succeeded++
	case VariantStatusTimeout:
		r.TimedOut++
	default:
		r.Failed++
	}
}
