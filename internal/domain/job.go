package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobKind — тип batch-задачи.
type JobKind string

const (
	// JobKindPrepare — подготовка ProductAsset (fact pipeline).
	JobKindPrepare JobKind = "prepare"

	// JobKindRender — отложенный рендер (fan-out без интерактивного клиента).
	JobKindRender JobKind = "render"
)

// RenderJob — единица работы batch-процессора.
//
// Задача захватывается условным UPDATE (optimistic lock): из двух
// конкурирующих процессов claim удаётся ровно одному, проигравший
// молча пропускает строку. Задача, зависшая в PROCESSING дольше
// stale-окна, возвращается в очередь или помечается FAILED.
type RenderJob struct {
	// ID — уникальный идентификатор задачи.
	ID uuid.UUID `json:"id"`

	// Kind — тип задачи.
	Kind JobKind `json:"kind"`

	// TenantID — магазин, которому принадлежит работа.
	TenantID uuid.UUID `json:"tenant_id"`

	// AssetID — ссылка на ProductAsset.
	AssetID uuid.UUID `json:"asset_id"`

	// RoomID — ссылка на RoomSession. Заполнен только для JobKindRender.
	RoomID *uuid.UUID `json:"room_id,omitempty"`

	// Status — текущий статус задачи.
	Status JobStatus `json:"status"`

	// RetryCount — число неудачных попыток.
	RetryCount int `json:"retry_count"`

	// Error — текст последней ошибки (усечён до предела хранения).
	Error string `json:"error,omitempty"`

	// ClaimedAt — время последнего claim. Nil, если задача в очереди.
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`

	// CreatedAt — время постановки в очередь.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsFinished возвращает true, если задача завершена.
func (j *RenderJob) IsFinished() bool {
	return j.Status.IsTerminal()
}

// MarkProcessing переводит задачу в PROCESSING (claim).
func (j *RenderJob) MarkProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.ClaimedAt = &now
}

// MarkCompleted переводит задачу в COMPLETED.
func (j *RenderJob) MarkCompleted() {
	j.Status = JobStatusCompleted
	j.Error = ""
	j.ClaimedAt = nil
}

// MarkFailed переводит задачу в FAILED с ошибкой.
func (j *RenderJob) MarkFailed(err string) {
	j.Status = JobStatusFailed
	j.Error = err
	j.ClaimedAt = nil
}

// ResetForRetry возвращает задачу в очередь для повторной попытки.
func (j *RenderJob) ResetForRetry() {
	j.Status = JobStatusQueued
	j.RetryCount++
	j.ClaimedAt = nil
}

// CanRetry проверяет, можно ли сделать ещё одну попытку.
func (j *RenderJob) CanRetry(maxAttempts int) bool {
	return j.RetryCount < maxAttempts
}

// Stale возвращает true, если claim задачи устарел: задача в PROCESSING,
// но не обновлялась дольше окна восстановления.
func (j *RenderJob) Stale(now time.Time, window time.Duration) bool {
	if j.Status != JobStatusProcessing || j.ClaimedAt == nil {
		return false
	}
	return now.Sub(*j.ClaimedAt) > window
}
