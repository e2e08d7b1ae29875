package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Showroom/internal/domain"
)

// RenderRequest — тело POST /api/v1/render.
type RenderRequest struct {
	RoomSessionID uuid.UUID `json:"room_session_id"`
	ProductID     string    `json:"product_id"`
}

// VariantResponse — один вариант в ответе рендера.
type VariantResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ImageURL     string `json:"image_url,omitempty"`
	LatencyMS    int64  `json:"latency_ms"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// RenderResponse — агрегат завершённого интерактивного рендера.
type RenderResponse struct {
	RunID      uuid.UUID         `json:"run_id"`
	Status     string            `json:"status"`
	Variants   []VariantResponse `json:"variants"`
	DurationMS int64             `json:"duration_ms"`
}

// RoomUploadResponse — ответ на загрузку фотографии комнаты.
type RoomUploadResponse struct {
	RoomSessionID uuid.UUID `json:"room_session_id"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// CreateAssetRequest — тело POST /api/v1/assets (импорт товара).
type CreateAssetRequest struct {
	TenantID       uuid.UUID          `json:"tenant_id"`
	ProductID      string             `json:"product_id"`
	SourceImageKey string             `json:"source_image_key"`
	Card           domain.ProductCard `json:"card"`
	OverridePatch  *domain.FactsPatch `json:"override_patch,omitempty"`
}

// AssetResponse — состояние подготовки товара.
type AssetResponse struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	ProductID  string    `json:"product_id"`
	Status     string    `json:"status"`
	RetryCount int       `json:"retry_count"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AssetFromDomain преобразует доменный asset в ответ API.
func AssetFromDomain(a *domain.ProductAsset) AssetResponse {
	return AssetResponse{
		ID:         a.ID,
		TenantID:   a.TenantID,
		ProductID:  a.ProductID,
		Status:     string(a.Status),
		RetryCount: a.RetryCount,
		Error:      a.Error,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// RunResponse — состояние render run с вариантами.
type RunResponse struct {
	RunID      uuid.UUID         `json:"run_id"`
	TenantID   uuid.UUID         `json:"tenant_id"`
	AssetID    uuid.UUID         `json:"asset_id"`
	RoomID     uuid.UUID         `json:"room_id"`
	Status     string            `json:"status"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	TimedOut   int               `json:"timed_out"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Variants   []VariantResponse `json:"variants"`
}

// JobResponse — состояние batch-задачи.
type JobResponse struct {
	ID         uuid.UUID `json:"id"`
	Kind       string    `json:"kind"`
	TenantID   uuid.UUID `json:"tenant_id"`
	AssetID    uuid.UUID `json:"asset_id"`
	Status     string    `json:"status"`
	RetryCount int       `json:"retry_count"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// JobFromDomain преобразует доменную задачу в ответ API.
func JobFromDomain(j *domain.RenderJob) JobResponse {
	return JobResponse{
		ID:         j.ID,
		Kind:       string(j.Kind),
		TenantID:   j.TenantID,
		AssetID:    j.AssetID,
		Status:     string(j.Status),
		RetryCount: j.RetryCount,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
	}
}
