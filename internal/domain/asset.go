package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProductAsset — подготовленный товар, одна строка на (tenant, product).
//
// Asset создаётся при импорте каталога и проходит подготовку
// batch-процессором: вырезка фона, извлечение фактов, построение
// placement set. Рендер возможен только для asset в статусе READY
// с заполненными ResolvedFacts и Placements — request-time код
// обязан падать, а не достраивать их на лету.
type ProductAsset struct {
	// ID — уникальный идентификатор asset.
	ID uuid.UUID `json:"id"`

	// TenantID — магазин, которому принадлежит товар.
	TenantID uuid.UUID `json:"tenant_id"`

	// ProductID — идентификатор товара в каталоге магазина.
	ProductID string `json:"product_id"`

	// SourceImageKey — ключ исходного изображения товара в object storage.
	SourceImageKey string `json:"source_image_key"`

	// Card — карточка товара на момент импорта. Вход extract-стадии.
	Card ProductCard `json:"card"`

	// PreparedImageKey — ключ подготовленного (вырезанного) изображения.
	PreparedImageKey string `json:"prepared_image_key,omitempty"`

	// PreparedContentHash — content hash подготовленного изображения.
	// Меняется при каждой перегенерации вырезки.
	PreparedContentHash string `json:"prepared_content_hash,omitempty"`

	// ExtractedFacts — факты, извлечённые reasoning-провайдером.
	ExtractedFacts *ProductFacts `json:"extracted_facts,omitempty"`

	// OverridePatch — правки мерчанта поверх извлечённых фактов.
	OverridePatch *FactsPatch `json:"override_patch,omitempty"`

	// ResolvedFacts — результат слияния ExtractedFacts и OverridePatch.
	ResolvedFacts *ProductFacts `json:"resolved_facts,omitempty"`

	// Placements — placement set из ровно PlacementCount вариантов.
	Placements *PlacementSet `json:"placements,omitempty"`

	// StagedFile — закэшированная ссылка на файл у file-staging API.
	// Обновляется request-time путями при истечении.
	StagedFile FileRef `json:"staged_file,omitempty"`

	// Status — статус подготовки.
	Status AssetStatus `json:"status"`

	// RetryCount — число неудачных попыток подготовки.
	RetryCount int `json:"retry_count"`

	// Error — текст последней ошибки подготовки.
	Error string `json:"error,omitempty"`

	// ClaimedAt — время последнего claim batch-процессором.
	// Используется для stale recovery.
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`

	// CreatedAt — время создания asset.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// RenderReady возвращает true, если asset пригоден для рендера.
func (a *ProductAsset) RenderReady() bool {
	return a.Status == AssetStatusReady && a.ResolvedFacts != nil && a.Placements != nil
}

// MarkProcessing переводит asset в статус PROCESSING (claim).
func (a *ProductAsset) MarkProcessing() {
	now := time.Now()
	a.Status = AssetStatusProcessing
	a.ClaimedAt = &now
}

// MarkReady переводит asset в статус READY с результатами подготовки.
func (a *ProductAsset) MarkReady(extracted, resolved *ProductFacts, placements *PlacementSet) {
	a.Status = AssetStatusReady
	a.ExtractedFacts = extracted
	a.ResolvedFacts = resolved
	a.Placements = placements
	a.Error = ""
	a.ClaimedAt = nil
}

// MarkFailed переводит asset в статус FAILED с ошибкой.
func (a *ProductAsset) MarkFailed(err string) {
	a.Status = AssetStatusFailed
	a.Error = err
	a.ClaimedAt = nil
}

// ResetForRetry возвращает asset в PREPARING для повторной попытки.
func (a *ProductAsset) ResetForRetry() {
	a.Status = AssetStatusPreparing
	a.RetryCount++
	a.ClaimedAt = nil
}

// CanRetry проверяет, можно ли сделать ещё одну попытку подготовки.
func (a *ProductAsset) CanRetry(maxAttempts int) bool {
	return a.RetryCount < maxAttempts
}
