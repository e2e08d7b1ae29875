package domain

import (
	"time"

	"github.com/google/uuid"
)

// RoomRetention — окно хранения загруженной фотографии комнаты.
// По истечении сессия и её файлы удаляются retention-свипом.
const RoomRetention = 24 * time.Hour

// RoomSession — загруженная фотография комнаты покупателя.
// Создаётся при загрузке, дальше читается почти без изменений:
// мутирует только закэшированная staging-ссылка.
type RoomSession struct {
	// ID — уникальный идентификатор сессии.
	ID uuid.UUID `json:"id"`

	// TenantID — магазин, в рамках которого загружена комната.
	TenantID uuid.UUID `json:"tenant_id"`

	// OriginalKey — ключ исходной фотографии в object storage.
	OriginalKey string `json:"original_key"`

	// CleanedKey — ключ очищенной версии (без посторонних предметов).
	CleanedKey string `json:"cleaned_key,omitempty"`

	// CanonicalKey — ключ канонической версии, используемой рендером.
	// Если пуст, рендер берёт OriginalKey.
	CanonicalKey string `json:"canonical_key,omitempty"`

	// ContentHash — content hash канонического изображения.
	ContentHash string `json:"content_hash,omitempty"`

	// StagedFile — закэшированная ссылка на файл у file-staging API.
	StagedFile FileRef `json:"staged_file,omitempty"`

	// CreatedAt — время загрузки.
	CreatedAt time.Time `json:"created_at"`
}

// RenderKey возвращает ключ изображения, который использует рендер.
func (r *RoomSession) RenderKey() string {
	if r.CanonicalKey != "" {
		return r.CanonicalKey
	}
	return r.OriginalKey
}

// Expired возвращает true, если окно хранения сессии истекло.
func (r *RoomSession) Expired(now time.Time) bool {
	return now.Sub(r.CreatedAt) > RoomRetention
}
