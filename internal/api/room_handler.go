package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Showroom/internal/domain"
	"github.com/shaiso/Showroom/internal/filecache"
)

// maxRoomImageBytes — предел размера фотографии комнаты.
const maxRoomImageBytes = 10 << 20

// UploadRoom принимает фотографию комнаты покупателя и открывает
// room session. Тело запроса — сырые байты изображения; формат
// проверяется по magic bytes до записи в storage.
// POST /api/v1/rooms
func (h *Handler) UploadRoom(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.resolveTenant(r)
	if err != nil {
		Forbidden(w, r, CodeUnknownTenant, "unknown tenant")
		return
	}

	mime := r.Header.Get("Content-Type")
	ext, ok := imageExt(mime)
	if !ok {
		BadRequest(w, r, fmt.Sprintf("unsupported content type %q", mime))
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRoomImageBytes))
	if err != nil {
		BadRequest(w, r, "failed to read image body")
		return
	}
	if err := filecache.ValidateMagic(data, mime); err != nil {
		Error(w, r, http.StatusBadRequest, CodeInvalidImage, err.Error())
		return
	}

	room := &domain.RoomSession{
		ID:        uuid.New(),
		TenantID:  tenant.ID,
		CreatedAt: time.Now(),
	}
	room.OriginalKey = fmt.Sprintf("tenants/%s/rooms/%s/original%s", tenant.ID, room.ID, ext)

	if err := h.objects.Put(room.OriginalKey, data, mime); err != nil {
		InternalError(w, r, h.logger, err)
		return
	}
	if err := h.rooms.Create(r.Context(), room); err != nil {
		InternalError(w, r, h.logger, err)
		return
	}

	Created(w, RoomUploadResponse{
		RoomSessionID: room.ID,
		ExpiresAt:     room.CreatedAt.Add(domain.RoomRetention),
	})
}

// imageExt возвращает расширение ключа для поддерживаемого MIME-типа.
func imageExt(mime string) (string, bool) {
	switch mime {
	case "image/png":
		return ".png", true
	case "image/jpeg":
		return ".jpg", true
	case "image/webp":
		return ".webp", true
	default:
		return "", false
	}
}
