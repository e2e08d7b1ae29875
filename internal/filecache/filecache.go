// Package filecache поддерживает кэш ссылок на файлы, загруженные
// в file-staging API провайдера. Ссылка живёт у провайдера ~48 часов;
// внутренняя полезная жизнь считается 47 часов, и за safety buffer
// до истечения ссылка считается негодной.
package filecache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/shaiso/Showroom/internal/domain"
	"github.com/shaiso/Showroom/internal/gateway"
	"github.com/shaiso/Showroom/internal/telemetry"
)

// SafetyBuffer — запас до истечения ссылки, при котором она
// уже не используется и загружается свежая.
const SafetyBuffer = time.Hour

// ErrMIMEMismatch — содержимое не соответствует объявленному MIME-типу.
var ErrMIMEMismatch = errors.New("content does not match declared mime type")

// Uploader — подмножество gateway, нужное кэшу.
type Uploader interface {
	Upload(ctx context.Context, data []byte, mimeType, label string) (gateway.UploadResult, error)
}

// Loader лениво отдаёт байты изображения. Вызывается только при
// промахе кэша: на hit-пути нет ни одного сетевого вызова.
type Loader func(ctx context.Context) ([]byte, error)

// Cache — кэш staging-ссылок. Персистентность не его забота:
// вызывающий сам сохраняет обновлённую ссылку на владеющей строке.
type Cache struct {
	uploader Uploader
	buffer   time.Duration
	now      func() time.Time
}

// New создаёт новый Cache.
func New(uploader Uploader) *Cache {
	return &Cache{
		uploader: uploader,
		buffer:   SafetyBuffer,
		now:      time.Now,
	}
}

// GetOrRefresh возвращает валидную staging-ссылку.
//
// Если existing ещё валидна с учётом safety buffer, возвращается
// как есть. Иначе загружаются байты через load, проверяются magic
// bytes против mimeType и выполняется загрузка в staging API.
// Ошибка загрузки отдаётся наверх без fallback: composite-вызовам
// нужна валидная ссылка, пропустить её нельзя.
func (c *Cache) GetOrRefresh(ctx context.Context, existing domain.FileRef, load Loader, mimeType, label string) (domain.FileRef, error) {
	if c.valid(existing) {
		telemetry.FileCacheHits.Inc()
		return existing, nil
	}
	telemetry.FileCacheMisses.Inc()

	data, err := load(ctx)
	if err != nil {
		return domain.FileRef{}, fmt.Errorf("load %s: %w", label, err)
	}
	if err := ValidateMagic(data, mimeType); err != nil {
		return domain.FileRef{}, fmt.Errorf("%s: %w", label, err)
	}

	result, err := c.uploader.Upload(ctx, data, mimeType, label)
	if err != nil {
		return domain.FileRef{}, fmt.Errorf("upload %s: %w", label, err)
	}
	return domain.FileRef{Ref: result.URI, ExpiresAt: result.ExpiresAt}, nil
}

// valid проверяет, что ссылка есть и не истекает в пределах буфера.
func (c *Cache) valid(ref domain.FileRef) bool {
	if ref.IsZero() {
		return false
	}
	return c.now().Before(ref.ExpiresAt.Add(-c.buffer))
}

// Magic bytes поддерживаемых форматов.
var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	riffMagic = []byte("RIFF")
	webpMagic = []byte("WEBP")
)

// MIMEFromKey выводит MIME-тип по расширению ключа объекта.
// Неизвестное расширение трактуется как PNG: собственные артефакты
// системы (вырезки, рендеры) хранятся в PNG.
func MIMEFromKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

// ValidateMagic проверяет соответствие содержимого объявленному
// MIME-типу по сигнатуре формата. Неизвестный тип — сразу ошибка:
// загружать непроверенное содержимое в staging API нельзя.
func ValidateMagic(data []byte, mimeType string) error {
	switch mimeType {
	case "image/png":
		if len(data) >= len(pngMagic) && bytes.Equal(data[:len(pngMagic)], pngMagic) {
			return nil
		}
	case "image/jpeg":
		if len(data) >= len(jpegMagic) && bytes.Equal(data[:len(jpegMagic)], jpegMagic) {
			return nil
		}
	case "image/webp":
		if len(data) >= 12 && bytes.Equal(data[:4], riffMagic) && bytes.Equal(data[8:12], webpMagic) {
			return nil
		}
	default:
		return fmt.Errorf("%w: неподдерживаемый тип %q", ErrMIMEMismatch, mimeType)
	}
	return fmt.Errorf("%w: объявлен %s", ErrMIMEMismatch, mimeType)
}
