package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tenant — подключённый магазин.
type Tenant struct {
	// ID — уникальный идентификатор магазина.
	ID uuid.UUID `json:"id"`

	// Domain — домен витрины магазина. Используется как
	// Access-Control-Allow-Origin в ответах рендер-эндпоинтов.
	Domain string `json:"domain"`

	// RenderQuotaUsed — число выполненных render runs за период.
	// Инкрементируется ровно один раз на run, независимо от числа
	// успешных вариантов.
	RenderQuotaUsed int64 `json:"render_quota_used"`

	// RenderQuotaLimit — предел runs за период. 0 — без ограничений.
	RenderQuotaLimit int64 `json:"render_quota_limit"`

	// CreatedAt — время подключения магазина.
	CreatedAt time.Time `json:"created_at"`
}

// QuotaExceeded возвращает true, если лимит рендеров исчерпан.
func (t *Tenant) QuotaExceeded() bool {
	return t.RenderQuotaLimit > 0 && t.RenderQuotaUsed >= t.RenderQuotaLimit
}
