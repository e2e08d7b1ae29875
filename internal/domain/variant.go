package domain

import (
	"time"

	"github.com/google/uuid"
)

// Variant — результат одного composite-вызова внутри run.
// На run приходится ровно PlacementCount вариантов. Строка
// записывается один раз, сразу с терминальным статусом,
// и после этого не изменяется.
type Variant struct {
	// ID — уникальный идентификатор варианта.
	ID uuid.UUID `json:"id"`

	// RunID — ссылка на родительский run.
	RunID uuid.UUID `json:"run_id"`

	// PlacementID — идентификатор placement из placement set.
	PlacementID string `json:"placement_id"`

	// Index — порядковый номер placement в наборе (0..PlacementCount-1).
	Index int `json:"index"`

	// Status — терминальный статус варианта.
	Status VariantStatus `json:"status"`

	// ImageKey — ключ результата в object storage. Пуст при неудаче.
	ImageKey string `json:"image_key,omitempty"`

	// LatencyMS — длительность composite-вызова в миллисекундах.
	LatencyMS int64 `json:"latency_ms"`

	// ErrorCode — машинный код ошибки при неудаче.
	ErrorCode string `json:"error_code,omitempty"`

	// ErrorMessage — текст ошибки при неудаче.
	ErrorMessage string `json:"error_message,omitempty"`

	// CreatedAt — время записи результата.
	CreatedAt time.Time `json:"created_at"`
}
