package pipeline

import "errors"

// Ошибки предусловий. Не ретраятся и не приводят к вызову провайдера.
var (
	// ErrNoTitle — у товара нет названия.
	ErrNoTitle = errors.New("product has no title")

	// ErrNoImages — у товара нет ни одного изображения.
	ErrNoImages = errors.New("product has no images")

	// ErrNoFacts — нет извлечённых фактов для resolve/placement.
	ErrNoFacts = errors.New("no extracted facts")
)
