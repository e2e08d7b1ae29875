package gateway

import (
	"context"
	"errors"
	"strings"
)

// Таксономия ошибок провайдера.
var (
	// ErrTimeout — вызов не уложился в свой таймаут.
	ErrTimeout = errors.New("provider timeout")

	// ErrRateLimited — провайдер вернул 429 или сообщил об исчерпании квоты.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrBadOutput — провайдер ответил, но ответ не проходит валидацию
	// (не JSON, неверная мощность набора). Не ретраится.
	ErrBadOutput = errors.New("provider returned invalid output")

	// ErrNoImage — в ответе генерации нет изображения.
	ErrNoImage = errors.New("provider returned no image")
)

// Retryable классифицирует ошибку провайдера как транзиентную.
// Транзиентные: таймаут, 429, 5xx, обрыв соединения.
// Всё остальное (включая ErrBadOutput) — постоянная ошибка.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, ErrBadOutput) || errors.Is(err, ErrNoImage) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// У genai нет типизированных ошибок транспорта, различаем по тексту.
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "rate limit", "quota",
		"502", "503", "504",
		"connection reset", "connection refused", "broken pipe",
		"deadline exceeded", "unavailable",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// rateLimited распознаёт 429 в сыром тексте ошибки провайдера.
func rateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota")
}
