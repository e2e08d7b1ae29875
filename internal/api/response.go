package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/Showroom/internal/filecache"
	"github.com/shaiso/Showroom/internal/governor"
	"github.com/shaiso/Showroom/internal/repo"
)

// Коды ошибок API. Стабильные machine-readable значения:
// виджет на витрине различает ошибки по коду, не по тексту.
const (
	CodeBadRequest        = "bad_request"
	CodeUnknownTenant     = "unknown_tenant"
	CodeQuotaExceeded     = "quota_exceeded"
	CodeNotFound          = "not_found"
	CodeRoomExpired       = "room_expired"
	CodeAssetNotReady     = "asset_not_ready"
	CodeInvalidImage      = "invalid_image"
	CodeInvalidState      = "invalid_state"
	CodeTenantBusy        = "tenant_busy"
	CodeAllVariantsFailed = "all_variants_failed"
	CodeInternalError     = "internal_error"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created отправляет ответ о создании ресурса.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// NoContent отправляет ответ без тела (204).
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error отправляет ответ с ошибкой. request_id берётся из контекста
// запроса для сквозной корреляции с логами.
func Error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	JSON(w, status, ErrorResponse{
		Success:   false,
		Error:     code,
		Message:   message,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusBadRequest, CodeBadRequest, message)
}

// Forbidden отправляет ошибку 403.
func Forbidden(w http.ResponseWriter, r *http.Request, code, message string) {
	Error(w, r, http.StatusForbidden, code, message)
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusNotFound, CodeNotFound, message)
}

// InvalidState отправляет ошибку 422.
func InvalidState(w http.ResponseWriter, r *http.Request, code, message string) {
	Error(w, r, http.StatusUnprocessableEntity, code, message)
}

// TooManyRequests отправляет ошибку 429.
func TooManyRequests(w http.ResponseWriter, r *http.Request, code, message string) {
	Error(w, r, http.StatusTooManyRequests, code, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	logger.Error("internal error",
		"error", err,
		"request_id", RequestIDFromContext(r.Context()),
	)
	Error(w, r, http.StatusInternalServerError, CodeInternalError, "internal server error")
}

// HandleError преобразует ошибку нижних слоёв в HTTP ответ.
// Возвращает true, если ответ записан.
func HandleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, repo.ErrNotFound):
		NotFound(w, r, notFoundMsg)
	case errors.Is(err, repo.ErrInvalidState):
		InvalidState(w, r, CodeInvalidState, err.Error())
	case errors.Is(err, governor.ErrLockWaitTimeout):
		TooManyRequests(w, r, CodeTenantBusy, "tenant render queue is busy, retry later")
	case errors.Is(err, filecache.ErrMIMEMismatch):
		InvalidState(w, r, CodeInvalidImage, err.Error())
	default:
		InternalError(w, r, logger, err)
	}
	return true
}
