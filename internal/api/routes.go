package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		RequestID(h.logger),
		Logging(h.logger),
	)
	// Эндпоинты виджета дополнительно несут per-tenant CORS.
	widget := Chain(
		Recovery(h.logger),
		RequestID(h.logger),
		Logging(h.logger),
		TenantCORS(h),
	)

	// Widget: рендер и загрузка комнаты
	mux.Handle("POST /api/v1/render", widget(http.HandlerFunc(h.CreateRender)))
	mux.Handle("GET /api/v1/render/stream", widget(http.HandlerFunc(h.StreamRender)))
	mux.Handle("OPTIONS /api/v1/render", widget(http.HandlerFunc(h.CreateRender)))
	mux.Handle("OPTIONS /api/v1/render/stream", widget(http.HandlerFunc(h.StreamRender)))
	mux.Handle("POST /api/v1/rooms", widget(http.HandlerFunc(h.UploadRoom)))
	mux.Handle("OPTIONS /api/v1/rooms", widget(http.HandlerFunc(h.UploadRoom)))

	// Admin: импорт и подготовка товаров
	mux.Handle("POST /api/v1/assets", chain(http.HandlerFunc(h.CreateAsset)))
	mux.Handle("GET /api/v1/assets/{id}", chain(http.HandlerFunc(h.GetAsset)))
	mux.Handle("POST /api/v1/assets/{id}/prepare", chain(http.HandlerFunc(h.PrepareAsset)))

	// Admin: runs и batch-задачи
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("POST /api/v1/jobs/{id}/requeue", chain(http.HandlerFunc(h.RequeueJob)))
}
