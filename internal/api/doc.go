// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (репозитории, движок, governor)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (request id, logging, recovery, CORS)
//   - response.go         — унифицированные JSON-ответы и коды ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - render_handler.go   — интерактивный рендер и SSE-поток
//   - room_handler.go     — загрузка фотографии комнаты
//   - asset_handler.go    — импорт товаров, runs, batch-задачи
//
// Виджет на витрине работает через /render, /render/stream и /rooms;
// эти эндпоинты несут per-tenant CORS: allow-origin строго равен
// домену витрины tenant. Админские эндпоинты отдаются бэк-офису.
package api
