// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog: настройка по
//     LOG_LEVEL/LOG_FORMAT, контекстный логгер (WithLogger/FromContext)
//     и field-хелперы (WithRequestID, WithRunID, WithTenantID, WithJobID)
//   - metrics.go — Prometheus-метрики рендер-движка: runs и варианты
//     по терминальному статусу, латентность composite-вызовов, кэш
//     staging-ссылок, ожидание admission-слота, batch-задачи, retention
//
// Все сервисы используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
