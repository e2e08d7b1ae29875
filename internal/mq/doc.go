// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация wakeup-сообщений и телеметрии (Emitter)
//   - consumer.go   — потребление сообщений из очередей
//
// MQ здесь — ускоритель, не источник истины: очередь работ живёт в
// Postgres, wakeup лишь сокращает задержку до следующего poll воркера.
// Телеметрия через Emitter — fire-and-forget: ошибка публикации никогда
// не влияет на основной путь.
//
// Типы сообщений:
//   - job.ready     — в таблице jobs появилась работа
//   - run.finished  — render run завершён (телеметрия)
//   - asset.ready   — подготовка ассета завершена (телеметрия)
//   - asset.failed  — подготовка ассета провалена (телеметрия)
//
// Exchanges:
//   - showroom.jobs    — wakeup воркера
//   - showroom.events  — телеметрия
//   - showroom.dlq     — dead letter queue
package mq
