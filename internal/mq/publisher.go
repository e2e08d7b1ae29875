package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeJobReady     MessageType = "job.ready"
	MessageTypeRunFinished  MessageType = "run.finished"
	MessageTypeAssetReady   MessageType = "asset.ready"
	MessageTypeAssetFailed  MessageType = "asset.failed"
	MessageTypeQuotaCharged MessageType = "quota.charged"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// JobReadyPayload — payload для wakeup воркера: в таблице jobs появилась
// работа. Несёт только идентификаторы; воркер перечитывает job из БД.
type JobReadyPayload struct {
	JobID    uuid.UUID `json:"job_id"`
	TenantID uuid.UUID `json:"tenant_id"`
	Kind     string    `json:"kind"` // prepare или render
}

// RunFinishedPayload — payload телеметрии о завершённом render run.
type RunFinishedPayload struct {
	RunID     uuid.UUID `json:"run_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Status    string    `json:"status"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	TimedOut  int       `json:"timed_out"`
}

// AssetEventPayload — payload телеметрии о смене статуса ассета.
type AssetEventPayload struct {
	AssetID  uuid.UUID `json:"asset_id"`
	TenantID uuid.UUID `json:"tenant_id"`
	Status   string    `json:"status"`
	Error    string    `json:"error,omitempty"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishJobReady публикует wakeup о поставленной в очередь работе.
// Потребитель: Worker. Ошибка публикации не фатальна для постановки:
// воркер в любом случае подберёт job на следующем poll.
func (p *Publisher) PublishJobReady(ctx context.Context, jobID, tenantID uuid.UUID, kind string) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeJobReady,
		Payload:   JobReadyPayload{JobID: jobID, TenantID: tenantID, Kind: kind},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeJobs, RoutingKeyReady, msg)
}

// Emitter — fire-and-forget публикация телеметрии. Ошибки публикации
// логируются и проглатываются: поток событий не должен влиять на
// основной путь рендера. Nil-safe: нулевой Emitter молча ничего не делает.
type Emitter struct {
	pub    *Publisher
	logger *slog.Logger
}

// NewEmitter создаёт Emitter поверх Publisher.
func NewEmitter(pub *Publisher, logger *slog.Logger) *Emitter {
	return &Emitter{pub: pub, logger: logger}
}

// Emit публикует событие телеметрии, не возвращая ошибку.
func (e *Emitter) Emit(ctx context.Context, msgType MessageType, payload any) {
	if e == nil || e.pub == nil {
		return
	}
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	if err := e.pub.Publish(ctx, ExchangeEvents, RoutingKeyTelemetry, msg); err != nil {
		e.logger.Warn("emit telemetry event failed", "type", msgType, "error", err)
	}
}

// EmitRunFinished публикует событие о завершённом run.
func (e *Emitter) EmitRunFinished(ctx context.Context, payload RunFinishedPayload) {
	e.Emit(ctx, MessageTypeRunFinished, payload)
}

// EmitAssetStatus публикует событие о смене статуса ассета.
func (e *Emitter) EmitAssetStatus(ctx context.Context, payload AssetEventPayload, failed bool) {
	msgType := MessageTypeAssetReady
	if failed {
		msgType = MessageTypeAssetFailed
	}
	e.Emit(ctx, msgType, payload)
}
