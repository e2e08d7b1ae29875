package governor

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DistributedLock — межпроцессное взаимное исключение по int64-ключу.
// Реализация обязана быть сессионной: lock живёт, пока жив release.
type DistributedLock interface {
	// Acquire удерживает lock до вызова возвращённой функции.
	// Ожидание ограничивается переданным контекстом.
	Acquire(ctx context.Context, key int64) (func(), error)
}

// LockKey возвращает стабильный int64-ключ tenant для advisory lock.
// Криптографический хэш даёт равномерное распределение по пространству
// ключей и исключает коллизии соседних UUID.
func LockKey(tenantID uuid.UUID) int64 {
	sum := sha256.Sum256(tenantID[:])
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// PgAdvisoryLock — распределённый lock на pg_advisory_lock.
// Сессионный: соединение держится из пула на всё время удержания,
// unlock выполняется на том же соединении.
type PgAdvisoryLock struct {
	pool *pgxpool.Pool
}

// NewPgAdvisoryLock создаёт PgAdvisoryLock поверх пула.
func NewPgAdvisoryLock(pool *pgxpool.Pool) *PgAdvisoryLock {
	return &PgAdvisoryLock{pool: pool}
}

// Acquire блокируется до получения lock или истечения контекста.
func (l *PgAdvisoryLock) Acquire(ctx context.Context, key int64) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire conn: %w", err)
	}

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, key); err != nil {
		conn.Release()
		return nil, fmt.Errorf("pg_advisory_lock: %w", err)
	}

	release := func() {
		// Unlock вне контекста вызова: release обязан отработать
		// и после отмены исходного запроса.
		if _, err := conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, key); err != nil {
			slog.Error("pg_advisory_unlock failed", "key", key, "error", err)
		}
		conn.Release()
	}
	return release, nil
}

// NoopLock — явное отсутствие межпроцессной блокировки для backends
// без advisory locks. Выбирается конфигурацией, не выводится молча;
// факт деградации логируется при старте сервиса.
type NoopLock struct{}

// Acquire ничего не блокирует.
func (NoopLock) Acquire(_ context.Context, _ int64) (func(), error) {
	return func() {}, nil
}
