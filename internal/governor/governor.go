package governor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Showroom/internal/telemetry"
	"golang.org/x/sync/semaphore"
)

// Config — настройки governor.
type Config struct {
	// GlobalParallelism — ёмкость глобального admission-семафора.
	GlobalParallelism int

	// LockWaitTimeout — предел ожидания распределённого lock.
	LockWaitTimeout time.Duration

	// Dist — реализация распределённого lock. Обязательна:
	// отсутствие межпроцессной блокировки выражается явным NoopLock,
	// а не nil.
	Dist DistributedLock
}

// Governor — admission-контроль и per-tenant сериализация.
type Governor struct {
	sem      *semaphore.Weighted
	dist     DistributedLock
	lockWait time.Duration

	mu      sync.Mutex
	tenants map[uuid.UUID]*tenantLock
}

// tenantLock — состояние взаимного исключения одного tenant.
// Запись существует только пока lock удержан или есть ожидающие;
// на release без очереди запись удаляется из map.
type tenantLock struct {
	held  bool
	queue []chan struct{}
}

// New создаёт новый Governor.
func New(cfg Config) *Governor {
	if cfg.GlobalParallelism <= 0 {
		cfg.GlobalParallelism = 4
	}
	if cfg.LockWaitTimeout <= 0 {
		cfg.LockWaitTimeout = 30 * time.Second
	}
	if cfg.Dist == nil {
		cfg.Dist = NoopLock{}
	}
	return &Governor{
		sem:      semaphore.NewWeighted(int64(cfg.GlobalParallelism)),
		dist:     cfg.Dist,
		lockWait: cfg.LockWaitTimeout,
		tenants:  make(map[uuid.UUID]*tenantLock),
	}
}

// AcquireSlot занимает слот глобального семафора. Ожидающие
// обслуживаются в порядке прихода. Возвращённый release обязан
// быть вызван на каждом пути выхода.
func (g *Governor) AcquireSlot(ctx context.Context) (func(), error) {
	start := time.Now()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	telemetry.GovernorWait.Observe(time.Since(start).Seconds())

	var once sync.Once
	return func() {
		once.Do(func() { g.sem.Release(1) })
	}, nil
}

// LockTenant берёт критическую секцию tenant: сначала внутрипроцессную
// FIFO-очередь, затем распределённый lock с ограниченным ожиданием.
// Возвращённый release снимает оба в обратном порядке.
func (g *Governor) LockTenant(ctx context.Context, tenantID uuid.UUID) (func(), error) {
	if err := g.lockLocal(ctx, tenantID); err != nil {
		return nil, err
	}

	lockCtx, cancel := context.WithTimeoutCause(ctx, g.lockWait, ErrLockWaitTimeout)
	defer cancel()
	releaseDist, err := g.dist.Acquire(lockCtx, LockKey(tenantID))
	if err != nil {
		g.unlockLocal(tenantID)
		if context.Cause(lockCtx) == ErrLockWaitTimeout {
			return nil, ErrLockWaitTimeout
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseDist()
			g.unlockLocal(tenantID)
		})
	}, nil
}

// lockLocal встаёт в FIFO-очередь tenant и ждёт своей очереди.
func (g *Governor) lockLocal(ctx context.Context, tenantID uuid.UUID) error {
	g.mu.Lock()
	tl := g.tenants[tenantID]
	if tl == nil {
		tl = &tenantLock{}
		g.tenants[tenantID] = tl
	}
	if !tl.held {
		tl.held = true
		g.mu.Unlock()
		return nil
	}

	ch := make(chan struct{})
	tl.queue = append(tl.queue, ch)
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		removed := false
		for i, w := range tl.queue {
			if w == ch {
				tl.queue = append(tl.queue[:i], tl.queue[i+1:]...)
				removed = true
				break
			}
		}
		g.mu.Unlock()
		if !removed {
			// Release успел передать lock нам — передаём дальше.
			g.unlockLocal(tenantID)
		}
		return ctx.Err()
	}
}

// unlockLocal передаёт lock голове очереди или удаляет запись tenant.
func (g *Governor) unlockLocal(tenantID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tl := g.tenants[tenantID]
	if tl == nil {
		return
	}
	if len(tl.queue) > 0 {
		next := tl.queue[0]
		tl.queue = tl.queue[1:]
		close(next)
		return
	}
	tl.held = false
	delete(g.tenants, tenantID)
}

// ActiveTenants возвращает число tenants с удержанным lock или
// непустой очередью. Для диагностики и проверки pruning.
func (g *Governor) ActiveTenants() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tenants)
}
