package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/shaiso/Showroom/internal/domain"
	"github.com/shaiso/Showroom/internal/governor"
	"github.com/shaiso/Showroom/internal/telemetry"
)

// leaderKey — ключ advisory lock для leader election свипа.
// Фиксированный: в кластере одновременно метёт ровно один процесс.
const leaderKey int64 = 0x5348524D_52544E // "SHRM" + "RTN"

// cronParser — парсер cron-выражений расписания свипа.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Rooms — подмножество repo.RoomRepo, нужное свипу.
type Rooms interface {
	ListExpired(ctx context.Context, olderThan time.Time, limit int) ([]domain.RoomSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Objects — удаление объектов из storage.
type Objects interface {
	Delete(keys ...string) error
}

// Sweeper удаляет room sessions по истечении окна хранения:
// сначала файлы в object storage, затем строку. Фотография комнаты —
// пользовательские данные, их время жизни ограничено жёстко.
type Sweeper struct {
	rooms    Rooms
	objects  Objects
	lock     governor.DistributedLock
	schedule cron.Schedule
	batch    int
	logger   *slog.Logger
}

// Config — конфигурация Sweeper.
type Config struct {
	Rooms   Rooms
	Objects Objects

	// Lock — межпроцессный lock для leader election.
	// Nil допустим только в однопроцессном деплое: подставляется NoopLock.
	Lock governor.DistributedLock

	// Schedule — cron-выражение расписания (default: каждые 15 минут).
	Schedule string

	// BatchSize — сессий за один проход (default: 100).
	BatchSize int

	Logger *slog.Logger
}

// New создаёт новый Sweeper. Невалидное cron-выражение — ошибка
// конфигурации, не повод молча взять дефолт.
func New(cfg Config) (*Sweeper, error) {
	expr := cfg.Schedule
	if expr == "" {
		expr = "*/15 * * * *"
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse retention schedule %q: %w", expr, err)
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	lock := cfg.Lock
	if lock == nil {
		lock = governor.NoopLock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		rooms:    cfg.Rooms,
		objects:  cfg.Objects,
		lock:     lock,
		schedule: schedule,
		batch:    batch,
		logger:   logger,
	}, nil
}

// Run выполняет свип по расписанию до отмены контекста.
func (s *Sweeper) Run(ctx context.Context) error {
	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := s.Sweep(ctx); err != nil {
			s.logger.Error("retention sweep failed", "error", err)
		}
	}
}

// Sweep выполняет один проход: leader election, затем пачки
// истёкших сессий до исчерпания. Ошибка одной сессии не
// останавливает проход.
func (s *Sweeper) Sweep(ctx context.Context) error {
	release, err := s.lock.Acquire(ctx, leaderKey)
	if err != nil {
		return fmt.Errorf("acquire sweep lock: %w", err)
	}
	defer release()

	cutoff := time.Now().Add(-domain.RoomRetention)
	var swept int
	for {
		rooms, err := s.rooms.ListExpired(ctx, cutoff, s.batch)
		if err != nil {
			return fmt.Errorf("list expired rooms: %w", err)
		}
		if len(rooms) == 0 {
			break
		}

		for i := range rooms {
			if err := s.sweepRoom(ctx, &rooms[i]); err != nil {
				s.logger.Error("failed to sweep room session",
					"room_id", rooms[i].ID,
					"error", err,
				)
				continue
			}
			swept++
			telemetry.RoomsSwept.Inc()
		}
		if len(rooms) < s.batch {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if swept > 0 {
		s.logger.Info("retention sweep completed", "swept", swept)
	}
	return nil
}

// sweepRoom удаляет файлы сессии, затем строку. Порядок намеренный:
// при отказе после удаления файлов строка остаётся и проход
// повторит удаление — storage Delete идемпотентен.
func (s *Sweeper) sweepRoom(ctx context.Context, room *domain.RoomSession) error {
	keys := make([]string, 0, 3)
	keys = append(keys, room.OriginalKey)
	if room.CleanedKey != "" {
		keys = append(keys, room.CleanedKey)
	}
	if room.CanonicalKey != "" {
		keys = append(keys, room.CanonicalKey)
	}

	if err := s.objects.Delete(keys...); err != nil {
		return fmt.Errorf("delete room objects: %w", err)
	}
	if err := s.rooms.Delete(ctx, room.ID); err != nil {
		return fmt.Errorf("delete room row: %w", err)
	}
	return nil
}
