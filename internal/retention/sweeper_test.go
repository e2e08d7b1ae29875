package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Showroom/internal/domain"
)

type fakeRooms struct {
	expired   []domain.RoomSession
	deleted   []uuid.UUID
	deleteErr map[uuid.UUID]error
}

func (f *fakeRooms) ListExpired(_ context.Context, _ time.Time, limit int) ([]domain.RoomSession, error) {
	n := min(limit, len(f.expired))
	batch := f.expired[:n]
	f.expired = f.expired[n:]
	return batch, nil
}

func (f *fakeRooms) Delete(_ context.Context, id uuid.UUID) error {
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeObjects struct {
	deleted [][]string
	err     error
}

func (f *fakeObjects) Delete(keys ...string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, keys)
	return nil
}

type countingLock struct {
	acquired int
	released int
}

func (l *countingLock) Acquire(_ context.Context, _ int64) (func(), error) {
	l.acquired++
	return func() { l.released++ }, nil
}

func expiredRoom() domain.RoomSession {
	return domain.RoomSession{
		ID:          uuid.New(),
		TenantID:    uuid.New(),
		OriginalKey: "tenants/t/rooms/r/original.jpg",
		CreatedAt:   time.Now().Add(-48 * time.Hour),
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(Config{Schedule: "not a cron"})
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestSweepDeletesObjectsThenRows(t *testing.T) {
	room := expiredRoom()
	room.CleanedKey = "tenants/t/rooms/r/cleaned.png"
	rooms := &fakeRooms{expired: []domain.RoomSession{room}}
	objects := &fakeObjects{}
	lock := &countingLock{}

	s, err := New(Config{Rooms: rooms, Objects: objects, Lock: lock})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if len(objects.deleted) != 1 {
		t.Fatalf("expected 1 storage delete, got %d", len(objects.deleted))
	}
	keys := objects.deleted[0]
	if len(keys) != 2 || keys[0] != room.OriginalKey || keys[1] != room.CleanedKey {
		t.Errorf("unexpected deleted keys: %v", keys)
	}
	if len(rooms.deleted) != 1 || rooms.deleted[0] != room.ID {
		t.Errorf("expected room row deleted, got %v", rooms.deleted)
	}
	if lock.acquired != 1 || lock.released != 1 {
		t.Errorf("lock acquire/release = %d/%d, want 1/1", lock.acquired, lock.released)
	}
}

func TestSweepRowSurvivesStorageFailure(t *testing.T) {
	room := expiredRoom()
	rooms := &fakeRooms{expired: []domain.RoomSession{room}}
	objects := &fakeObjects{err: errors.New("storage down")}

	s, err := New(Config{Rooms: rooms, Objects: objects})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if len(rooms.deleted) != 0 {
		t.Error("row must not be deleted when object delete fails")
	}
}

func TestSweepOneFailureDoesNotStopPass(t *testing.T) {
	bad := expiredRoom()
	good := expiredRoom()
	rooms := &fakeRooms{
		expired:   []domain.RoomSession{bad, good},
		deleteErr: map[uuid.UUID]error{bad.ID: errors.New("constraint")},
	}
	objects := &fakeObjects{}

	s, err := New(Config{Rooms: rooms, Objects: objects})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if len(rooms.deleted) != 1 || rooms.deleted[0] != good.ID {
		t.Errorf("good room must still be swept, got %v", rooms.deleted)
	}
}

func TestSweepDrainsMultipleBatches(t *testing.T) {
	var expired []domain.RoomSession
	for range 5 {
		expired = append(expired, expiredRoom())
	}
	rooms := &fakeRooms{expired: expired}
	objects := &fakeObjects{}

	s, err := New(Config{Rooms: rooms, Objects: objects, BatchSize: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if len(rooms.deleted) != 5 {
		t.Errorf("expected all 5 rooms swept, got %d", len(rooms.deleted))
	}
}
