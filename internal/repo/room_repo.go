package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Showroom/internal/domain"
)

// RoomRepo — репозиторий для работы с room sessions.
type RoomRepo struct {
	pool *pgxpool.Pool
}

// NewRoomRepo создаёт новый RoomRepo.
func NewRoomRepo(pool *pgxpool.Pool) *RoomRepo {
	return &RoomRepo{pool: pool}
}

// Create создаёт новую room session.
func (r *RoomRepo) Create(ctx context.Context, room *domain.RoomSession) error {
	query := `
		INSERT INTO room_sessions (id, tenant_id, original_key, cleaned_key, canonical_key,
		                           content_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		room.ID,
		room.TenantID,
		room.OriginalKey,
		nullString(room.CleanedKey),
		nullString(room.CanonicalKey),
		nullString(room.ContentHash),
		room.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert room session: %w", err)
	}
	return nil
}

// GetByID возвращает room session по ID.
func (r *RoomRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.RoomSession, error) {
	query := `
		SELECT id, tenant_id, original_key, cleaned_key, canonical_key,
		       content_hash, staged_ref, staged_expires_at, created_at
		FROM room_sessions
		WHERE id = $1
	`
	var room domain.RoomSession
	var cleanedKey, canonicalKey, contentHash, stagedRef *string
	var stagedExpires *time.Time

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&room.ID,
		&room.TenantID,
		&room.OriginalKey,
		&cleanedKey,
		&canonicalKey,
		&contentHash,
		&stagedRef,
		&stagedExpires,
		&room.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan room session: %w", err)
	}

	if cleanedKey != nil {
		room.CleanedKey = *cleanedKey
	}
	if canonicalKey != nil {
		room.CanonicalKey = *canonicalKey
	}
	if contentHash != nil {
		room.ContentHash = *contentHash
	}
	if stagedRef != nil {
		room.StagedFile.Ref = *stagedRef
	}
	if stagedExpires != nil {
		room.StagedFile.ExpiresAt = *stagedExpires
	}
	return &room, nil
}

// UpdateStagedFile сохраняет обновлённую staging-ссылку.
func (r *RoomRepo) UpdateStagedFile(ctx context.Context, id uuid.UUID, ref domain.FileRef) error {
	query := `
		UPDATE room_sessions
		SET staged_ref = $2, staged_expires_at = $3
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, nullString(ref.Ref), nullTime(ref.ExpiresAt))
	if err != nil {
		return fmt.Errorf("update room staged file: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListExpired возвращает сессии старше окна хранения.
func (r *RoomRepo) ListExpired(ctx context.Context, olderThan time.Time, limit int) ([]domain.RoomSession, error) {
	query := `
		SELECT id, tenant_id, original_key, cleaned_key, canonical_key,
		       content_hash, staged_ref, staged_expires_at, created_at
		FROM room_sessions
		WHERE created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired rooms: %w", err)
	}
	defer rows.Close()

	var rooms []domain.RoomSession
	for rows.Next() {
		var room domain.RoomSession
		var cleanedKey, canonicalKey, contentHash, stagedRef *string
		var stagedExpires *time.Time
		err := rows.Scan(
			&room.ID,
			&room.TenantID,
			&room.OriginalKey,
			&cleanedKey,
			&canonicalKey,
			&contentHash,
			&stagedRef,
			&stagedExpires,
			&room.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan room session: %w", err)
		}
		if cleanedKey != nil {
			room.CleanedKey = *cleanedKey
		}
		if canonicalKey != nil {
			room.CanonicalKey = *canonicalKey
		}
		if contentHash != nil {
			room.ContentHash = *contentHash
		}
		if stagedRef != nil {
			room.StagedFile.Ref = *stagedRef
		}
		if stagedExpires != nil {
			room.StagedFile.ExpiresAt = *stagedExpires
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// Delete удаляет room session.
func (r *RoomRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM room_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete room session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
