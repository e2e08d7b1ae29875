package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Showroom/internal/domain"
)

// RunRepo — репозиторий для работы с render runs и их вариантами.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create создаёт новый run.
func (r *RunRepo) Create(ctx context.Context, run *domain.RenderRun) error {
	factsJSON, err := marshalNullable(run.FactsSnapshot)
	if err != nil {
		return fmt.Errorf("marshal facts snapshot: %w", err)
	}
	placementsJSON, err := marshalNullable(run.PlacementsSnapshot)
	if err != nil {
		return fmt.Errorf("marshal placements snapshot: %w", err)
	}

	query := `
		INSERT INTO render_runs (id, tenant_id, asset_id, room_id, trace_id, status,
		                         facts_snapshot, placements_snapshot, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.TenantID,
		run.AssetID,
		run.RoomID,
		nullString(run.TraceID),
		run.Status,
		factsJSON,
		placementsJSON,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.RenderRun, error) {
	query := runSelect + ` WHERE id = $1`
	return r.scanRun(r.pool.QueryRow(ctx, query, id))
}

// Finalize записывает терминальный статус и счётчики run.
func (r *RunRepo) Finalize(ctx context.Context, run *domain.RenderRun) error {
	query := `
		UPDATE render_runs
		SET status = $2, succeeded = $3, failed = $4, timed_out = $5, finished_at = $6
		WHERE id = $1 AND finished_at IS NULL
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		run.Succeeded,
		run.Failed,
		run.TimedOut,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertVariant записывает терминальный результат одного варианта.
// Повторная запись того же (run_id, placement_id) — нарушение
// инварианта однократности, конфликт уникальности отдаётся наверх.
func (r *RunRepo) InsertVariant(ctx context.Context, v *domain.Variant) error {
	query := `
		INSERT INTO render_variants (id, run_id, placement_id, index, status,
		                             image_key, latency_ms, error_code, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		v.ID,
		v.RunID,
		v.PlacementID,
		v.Index,
		v.Status,
		nullString(v.ImageKey),
		v.LatencyMS,
		nullString(v.ErrorCode),
		nullString(v.ErrorMessage),
		v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert variant: %w", err)
	}
	return nil
}

// ListVariants возвращает варианты run в порядке index.
func (r *RunRepo) ListVariants(ctx context.Context, runID uuid.UUID) ([]domain.Variant, error) {
	query := `
		SELECT id, run_id, placement_id, index, status,
		       image_key, latency_ms, error_code, error_message, created_at
		FROM render_variants
		WHERE run_id = $1
		ORDER BY index ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.Variant
	for rows.Next() {
		var v domain.Variant
		var imageKey, errorCode, errorMessage *string
		err := rows.Scan(
			&v.ID,
			&v.RunID,
			&v.PlacementID,
			&v.Index,
			&v.Status,
			&imageKey,
			&v.LatencyMS,
			&errorCode,
			&errorMessage,
			&v.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		if imageKey != nil {
			v.ImageKey = *imageKey
		}
		if errorCode != nil {
			v.ErrorCode = *errorCode
		}
		if errorMessage != nil {
			v.ErrorMessage = *errorMessage
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// --- Helpers ---

const runSelect = `
	SELECT id, tenant_id, asset_id, room_id, trace_id, status,
	       facts_snapshot, placements_snapshot,
	       succeeded, failed, timed_out, started_at, finished_at
	FROM render_runs
`

func (r *RunRepo) scanRun(row pgx.Row) (*domain.RenderRun, error) {
	var run domain.RenderRun
	var traceID *string
	var factsJSON, placementsJSON []byte

	err := row.Scan(
		&run.ID,
		&run.TenantID,
		&run.AssetID,
		&run.RoomID,
		&traceID,
		&run.Status,
		&factsJSON,
		&placementsJSON,
		&run.Succeeded,
		&run.Failed,
		&run.TimedOut,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if traceID != nil {
		run.TraceID = *traceID
	}
	if err := unmarshalNullable(factsJSON, &run.FactsSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal facts snapshot: %w", err)
	}
	if err := unmarshalNullable(placementsJSON, &run.PlacementsSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal placements snapshot: %w", err)
	}

	return &run, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
