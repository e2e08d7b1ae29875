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

// JobRepo — репозиторий для работы с batch-задачами.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

// Enqueue ставит задачу в очередь.
func (r *JobRepo) Enqueue(ctx context.Context, job *domain.RenderJob) error {
	query := `
		INSERT INTO render_jobs (id, kind, tenant_id, asset_id, room_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Kind,
		job.TenantID,
		job.AssetID,
		job.RoomID,
		job.Status,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID возвращает задачу по ID.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.RenderJob, error) {
	query := jobSelect + ` WHERE id = $1`
	return r.scanJob(r.pool.QueryRow(ctx, query, id))
}

// ListQueued возвращает задачи в очереди, старые первыми.
func (r *JobRepo) ListQueued(ctx context.Context, limit int) ([]domain.RenderJob, error) {
	query := jobSelect + `
		WHERE status = 'QUEUED'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued jobs: %w", err)
	}
	defer rows.Close()
	return r.collectJobs(rows)
}

// Claim атомарно переводит задачу из QUEUED в PROCESSING.
// Из конкурирующих процессов claim удаётся ровно одному;
// проигравший получает ErrClaimLost и пропускает строку.
func (r *JobRepo) Claim(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE render_jobs
		SET status = 'PROCESSING', claimed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'QUEUED'
	`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrClaimLost
	}
	return nil
}

// Update обновляет статус и счётчики задачи.
func (r *JobRepo) Update(ctx context.Context, job *domain.RenderJob) error {
	query := `
		UPDATE render_jobs
		SET status = $2, retry_count = $3, error = $4, claimed_at = $5, updated_at = now()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		job.RetryCount,
		nullString(job.Error),
		job.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListStale возвращает задачи, зависшие в PROCESSING дольше окна.
// Решение — requeue или FAILED — принимает процессор по retry cap.
func (r *JobRepo) ListStale(ctx context.Context, window time.Duration, limit int) ([]domain.RenderJob, error) {
	query := jobSelect + `
		WHERE status = 'PROCESSING' AND claimed_at < now() - $1::interval
		ORDER BY claimed_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, window, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	defer rows.Close()
	return r.collectJobs(rows)
}

// Touch обновляет updated_at обрабатываемой задачи, продлевая claim.
func (r *JobRepo) Touch(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE render_jobs
		SET claimed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'PROCESSING'
	`
	_, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("touch job: %w", err)
	}
	return nil
}

// --- Helpers ---

const jobSelect = `
	SELECT id, kind, tenant_id, asset_id, room_id, status,
	       retry_count, error, claimed_at, created_at, updated_at
	FROM render_jobs
`

func (r *JobRepo) scanJob(row pgx.Row) (*domain.RenderJob, error) {
	job, err := scanJobFields(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

func (r *JobRepo) collectJobs(rows pgx.Rows) ([]domain.RenderJob, error) {
	var jobs []domain.RenderJob
	for rows.Next() {
		job, err := scanJobFields(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJobFields(scan func(dest ...any) error) (*domain.RenderJob, error) {
	var job domain.RenderJob
	var jobError *string

	err := scan(
		&job.ID,
		&job.Kind,
		&job.TenantID,
		&job.AssetID,
		&job.RoomID,
		&job.Status,
		&job.RetryCount,
		&jobError,
		&job.ClaimedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if jobError != nil {
		job.Error = *jobError
	}
	return &job, nil
}
