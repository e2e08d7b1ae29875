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

// TenantRepo — репозиторий для работы с tenants.
type TenantRepo struct {
	pool *pgxpool.Pool
}

// NewTenantRepo создаёт новый TenantRepo.
func NewTenantRepo(pool *pgxpool.Pool) *TenantRepo {
	return &TenantRepo{pool: pool}
}

// GetByID возвращает tenant по ID.
func (r *TenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	query := `
		SELECT id, domain, render_quota_used, render_quota_limit, created_at
		FROM tenants
		WHERE id = $1
	`
	var t domain.Tenant
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.Domain,
		&t.RenderQuotaUsed,
		&t.RenderQuotaLimit,
		&t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	return &t, nil
}

// GetByDomain возвращает tenant по домену витрины.
func (r *TenantRepo) GetByDomain(ctx context.Context, host string) (*domain.Tenant, error) {
	query := `
		SELECT id, domain, render_quota_used, render_quota_limit, created_at
		FROM tenants
		WHERE domain = $1
	`
	var t domain.Tenant
	err := r.pool.QueryRow(ctx, query, host).Scan(
		&t.ID,
		&t.Domain,
		&t.RenderQuotaUsed,
		&t.RenderQuotaLimit,
		&t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	return &t, nil
}

// IncrementQuota увеличивает счётчик использованных рендеров на 1.
// Вызывается ровно один раз на run.
func (r *TenantRepo) IncrementQuota(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE tenants
		SET render_quota_used = render_quota_used + 1
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment quota: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
