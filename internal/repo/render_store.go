package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/shaiso/Showroom/internal/domain"
)

// RenderStore — персистентность render-движка поверх двух репозиториев:
// строки run и вариантов пишет RunRepo, счётчик квоты — TenantRepo.
type RenderStore struct {
	runs    *RunRepo
	tenants *TenantRepo
}

// NewRenderStore создаёт RenderStore.
func NewRenderStore(runs *RunRepo, tenants *TenantRepo) *RenderStore {
	return &RenderStore{runs: runs, tenants: tenants}
}

// CreateRun создаёт строку run.
func (s *RenderStore) CreateRun(ctx context.Context, run *domain.RenderRun) error {
	return s.runs.Create(ctx, run)
}

// InsertVariant сохраняет завершённый вариант.
func (s *RenderStore) InsertVariant(ctx context.Context, v *domain.Variant) error {
	return s.runs.InsertVariant(ctx, v)
}

// FinalizeRun записывает терминальный статус и счётчики run.
func (s *RenderStore) FinalizeRun(ctx context.Context, run *domain.RenderRun) error {
	return s.runs.Finalize(ctx, run)
}

// IncrementQuota увеличивает счётчик использованных рендеров tenant.
func (s *RenderStore) IncrementQuota(ctx context.Context, tenantID uuid.UUID) error {
	return s.tenants.IncrementQuota(ctx, tenantID)
}
