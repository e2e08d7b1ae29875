package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Showroom/internal/domain"
)

// AssetRepo — репозиторий для работы с product assets.
type AssetRepo struct {
	pool *pgxpool.Pool
}

// NewAssetRepo создаёт новый AssetRepo.
func NewAssetRepo(pool *pgxpool.Pool) *AssetRepo {
	return &AssetRepo{pool: pool}
}

// Create создаёт новый asset.
func (r *AssetRepo) Create(ctx context.Context, a *domain.ProductAsset) error {
	cardJSON, err := json.Marshal(a.Card)
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}
	query := `
		INSERT INTO product_assets (id, tenant_id, product_id, source_image_key, card, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		a.ID,
		a.TenantID,
		a.ProductID,
		a.SourceImageKey,
		cardJSON,
		a.Status,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// GetByID возвращает asset по ID.
func (r *AssetRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProductAsset, error) {
	query := assetSelect + ` WHERE id = $1`
	return r.scanAsset(r.pool.QueryRow(ctx, query, id))
}

// GetByProduct возвращает asset по (tenant, product).
func (r *AssetRepo) GetByProduct(ctx context.Context, tenantID uuid.UUID, productID string) (*domain.ProductAsset, error) {
	query := assetSelect + ` WHERE tenant_id = $1 AND product_id = $2`
	return r.scanAsset(r.pool.QueryRow(ctx, query, tenantID, productID))
}

// Update обновляет asset целиком.
func (r *AssetRepo) Update(ctx context.Context, a *domain.ProductAsset) error {
	extractedJSON, err := marshalNullable(a.ExtractedFacts)
	if err != nil {
		return fmt.Errorf("marshal extracted facts: %w", err)
	}
	resolvedJSON, err := marshalNullable(a.ResolvedFacts)
	if err != nil {
		return fmt.Errorf("marshal resolved facts: %w", err)
	}
	placementsJSON, err := marshalNullable(a.Placements)
	if err != nil {
		return fmt.Errorf("marshal placements: %w", err)
	}

	query := `
		UPDATE product_assets
		SET prepared_image_key = $2, prepared_content_hash = $3,
		    extracted_facts = $4, resolved_facts = $5, placements = $6,
		    staged_ref = $7, staged_expires_at = $8,
		    status = $9, retry_count = $10, error = $11, claimed_at = $12,
		    updated_at = now()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		a.ID,
		nullString(a.PreparedImageKey),
		nullString(a.PreparedContentHash),
		extractedJSON,
		resolvedJSON,
		placementsJSON,
		nullString(a.StagedFile.Ref),
		nullTime(a.StagedFile.ExpiresAt),
		a.Status,
		a.RetryCount,
		nullString(a.Error),
		a.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStagedFile сохраняет обновлённую staging-ссылку.
// Отдельный узкий UPDATE: request-time путь не должен перетирать
// поля подготовки, которые он не читал.
func (r *AssetRepo) UpdateStagedFile(ctx context.Context, id uuid.UUID, ref domain.FileRef) error {
	query := `
		UPDATE product_assets
		SET staged_ref = $2, staged_expires_at = $3, updated_at = now()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, nullString(ref.Ref), nullTime(ref.ExpiresAt))
	if err != nil {
		return fmt.Errorf("update asset staged file: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Claim атомарно переводит asset из PREPARING в PROCESSING.
// Возвращает ErrClaimLost, если строку успел захватить другой процесс.
func (r *AssetRepo) Claim(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE product_assets
		SET status = 'PROCESSING', claimed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'PREPARING'
	`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("claim asset: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrClaimLost
	}
	return nil
}

// ListPreparing возвращает assets, ожидающие подготовки.
func (r *AssetRepo) ListPreparing(ctx context.Context, limit int) ([]domain.ProductAsset, error) {
	query := assetSelect + `
		WHERE status = 'PREPARING'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list preparing assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.ProductAsset
	for rows.Next() {
		a, err := r.scanAssetFromRows(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// ListStale возвращает assets, зависшие в PROCESSING дольше окна.
func (r *AssetRepo) ListStale(ctx context.Context, window time.Duration, limit int) ([]domain.ProductAsset, error) {
	query := assetSelect + `
		WHERE status = 'PROCESSING' AND claimed_at < now() - $1::interval
		ORDER BY claimed_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, window, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.ProductAsset
	for rows.Next() {
		a, err := r.scanAssetFromRows(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// --- Helpers ---

const assetSelect = `
	SELECT id, tenant_id, product_id, source_image_key, card,
	       prepared_image_key, prepared_content_hash,
	       extracted_facts, override_patch, resolved_facts, placements,
	       staged_ref, staged_expires_at,
	       status, retry_count, error, claimed_at, created_at, updated_at
	FROM product_assets
`

func (r *AssetRepo) scanAsset(row pgx.Row) (*domain.ProductAsset, error) {
	a, err := scanAssetFields(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (r *AssetRepo) scanAssetFromRows(rows pgx.Rows) (*domain.ProductAsset, error) {
	return scanAssetFields(rows.Scan)
}

func scanAssetFields(scan func(dest ...any) error) (*domain.ProductAsset, error) {
	var a domain.ProductAsset
	var preparedKey, preparedHash, stagedRef, assetError *string
	var cardJSON, extractedJSON, patchJSON, resolvedJSON, placementsJSON []byte
	var stagedExpires *time.Time

	err := scan(
		&a.ID,
		&a.TenantID,
		&a.ProductID,
		&a.SourceImageKey,
		&cardJSON,
		&preparedKey,
		&preparedHash,
		&extractedJSON,
		&patchJSON,
		&resolvedJSON,
		&placementsJSON,
		&stagedRef,
		&stagedExpires,
		&a.Status,
		&a.RetryCount,
		&assetError,
		&a.ClaimedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan asset: %w", err)
	}

	if preparedKey != nil {
		a.PreparedImageKey = *preparedKey
	}
	if preparedHash != nil {
		a.PreparedContentHash = *preparedHash
	}
	if assetError != nil {
		a.Error = *assetError
	}
	if stagedRef != nil {
		a.StagedFile.Ref = *stagedRef
	}
	if stagedExpires != nil {
		a.StagedFile.ExpiresAt = *stagedExpires
	}

	if err := unmarshalNullable(cardJSON, &a.Card); err != nil {
		return nil, fmt.Errorf("unmarshal card: %w", err)
	}
	if err := unmarshalNullable(extractedJSON, &a.ExtractedFacts); err != nil {
		return nil, fmt.Errorf("unmarshal extracted facts: %w", err)
	}
	if err := unmarshalNullable(patchJSON, &a.OverridePatch); err != nil {
		return nil, fmt.Errorf("unmarshal override patch: %w", err)
	}
	if err := unmarshalNullable(resolvedJSON, &a.ResolvedFacts); err != nil {
		return nil, fmt.Errorf("unmarshal resolved facts: %w", err)
	}
	if err := unmarshalNullable(placementsJSON, &a.Placements); err != nil {
		return nil, fmt.Errorf("unmarshal placements: %w", err)
	}

	return &a, nil
}

// marshalNullable сериализует указатель в JSON, nil — в NULL.
func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// unmarshalNullable десериализует JSON-колонку, NULL оставляет nil.
func unmarshalNullable(data []byte, dest any) error {
	if data == nil {
		return nil
	}
	return json.Unmarshal(data, dest)
}

// nullTime возвращает nil для нулевого времени.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
