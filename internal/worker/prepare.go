package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/Showroom/internal/domain"
	"github.com/shaiso/Showroom/internal/filecache"
	"github.com/shaiso/Showroom/internal/gateway"
	"github.com/shaiso/Showroom/internal/mq"
	"github.com/shaiso/Showroom/internal/pipeline"
	"github.com/shaiso/Showroom/internal/repo"
)

// AssetStore — подмножество repo.AssetRepo, нужное executor'ам.
type AssetStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ProductAsset, error)
	Claim(ctx context.Context, id uuid.UUID) error
	Update(ctx context.Context, a *domain.ProductAsset) error
	UpdateStagedFile(ctx context.Context, id uuid.UUID, ref domain.FileRef) error
}

// ObjectStore — чтение изображений из object storage.
type ObjectStore interface {
	Get(key string) ([]byte, error)
}

// Stager — подмножество filecache.Cache.
type Stager interface {
	GetOrRefresh(ctx context.Context, existing domain.FileRef, load filecache.Loader, mimeType, label string) (domain.FileRef, error)
}

// Preparer — подмножество pipeline.Coordinator.
type Preparer interface {
	Prepare(ctx context.Context, in pipeline.ExtractInput, patch *domain.FactsPatch) (extracted, resolved *domain.ProductFacts, set *domain.PlacementSet, err error)
}

// PrepareExecutor выполняет prepare-задачу: ведёт ProductAsset через
// fact pipeline до READY. Владеет жизненным циклом asset: claim,
// откат в PREPARING при неудачной попытке, терминальный FAILED через
// Finalizer.
type PrepareExecutor struct {
	assets  AssetStore
	objects ObjectStore
	stager  Stager
	prepare Preparer
	emitter *mq.Emitter
	logger  *slog.Logger
}

// NewPrepareExecutor создаёт PrepareExecutor.
func NewPrepareExecutor(assets AssetStore, objects ObjectStore, stager Stager, prepare Preparer, emitter *mq.Emitter, logger *slog.Logger) *PrepareExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PrepareExecutor{
		assets:  assets,
		objects: objects,
		stager:  stager,
		prepare: prepare,
		emitter: emitter,
		logger:  logger,
	}
}

// Execute выполняет одну попытку подготовки.
func (p *PrepareExecutor) Execute(ctx context.Context, job *domain.RenderJob) error {
	a, err := p.assets.GetByID(ctx, job.AssetID)
	if err != nil {
		return fmt.Errorf("get asset: %w", err)
	}
	if a.RenderReady() {
		// Подготовка уже завершена (повторная доставка wakeup).
		return nil
	}

	if err := p.claim(ctx, a); err != nil {
		return err
	}

	image, ref, err := p.stageSourceImage(ctx, a)
	if err != nil {
		p.rollback(ctx, a, err)
		return err
	}

	in := pipeline.ExtractInput{
		Title:       a.Card.Title,
		Description: a.Card.Description,
		ProductType: a.Card.ProductType,
		Vendor:      a.Card.Vendor,
		Tags:        a.Card.Tags,
		Metafields:  a.Card.Metafields,
		Images:      image,
	}
	extracted, resolved, set, err := p.prepare.Prepare(ctx, in, a.OverridePatch)
	if err != nil {
		p.rollback(ctx, a, err)
		return err
	}

	a.MarkReady(extracted, resolved, set)
	a.StagedFile = ref
	if err := p.assets.Update(ctx, a); err != nil {
		return fmt.Errorf("update asset to ready: %w", err)
	}

	p.emitter.EmitAssetStatus(ctx, mq.AssetEventPayload{
		AssetID:  a.ID,
		TenantID: a.TenantID,
		Status:   string(a.Status),
	}, false)
	return nil
}

// Fail доводит asset до терминального FAILED после исчерпания попыток.
func (p *PrepareExecutor) Fail(ctx context.Context, job *domain.RenderJob, msg string) {
	a, err := p.assets.GetByID(ctx, job.AssetID)
	if err != nil {
		p.logger.Error("failed to load asset for final failure", "asset_id", job.AssetID, "error", err)
		return
	}
	a.MarkFailed(msg)
	if err := p.assets.Update(ctx, a); err != nil {
		p.logger.Error("failed to mark asset failed", "asset_id", a.ID, "error", err)
		return
	}
	p.emitter.EmitAssetStatus(ctx, mq.AssetEventPayload{
		AssetID:  a.ID,
		TenantID: a.TenantID,
		Status:   string(a.Status),
		Error:    msg,
	}, true)
}

// claim переводит asset в PROCESSING. Проигранный claim при уже
// обрабатываемой строке — признак прерванной собственной попытки:
// prepare-работы на asset приходят только из его задачи, поэтому
// строка перезахватывается.
func (p *PrepareExecutor) claim(ctx context.Context, a *domain.ProductAsset) error {
	err := p.assets.Claim(ctx, a.ID)
	if err == nil {
		a.MarkProcessing()
		return nil
	}
	if !errors.Is(err, repo.ErrClaimLost) {
		return fmt.Errorf("claim asset: %w", err)
	}
	a.MarkProcessing()
	if err := p.assets.Update(ctx, a); err != nil {
		return fmt.Errorf("reclaim asset: %w", err)
	}
	return nil
}

// rollback возвращает asset в PREPARING после неудачной попытки,
// чтобы следующая могла сделать claim заново. Постоянная ошибка
// не откатывает: повторной попытки не будет, asset доведёт до
// FAILED Finalizer.
func (p *PrepareExecutor) rollback(ctx context.Context, a *domain.ProductAsset, cause error) {
	if !gateway.Retryable(cause) {
		return
	}
	a.ResetForRetry()
	a.Error = truncate(cause.Error(), defaultMaxErrorLen)
	if err := p.assets.Update(ctx, a); err != nil {
		p.logger.Error("failed to roll asset back to preparing", "asset_id", a.ID, "error", err)
	}
}

// stageSourceImage отдаёт staging-ссылку на изображение товара,
// обновляя её на строке asset при перезагрузке.
func (p *PrepareExecutor) stageSourceImage(ctx context.Context, a *domain.ProductAsset) ([]gateway.StagedImage, domain.FileRef, error) {
	key := a.PreparedImageKey
	if key == "" {
		key = a.SourceImageKey
	}
	mime := filecache.MIMEFromKey(key)

	ref, err := p.stager.GetOrRefresh(ctx, a.StagedFile,
		func(ctx context.Context) ([]byte, error) { return p.objects.Get(key) },
		mime, "product "+a.ID.String())
	if err != nil {
		return nil, domain.FileRef{}, err
	}
	if ref != a.StagedFile {
		if err := p.assets.UpdateStagedFile(ctx, a.ID, ref); err != nil {
			return nil, domain.FileRef{}, fmt.Errorf("persist staged ref: %w", err)
		}
		a.StagedFile = ref
	}
	return []gateway.StagedImage{{URI: ref.Ref, MIMEType: mime}}, ref, nil
}
