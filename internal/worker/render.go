package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/Showroom/internal/domain"
	"github.com/shaiso/Showroom/internal/filecache"
	"github.com/shaiso/Showroom/internal/gateway"
	"github.com/shaiso/Showroom/internal/mq"
	"github.com/shaiso/Showroom/internal/render"
)

// RoomStore — подмножество repo.RoomRepo, нужное рендер-задаче.
type RoomStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RoomSession, error)
	UpdateStagedFile(ctx context.Context, id uuid.UUID, ref domain.FileRef) error
}

// Renderer — подмножество render.Engine.
type Renderer interface {
	RenderAllVariants(ctx context.Context, in render.Input, cb render.Callbacks) (*render.Result, error)
}

// RenderExecutor выполняет отложенный рендер: batch-режим fan-out
// без интерактивного наблюдателя. Частичный результат — успех задачи:
// run со статусом PARTIAL терминален и повторять его не нужно.
type RenderExecutor struct {
	assets  AssetStore
	rooms   RoomStore
	objects ObjectStore
	stager  Stager
	engine  Renderer
	emitter *mq.Emitter
	logger  *slog.Logger
}

// NewRenderExecutor создаёт RenderExecutor.
func NewRenderExecutor(assets AssetStore, rooms RoomStore, objects ObjectStore, stager Stager, engine Renderer, emitter *mq.Emitter, logger *slog.Logger) *RenderExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RenderExecutor{
		assets:  assets,
		rooms:   rooms,
		objects: objects,
		stager:  stager,
		engine:  engine,
		emitter: emitter,
		logger:  logger,
	}
}

// Execute выполняет одну попытку отложенного рендера.
func (r *RenderExecutor) Execute(ctx context.Context, job *domain.RenderJob) error {
	if job.RoomID == nil {
		return ErrNoRoom
	}

	a, err := r.assets.GetByID(ctx, job.AssetID)
	if err != nil {
		return fmt.Errorf("get asset: %w", err)
	}
	// Request-time инвариант действует и в batch: недоподготовленный
	// asset — отказ, а не достройка фактов на лету.
	if !a.RenderReady() {
		return fmt.Errorf("%w: asset %s is %s", ErrAssetNotReady, a.ID, a.Status)
	}

	room, err := r.rooms.GetByID(ctx, *job.RoomID)
	if err != nil {
		return fmt.Errorf("get room: %w", err)
	}

	productImage, err := r.stageProduct(ctx, a)
	if err != nil {
		return err
	}
	roomImage, err := r.stageRoom(ctx, room)
	if err != nil {
		return err
	}

	result, err := r.engine.RenderAllVariants(ctx, render.Input{
		TenantID:     job.TenantID,
		AssetID:      a.ID,
		RoomID:       room.ID,
		ProductImage: productImage,
		RoomImage:    roomImage,
		Facts:        a.ResolvedFacts,
		Placements:   a.Placements,
	}, render.Callbacks{})
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	r.emitter.EmitRunFinished(ctx, mq.RunFinishedPayload{
		RunID:     result.Run.ID,
		TenantID:  job.TenantID,
		Status:    string(result.Run.Status),
		Succeeded: result.Run.Succeeded,
		Failed:    result.Run.Failed,
		TimedOut:  result.Run.TimedOut,
	})

	if result.Run.Status == domain.RunStatusFailed {
		return fmt.Errorf("render run %s failed: no variant succeeded", result.Run.ID)
	}
	return nil
}

func (r *RenderExecutor) stageProduct(ctx context.Context, a *domain.ProductAsset) (gateway.StagedImage, error) {
	key := a.PreparedImageKey
	if key == "" {
		key = a.SourceImageKey
	}
	mime := filecache.MIMEFromKey(key)

	ref, err := r.stager.GetOrRefresh(ctx, a.StagedFile,
		func(ctx context.Context) ([]byte, error) { return r.objects.Get(key) },
		mime, "product "+a.ID.String())
	if err != nil {
		return gateway.StagedImage{}, err
	}
	if ref != a.StagedFile {
		if err := r.assets.UpdateStagedFile(ctx, a.ID, ref); err != nil {
			return gateway.StagedImage{}, fmt.Errorf("persist product staged ref: %w", err)
		}
	}
	return gateway.StagedImage{URI: ref.Ref, MIMEType: mime}, nil
}

func (r *RenderExecutor) stageRoom(ctx context.Context, room *domain.RoomSession) (gateway.StagedImage, error) {
	key := room.RenderKey()
	mime := filecache.MIMEFromKey(key)

	ref, err := r.stager.GetOrRefresh(ctx, room.StagedFile,
		func(ctx context.Context) ([]byte, error) { return r.objects.Get(key) },
		mime, "room "+room.ID.String())
	if err != nil {
		return gateway.StagedImage{}, err
	}
	if ref != room.StagedFile {
		if err := r.rooms.UpdateStagedFile(ctx, room.ID, ref); err != nil {
			return gateway.StagedImage{}, fmt.Errorf("persist room staged ref: %w", err)
		}
	}
	return gateway.StagedImage{URI: ref.Ref, MIMEType: mime}, nil
}
