package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Showroom/internal/domain"
	"github.com/shaiso/Showroom/internal/filecache"
	"github.com/shaiso/Showroom/internal/mq"
	"github.com/shaiso/Showroom/internal/render"
	"github.com/shaiso/Showroom/internal/stream"
)

// Tenants — подмножество repo.TenantRepo, нужное API.
type Tenants interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	GetByDomain(ctx context.Context, host string) (*domain.Tenant, error)
}

// Assets — подмножество repo.AssetRepo, нужное API.
type Assets interface {
	Create(ctx context.Context, a *domain.ProductAsset) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ProductAsset, error)
	GetByProduct(ctx context.Context, tenantID uuid.UUID, productID string) (*domain.ProductAsset, error)
	Update(ctx context.Context, a *domain.ProductAsset) error
	UpdateStagedFile(ctx context.Context, id uuid.UUID, ref domain.FileRef) error
}

// Rooms — подмножество repo.RoomRepo, нужное API.
type Rooms interface {
	Create(ctx context.Context, room *domain.RoomSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RoomSession, error)
	UpdateStagedFile(ctx context.Context, id uuid.UUID, ref domain.FileRef) error
}

// Runs — подмножество repo.RunRepo, нужное API.
type Runs interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RenderRun, error)
	ListVariants(ctx context.Context, runID uuid.UUID) ([]domain.Variant, error)
}

// Jobs — подмножество repo.JobRepo, нужное API.
type Jobs interface {
	Enqueue(ctx context.Context, job *domain.RenderJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RenderJob, error)
	Update(ctx context.Context, job *domain.RenderJob) error
}

// RenderEngine — подмножество render.Engine.
type RenderEngine interface {
	RenderAllVariants(ctx context.Context, in render.Input, cb render.Callbacks) (*render.Result, error)
}

// Admission — подмножество governor.Governor.
type Admission interface {
	LockTenant(ctx context.Context, tenantID uuid.UUID) (func(), error)
}

// ObjectStore — подмножество storage.Client, нужное API.
type ObjectStore interface {
	Get(key string) ([]byte, error)
	Put(key string, data []byte, contentType string) error
	SignedURL(key string, expiresIn int) (string, error)
}

// Stager — подмножество filecache.Cache.
type Stager interface {
	GetOrRefresh(ctx context.Context, existing domain.FileRef, load filecache.Loader, mimeType, label string) (domain.FileRef, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	tenants   Tenants
	assets    Assets
	rooms     Rooms
	runs      Runs
	jobs      Jobs
	engine    RenderEngine
	admission Admission
	objects   ObjectStore
	stager    Stager
	publisher *mq.Publisher
	logger    *slog.Logger

	signTTL   time.Duration
	streamCfg stream.Config
}

// Config — конфигурация для создания Handler.
type Config struct {
	Tenants   Tenants
	Assets    Assets
	Rooms     Rooms
	Runs      Runs
	Jobs      Jobs
	Engine    RenderEngine
	Admission Admission
	Objects   ObjectStore
	Stager    Stager

	// Publisher — wakeup batch-процессора. Nil допустим: задачи
	// подхватит polling.
	Publisher *mq.Publisher

	// SignTTL — срок жизни подписанных URL результатов (default: 1h).
	SignTTL time.Duration

	// Stream — таймеры SSE-потока.
	Stream stream.Config

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	signTTL := cfg.SignTTL
	if signTTL <= 0 {
		signTTL = time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		tenants:   cfg.Tenants,
		assets:    cfg.Assets,
		rooms:     cfg.Rooms,
		runs:      cfg.Runs,
		jobs:      cfg.Jobs,
		engine:    cfg.Engine,
		admission: cfg.Admission,
		objects:   cfg.Objects,
		stager:    cfg.Stager,
		publisher: cfg.Publisher,
		logger:    logger,
		signTTL:   signTTL,
		streamCfg: cfg.Stream,
	}
}

// DomainKnown реализует TenantResolver для CORS middleware.
func (h *Handler) DomainKnown(ctx context.Context, host string) bool {
	_, err := h.tenants.GetByDomain(ctx, host)
	return err == nil
}
