package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Showroom/internal/domain"
	"github.com/shaiso/Showroom/internal/gateway"
	"github.com/shaiso/Showroom/internal/telemetry"
)

// Provider — подмножество gateway, нужное движку.
type Provider interface {
	GenerateComposite(ctx context.Context, prompt string, images []gateway.StagedImage, aspectRatio string) ([]byte, error)
}

// Store — персистентность run и вариантов.
type Store interface {
	CreateRun(ctx context.Context, run *domain.RenderRun) error
	InsertVariant(ctx context.Context, v *domain.Variant) error
	FinalizeRun(ctx context.Context, run *domain.RenderRun) error
	IncrementQuota(ctx context.Context, tenantID uuid.UUID) error
}

// ImageSink — запись результатов рендера в object storage.
type ImageSink interface {
	Put(key string, data []byte, contentType string) error
}

// Admission — подмножество governor, нужное движку.
type Admission interface {
	AcquireSlot(ctx context.Context) (func(), error)
}

// Input — вход одного запуска fan-out.
type Input struct {
	TenantID uuid.UUID
	AssetID  uuid.UUID
	RoomID   uuid.UUID
	TraceID  string

	// ProductImage, RoomImage — staged-изображения, уже загруженные
	// в file-staging API.
	ProductImage gateway.StagedImage
	RoomImage    gateway.StagedImage

	// Facts, Placements — снимок подготовленных данных asset.
	Facts      *domain.ProductFacts
	Placements *domain.PlacementSet

	// AspectRatio соотношения сторон результата ("1:1" по умолчанию).
	AspectRatio string
}

// RunInfo — данные запущенного run для OnRunStarted.
type RunInfo struct {
	RunID        uuid.UUID
	VariantCount int
}

// Callbacks — хуки наблюдателя. Оба опциональны.
//
// OnRunStarted вызывается синхронно, до диспатча первого варианта.
// OnVariantCompleted вызывается по одному разу на вариант, в порядке
// фактического завершения; вызовы сериализованы.
type Callbacks struct {
	OnRunStarted       func(RunInfo)
	OnVariantCompleted func(domain.Variant)
}

// Result — агрегат завершённого run.
type Result struct {
	Run      *domain.RenderRun
	Variants []domain.Variant
}

// Config — настройки движка.
type Config struct {
	// VariantTimeout — таймаут одного composite-вызова. Отдельного
	// дедлайна на run нет: варианты идут параллельно, и этот таймаут
	// одновременно является потолком длительности run.
	VariantTimeout time.Duration

	// MaxErrorLen — предел длины сохраняемого текста ошибки.
	MaxErrorLen int
}

// Engine — fan-out движок.
type Engine struct {
	provider  Provider
	store     Store
	images    ImageSink
	admission Admission
	cfg       Config
}

// New создаёт новый Engine.
func New(provider Provider, store Store, images ImageSink, admission Admission, cfg Config) *Engine {
	if cfg.VariantTimeout <= 0 {
		cfg.VariantTimeout = 90 * time.Second
	}
	if cfg.MaxErrorLen <= 0 {
		cfg.MaxErrorLen = 500
	}
	return &Engine{
		provider:  provider,
		store:     store,
		images:    images,
		admission: admission,
		cfg:       cfg,
	}
}

// RenderAllVariants — режим wait_all: блокируется до терминального
// статуса run и возвращает агрегат.
func (e *Engine) RenderAllVariants(ctx context.Context, in Input, cb Callbacks) (*Result, error) {
	run, err := e.begin(ctx, in, cb)
	if err != nil {
		return nil, err
	}
	return e.fanOut(ctx, run, in, cb), nil
}

// Start — режим fire-and-collect: создаёт run, синхронно отдаёт
// OnRunStarted и возвращает управление; fan-out продолжается в фоне
// и доводится до конца независимо от отмены ctx.
func (e *Engine) Start(ctx context.Context, in Input, cb Callbacks) (uuid.UUID, error) {
	run, err := e.begin(ctx, in, cb)
	if err != nil {
		return uuid.Nil, err
	}
	go e.fanOut(ctx, run, in, cb)
	return run.ID, nil
}

// begin проверяет вход, создаёт строку run, один раз инкрементирует
// квоту tenant и синхронно отдаёт OnRunStarted.
func (e *Engine) begin(ctx context.Context, in Input, cb Callbacks) (*domain.RenderRun, error) {
	if in.Facts == nil {
		return nil, errors.New("render: nil facts")
	}
	if in.Placements == nil {
		return nil, errors.New("render: nil placement set")
	}
	if err := in.Placements.Validate(); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	run := &domain.RenderRun{
		ID:                 uuid.New(),
		TenantID:           in.TenantID,
		AssetID:            in.AssetID,
		RoomID:             in.RoomID,
		TraceID:            in.TraceID,
		Status:             domain.RunStatusRunning,
		FactsSnapshot:      in.Facts,
		PlacementsSnapshot: in.Placements,
		StartedAt:          time.Now(),
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	// Квота списывается на run, не на вариант, и до диспатча:
	// отказ наблюдателя на середине не отменяет списание.
	if err := e.store.IncrementQuota(ctx, in.TenantID); err != nil {
		// Строка run уже создана: без финализации она зависла бы
		// в running навсегда (stale recovery покрывает только jobs).
		run.Finalize()
		if finErr := e.store.FinalizeRun(ctx, run); finErr != nil {
			telemetry.FromContext(ctx).Error("finalize run after quota failure",
				"run_id", run.ID, "error", finErr)
		}
		return nil, fmt.Errorf("increment quota: %w", err)
	}

	if cb.OnRunStarted != nil {
		cb.OnRunStarted(RunInfo{RunID: run.ID, VariantCount: domain.PlacementCount})
	}
	return run, nil
}

// fanOut выполняет все варианты параллельно и финализирует run.
// Работает на контексте, отвязанном от отмены вызывающего: после
// старта run доводится до конца даже при отключении клиента.
func (e *Engine) fanOut(ctx context.Context, run *domain.RenderRun, in Input, cb Callbacks) *Result {
	detached := context.WithoutCancel(ctx)
	logger := telemetry.WithRunID(telemetry.FromContext(ctx), run.ID.String())

	completions := make(chan domain.Variant, domain.PlacementCount)
	var wg sync.WaitGroup
	for i, placement := range in.Placements.Placements {
		wg.Add(1)
		go func(index int, p domain.Placement) {
			defer wg.Done()
			completions <- e.renderVariant(detached, run, in, index, p)
		}(i, placement)
	}
	go func() {
		wg.Wait()
		close(completions)
	}()

	// Сбор в порядке фактического завершения; callback сериализован
	// самим циклом.
	result := &Result{Run: run}
	for v := range completions {
		run.RecordVariant(v.Status)
		telemetry.VariantsTotal.WithLabelValues(string(v.Status)).Inc()
		result.Variants = append(result.Variants, v)
		if cb.OnVariantCompleted != nil {
			cb.OnVariantCompleted(v)
		}
	}

	run.Finalize()
	telemetry.RunsTotal.WithLabelValues(string(run.Status)).Inc()
	if err := e.store.FinalizeRun(detached, run); err != nil {
		logger.Error("finalize run failed", "error", err)
	}
	logger.Info("render run finished",
		"status", run.Status,
		"succeeded", run.Succeeded,
		"failed", run.Failed,
		"timed_out", run.TimedOut,
		"duration_ms", run.Duration().Milliseconds(),
	)
	return result
}

// renderVariant выполняет один composite-вызов: слот семафора,
// собственный таймаут, сохранение результата, запись строки варианта.
// Любой исход терминален; ошибки одного варианта не выходят наружу.
func (e *Engine) renderVariant(ctx context.Context, run *domain.RenderRun, in Input, index int, p domain.Placement) domain.Variant {
	v := domain.Variant{
		ID:          uuid.New(),
		RunID:       run.ID,
		PlacementID: p.ID,
		Index:       index,
	}

	start := time.Now()
	data, err := e.callProvider(ctx, in, p)
	v.LatencyMS = time.Since(start).Milliseconds()
	telemetry.VariantLatency.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		key := fmt.Sprintf("tenants/%s/renders/%s/%s.png", in.TenantID, run.ID, p.ID)
		if putErr := e.images.Put(key, data, "image/png"); putErr != nil {
			v.Status = domain.VariantStatusFailed
			v.ErrorCode = "storage_error"
			v.ErrorMessage = e.truncate(putErr.Error())
		} else {
			v.Status = domain.VariantStatusSuccess
			v.ImageKey = key
		}
	case errors.Is(err, gateway.ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
		v.Status = domain.VariantStatusTimeout
		v.ErrorCode = "timeout"
		v.ErrorMessage = e.truncate(err.Error())
	case errors.Is(err, gateway.ErrRateLimited):
		v.Status = domain.VariantStatusFailed
		v.ErrorCode = "rate_limited"
		v.ErrorMessage = e.truncate(err.Error())
	case errors.Is(err, gateway.ErrNoImage):
		v.Status = domain.VariantStatusFailed
		v.ErrorCode = "no_image"
		v.ErrorMessage = e.truncate(err.Error())
	default:
		v.Status = domain.VariantStatusFailed
		v.ErrorCode = "provider_error"
		v.ErrorMessage = e.truncate(err.Error())
	}
	v.CreatedAt = time.Now()

	if err := e.store.InsertVariant(ctx, &v); err != nil {
		telemetry.FromContext(ctx).Error("insert variant failed",
			"run_id", run.ID, "placement_id", p.ID, "error", err)
	}
	return v
}

// callProvider берёт admission-слот и выполняет composite-вызов
// с таймаутом варианта. Слот освобождается на любом пути выхода.
func (e *Engine) callProvider(ctx context.Context, in Input, p domain.Placement) ([]byte, error) {
	release, err := e.admission.AcquireSlot(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.VariantTimeout)
	defer cancel()

	aspect := in.AspectRatio
	if aspect == "" {
		aspect = "1:1"
	}
	prompt := compositePrompt(in.Facts, in.Placements.ProductDescription, p)
	images := []gateway.StagedImage{in.ProductImage, in.RoomImage}
	return e.provider.GenerateComposite(callCtx, prompt, images, aspect)
}

func compositePrompt(facts *domain.ProductFacts, description string, p domain.Placement) string {
	return fmt.Sprintf(
		"Composite the product from the first image into the room photo from the second image. "+
			"Product: %s (%s). Placement: %s. Keep lighting and perspective of the room, "+
			"respect the product's real-world scale (%s).",
		facts.Identity, description, p.Instruction, facts.ScaleClass,
	)
}

func (e *Engine) truncate(s string) string {
	if len(s) <= e.cfg.MaxErrorLen {
		return s
	}
	return s[:e.cfg.MaxErrorLen]
}
