package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Showroom/internal/domain"
	"github.com/shaiso/Showroom/internal/filecache"
	"github.com/shaiso/Showroom/internal/gateway"
	"github.com/shaiso/Showroom/internal/governor"
	"github.com/shaiso/Showroom/internal/render"
	"github.com/shaiso/Showroom/internal/stream"
	"golang.org/x/sync/errgroup"
)

// apiError — отложенная ошибка валидации: интерактивный эндпоинт
// отдаёт её JSON-телом, streaming — терминальным error-кадром.
type apiError struct {
	Status  int
	Code    string
	Message string
}

// CreateRender выполняет интерактивный рендер в режиме wait_all.
// POST /api/v1/render
func (h *Handler) CreateRender(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "invalid request body")
		return
	}
	if req.RoomSessionID == uuid.Nil || req.ProductID == "" {
		BadRequest(w, r, "room_session_id and product_id are required")
		return
	}

	ctx := r.Context()
	in, apiErr := h.resolveRenderInputs(ctx, r, req.RoomSessionID, req.ProductID)
	if apiErr != nil {
		Error(w, r, apiErr.Status, apiErr.Code, apiErr.Message)
		return
	}

	release, err := h.admission.LockTenant(ctx, in.tenant.ID)
	if HandleError(w, r, h.logger, err, "") {
		return
	}
	defer release()

	input, err := h.stageInputs(ctx, in)
	if HandleError(w, r, h.logger, err, "") {
		return
	}
	input.TraceID = RequestIDFromContext(ctx)

	result, err := h.engine.RenderAllVariants(ctx, input, render.Callbacks{})
	if err != nil {
		InternalError(w, r, h.logger, err)
		return
	}
	if result.Run.Status == domain.RunStatusFailed {
		InvalidState(w, r, CodeAllVariantsFailed,
			fmt.Sprintf("render run %s: no variant succeeded", result.Run.ID))
		return
	}

	Success(w, h.renderResponse(result))
}

// StreamRender выполняет рендер с наблюдением через SSE.
// GET /api/v1/render/stream?room_session_id=...&product_id=...
//
// Ошибки после установления потока отдаются терминальным error-кадром:
// EventSource на витрине не читает JSON-тел.
func (h *Handler) StreamRender(w http.ResponseWriter, r *http.Request) {
	s, err := stream.New(w, h.streamCfg)
	if err != nil {
		InternalError(w, r, h.logger, err)
		return
	}

	ctx := r.Context()
	requestID := RequestIDFromContext(ctx)

	go h.produceStream(ctx, r, s, requestID)
	s.Serve(ctx.Done())
}

// produceStream — производитель кадров одного SSE-потока. Работает
// в отдельной горутине; единственный писатель — цикл Serve.
func (h *Handler) produceStream(ctx context.Context, r *http.Request, s *stream.Stream, requestID string) {
	q := r.URL.Query()
	roomID, err := uuid.Parse(q.Get("room_session_id"))
	if err != nil {
		s.Error(CodeBadRequest, "invalid room_session_id", requestID, "")
		return
	}
	productID := q.Get("product_id")
	if productID == "" {
		s.Error(CodeBadRequest, "product_id is required", requestID, "")
		return
	}

	in, apiErr := h.resolveRenderInputs(ctx, r, roomID, productID)
	if apiErr != nil {
		s.Error(apiErr.Code, apiErr.Message, requestID, "")
		return
	}

	release, err := h.admission.LockTenant(ctx, in.tenant.ID)
	if err != nil {
		s.Error(streamErrorCode(err), err.Error(), requestID, "")
		return
	}
	defer release()

	input, err := h.stageInputs(ctx, in)
	if err != nil {
		s.Error(streamErrorCode(err), err.Error(), requestID, "")
		return
	}
	input.TraceID = requestID

	// Вызовы callbacks сериализованы движком, мутации без блокировки.
	var successIDs []string
	cb := render.Callbacks{
		OnRunStarted: func(ri render.RunInfo) {
			s.RunStarted(ri.RunID.String(), ri.VariantCount)
		},
		OnVariantCompleted: func(v domain.Variant) {
			var imageURL string
			if v.Status == domain.VariantStatusSuccess {
				successIDs = append(successIDs, v.PlacementID)
				imageURL = h.signImage(v.ImageKey)
			}
			s.Variant(v, imageURL)
		},
	}

	result, err := h.engine.RenderAllVariants(ctx, input, cb)
	if err != nil {
		s.Error(CodeInternalError, "render failed", requestID, "")
		return
	}
	if result.Run.Status == domain.RunStatusFailed {
		s.Error(CodeAllVariantsFailed, "no variant succeeded", requestID, result.Run.ID.String())
		return
	}
	s.Complete(result.Run, successIDs)
}

// streamErrorCode выбирает код терминального error-кадра.
func streamErrorCode(err error) string {
	switch {
	case errors.Is(err, governor.ErrLockWaitTimeout):
		return CodeTenantBusy
	case errors.Is(err, filecache.ErrMIMEMismatch):
		return CodeInvalidImage
	default:
		return CodeInternalError
	}
}

// renderInputs — проверенные входы одного рендера.
type renderInputs struct {
	tenant *domain.Tenant
	room   *domain.RoomSession
	asset  *domain.ProductAsset
}

// resolveRenderInputs проверяет предусловия рендера. Любой отказ —
// терминальный 4xx без retry: недостающее состояние не достраивается.
func (h *Handler) resolveRenderInputs(ctx context.Context, r *http.Request, roomID uuid.UUID, productID string) (*renderInputs, *apiError) {
	tenant, err := h.resolveTenant(r)
	if err != nil {
		return nil, &apiError{http.StatusForbidden, CodeUnknownTenant, "unknown tenant"}
	}
	if tenant.QuotaExceeded() {
		return nil, &apiError{http.StatusTooManyRequests, CodeQuotaExceeded, "render quota exceeded"}
	}

	room, err := h.rooms.GetByID(ctx, roomID)
	if err != nil || room.TenantID != tenant.ID {
		return nil, &apiError{http.StatusNotFound, CodeNotFound, "room session not found"}
	}
	if room.Expired(time.Now()) {
		return nil, &apiError{http.StatusNotFound, CodeRoomExpired, "room session expired"}
	}

	asset, err := h.assets.GetByProduct(ctx, tenant.ID, productID)
	if err != nil {
		return nil, &apiError{http.StatusNotFound, CodeNotFound, "product not found"}
	}
	if !asset.RenderReady() {
		return nil, &apiError{http.StatusUnprocessableEntity, CodeAssetNotReady,
			fmt.Sprintf("product asset is %s, not ready for render", asset.Status)}
	}

	return &renderInputs{tenant: tenant, room: room, asset: asset}, nil
}

// resolveTenant определяет tenant запроса: по Origin встроенного
// виджета, иначе по заголовку X-Tenant-ID.
func (h *Handler) resolveTenant(r *http.Request) (*domain.Tenant, error) {
	if origin := r.Header.Get("Origin"); origin != "" {
		return h.tenants.GetByDomain(r.Context(), originDomain(origin))
	}
	id, err := uuid.Parse(r.Header.Get("X-Tenant-ID"))
	if err != nil {
		return nil, err
	}
	return h.tenants.GetByID(r.Context(), id)
}

// stageInputs готовит оба staged-изображения параллельно. Диспатч
// вариантов не начинается, пока не готовы оба.
func (h *Handler) stageInputs(ctx context.Context, in *renderInputs) (render.Input, error) {
	var productImage, roomImage gateway.StagedImage

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		productImage, err = h.stageProductImage(gctx, in.asset)
		return err
	})
	g.Go(func() error {
		var err error
		roomImage, err = h.stageRoomImage(gctx, in.room)
		return err
	})
	if err := g.Wait(); err != nil {
		return render.Input{}, err
	}

	return render.Input{
		TenantID:     in.tenant.ID,
		AssetID:      in.asset.ID,
		RoomID:       in.room.ID,
		ProductImage: productImage,
		RoomImage:    roomImage,
		Facts:        in.asset.ResolvedFacts,
		Placements:   in.asset.Placements,
	}, nil
}

func (h *Handler) stageProductImage(ctx context.Context, a *domain.ProductAsset) (gateway.StagedImage, error) {
	key := a.PreparedImageKey
	if key == "" {
		key = a.SourceImageKey
	}
	mime := filecache.MIMEFromKey(key)

	ref, err := h.stager.GetOrRefresh(ctx, a.StagedFile,
		func(ctx context.Context) ([]byte, error) { return h.objects.Get(key) },
		mime, "product "+a.ID.String())
	if err != nil {
		return gateway.StagedImage{}, err
	}
	if ref != a.StagedFile {
		if err := h.assets.UpdateStagedFile(ctx, a.ID, ref); err != nil {
			return gateway.StagedImage{}, fmt.Errorf("persist product staged ref: %w", err)
		}
	}
	return gateway.StagedImage{URI: ref.Ref, MIMEType: mime}, nil
}

func (h *Handler) stageRoomImage(ctx context.Context, room *domain.RoomSession) (gateway.StagedImage, error) {
	key := room.RenderKey()
	mime := filecache.MIMEFromKey(key)

	ref, err := h.stager.GetOrRefresh(ctx, room.StagedFile,
		func(ctx context.Context) ([]byte, error) { return h.objects.Get(key) },
		mime, "room "+room.ID.String())
	if err != nil {
		return gateway.StagedImage{}, err
	}
	if ref != room.StagedFile {
		if err := h.rooms.UpdateStagedFile(ctx, room.ID, ref); err != nil {
			return gateway.StagedImage{}, fmt.Errorf("persist room staged ref: %w", err)
		}
	}
	return gateway.StagedImage{URI: ref.Ref, MIMEType: mime}, nil
}

// renderResponse собирает агрегат завершённого run с подписанными
// URL успешных вариантов.
func (h *Handler) renderResponse(result *render.Result) RenderResponse {
	variants := make([]VariantResponse, len(result.Variants))
	for i, v := range result.Variants {
		variants[i] = h.variantResponse(v)
	}
	return RenderResponse{
		RunID:      result.Run.ID,
		Status:     string(result.Run.Status),
		Variants:   variants,
		DurationMS: result.Run.Duration().Milliseconds(),
	}
}

func (h *Handler) variantResponse(v domain.Variant) VariantResponse {
	resp := VariantResponse{
		ID:        v.PlacementID,
		Status:    string(v.Status),
		LatencyMS: v.LatencyMS,
	}
	if v.Status == domain.VariantStatusSuccess {
		resp.ImageURL = h.signImage(v.ImageKey)
	} else {
		resp.ErrorMessage = v.ErrorMessage
	}
	return resp
}

// signImage возвращает подписанный URL чтения или "" при отказе
// подписи: отсутствие URL у варианта не роняет весь ответ.
func (h *Handler) signImage(key string) string {
	url, err := h.objects.SignedURL(key, int(h.signTTL.Seconds()))
	if err != nil {
		h.logger.Warn("failed to sign image url", "key", key, "error", err)
		return ""
	}
	return url
}
