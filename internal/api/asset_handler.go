package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Showroom/internal/domain"
)

// CreateAsset импортирует товар: создаёт ProductAsset в PREPARING
// и ставит prepare-задачу batch-процессору.
// POST /api/v1/assets
func (h *Handler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req CreateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "invalid request body")
		return
	}
	if req.TenantID == uuid.Nil || req.ProductID == "" || req.SourceImageKey == "" {
		BadRequest(w, r, "tenant_id, product_id and source_image_key are required")
		return
	}

	tenant, err := h.tenants.GetByID(r.Context(), req.TenantID)
	if HandleError(w, r, h.logger, err, "tenant not found") {
		return
	}

	now := time.Now()
	asset := &domain.ProductAsset{
		ID:             uuid.New(),
		TenantID:       tenant.ID,
		ProductID:      req.ProductID,
		SourceImageKey: req.SourceImageKey,
		Card:           req.Card,
		OverridePatch:  req.OverridePatch,
		Status:         domain.AssetStatusPreparing,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.assets.Create(r.Context(), asset); err != nil {
		InternalError(w, r, h.logger, err)
		return
	}

	if err := h.enqueuePrepare(r, asset); err != nil {
		InternalError(w, r, h.logger, err)
		return
	}

	Created(w, AssetFromDomain(asset))
}

// GetAsset возвращает состояние подготовки товара.
// GET /api/v1/assets/{id}
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid asset id")
		return
	}

	asset, err := h.assets.GetByID(r.Context(), id)
	if HandleError(w, r, h.logger, err, "asset not found") {
		return
	}

	Success(w, AssetFromDomain(asset))
}

// PrepareAsset запускает повторную подготовку товара: сбрасывает
// asset в PREPARING и ставит новую prepare-задачу.
// POST /api/v1/assets/{id}/prepare
func (h *Handler) PrepareAsset(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid asset id")
		return
	}

	asset, err := h.assets.GetByID(r.Context(), id)
	if HandleError(w, r, h.logger, err, "asset not found") {
		return
	}
	if asset.Status == domain.AssetStatusProcessing {
		InvalidState(w, r, CodeInvalidState, "asset is being processed")
		return
	}

	asset.Status = domain.AssetStatusPreparing
	asset.RetryCount = 0
	asset.Error = ""
	asset.ClaimedAt = nil
	if err := h.assets.Update(r.Context(), asset); err != nil {
		InternalError(w, r, h.logger, err)
		return
	}

	if err := h.enqueuePrepare(r, asset); err != nil {
		InternalError(w, r, h.logger, err)
		return
	}

	JSON(w, http.StatusAccepted, AssetFromDomain(asset))
}

// GetRun возвращает run с вариантами.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleError(w, r, h.logger, err, "run not found") {
		return
	}
	variants, err := h.runs.ListVariants(r.Context(), id)
	if HandleError(w, r, h.logger, err, "") {
		return
	}

	resp := RunResponse{
		RunID:      run.ID,
		TenantID:   run.TenantID,
		AssetID:    run.AssetID,
		RoomID:     run.RoomID,
		Status:     string(run.Status),
		Succeeded:  run.Succeeded,
		Failed:     run.Failed,
		TimedOut:   run.TimedOut,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Variants:   make([]VariantResponse, len(variants)),
	}
	for i, v := range variants {
		resp.Variants[i] = h.variantResponse(v)
	}

	Success(w, resp)
}

// RequeueJob возвращает терминальную задачу в очередь.
// POST /api/v1/jobs/{id}/requeue
func (h *Handler) RequeueJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid job id")
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if HandleError(w, r, h.logger, err, "job not found") {
		return
	}
	if !job.IsFinished() {
		InvalidState(w, r, CodeInvalidState, "job is not finished")
		return
	}

	job.Status = domain.JobStatusQueued
	job.RetryCount = 0
	job.Error = ""
	job.ClaimedAt = nil
	if err := h.jobs.Update(r.Context(), job); err != nil {
		InternalError(w, r, h.logger, err)
		return
	}
	h.publishJobReady(r, job)

	Success(w, JobFromDomain(job))
}

// enqueuePrepare ставит prepare-задачу и будит batch-процессор.
func (h *Handler) enqueuePrepare(r *http.Request, asset *domain.ProductAsset) error {
	job := &domain.RenderJob{
		ID:        uuid.New(),
		Kind:      domain.JobKindPrepare,
		TenantID:  asset.TenantID,
		AssetID:   asset.ID,
		Status:    domain.JobStatusQueued,
		CreatedAt: time.Now(),
	}
	if err := h.jobs.Enqueue(r.Context(), job); err != nil {
		return err
	}
	h.publishJobReady(r, job)
	return nil
}

// publishJobReady шлёт wakeup в MQ. Отказ публикации не ошибка:
// задачу подберёт polling batch-процессора.
func (h *Handler) publishJobReady(r *http.Request, job *domain.RenderJob) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishJobReady(r.Context(), job.ID, job.TenantID, string(job.Kind)); err != nil {
		h.logger.Warn("failed to publish job.ready", "job_id", job.ID, "error", err)
	}
}
