package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Showroom/internal/domain"
	"github.com/shaiso/Showroom/internal/filecache"
	"github.com/shaiso/Showroom/internal/gateway"
	"github.com/shaiso/Showroom/internal/pipeline"
	"github.com/shaiso/Showroom/internal/render"
	"github.com/shaiso/Showroom/internal/repo"
)

// --- Fakes ---

type fakeQueue struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*domain.RenderJob
	stale    []domain.RenderJob
	claimErr error
	updates  int
}

func newFakeQueue(jobs ...*domain.RenderJob) *fakeQueue {
	q := &fakeQueue{jobs: make(map[uuid.UUID]*domain.RenderJob)}
	for _, j := range jobs {
		q.jobs[j.ID] = j
	}
	return q
}

func (q *fakeQueue) GetByID(_ context.Context, id uuid.UUID) (*domain.RenderJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *j
	return &copied, nil
}

func (q *fakeQueue) ListQueued(_ context.Context, limit int) ([]domain.RenderJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []domain.RenderJob
	for _, j := range q.jobs {
		if j.Status == domain.JobStatusQueued && len(out) < limit {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (q *fakeQueue) Claim(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.claimErr != nil {
		return q.claimErr
	}
	j, ok := q.jobs[id]
	if !ok || j.Status != domain.JobStatusQueued {
		return repo.ErrClaimLost
	}
	j.MarkProcessing()
	return nil
}

func (q *fakeQueue) Update(_ context.Context, job *domain.RenderJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.updates++
	copied := *job
	q.jobs[job.ID] = &copied
	return nil
}

func (q *fakeQueue) ListStale(_ context.Context, _ time.Duration, _ int) ([]domain.RenderJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stale, nil
}

func (q *fakeQueue) Touch(_ context.Context, _ uuid.UUID) error { return nil }

func (q *fakeQueue) stored(id uuid.UUID) domain.RenderJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return *q.jobs[id]
}

type fakeExecutor struct {
	mu        sync.Mutex
	calls     int
	failFirst int // number of leading calls that fail
	err       error
	failed    []string // messages passed to Fail
}

func (f *fakeExecutor) Execute(_ context.Context, _ *domain.RenderJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	if f.calls <= f.failFirst {
		return fmt.Errorf("attempt %d: %w", f.calls, gateway.ErrTimeout)
	}
	return nil
}

func (f *fakeExecutor) Fail(_ context.Context, _ *domain.RenderJob, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, msg)
}

func queuedJob(kind domain.JobKind) *domain.RenderJob {
	return &domain.RenderJob{
		ID:        uuid.New(),
		Kind:      kind,
		TenantID:  uuid.New(),
		AssetID:   uuid.New(),
		Status:    domain.JobStatusQueued,
		CreatedAt: time.Now(),
	}
}

func newTestWorker(q JobQueue, exec Executor) *Worker {
	r := NewRegistry()
	r.Register(domain.JobKindPrepare, exec)
	r.Register(domain.JobKindRender, exec)
	return New(Config{
		Jobs:      q,
		Registry:  r,
		RetryBase: time.Millisecond,
		RetryMax:  2 * time.Millisecond,
	})
}

// --- Worker tests ---

func TestNewDefaults(t *testing.T) {
	w := New(Config{})

	if w.pollInterval != defaultPollInterval {
		t.Errorf("expected default poll interval %v, got %v", defaultPollInterval, w.pollInterval)
	}
	if w.batchSize != defaultBatchSize {
		t.Errorf("expected default batch size %d, got %d", defaultBatchSize, w.batchSize)
	}
	if w.staleWindow != defaultStaleWindow {
		t.Errorf("expected default stale window %v, got %v", defaultStaleWindow, w.staleWindow)
	}
	if w.maxAttempts != defaultMaxAttempts {
		t.Errorf("expected default max attempts %d, got %d", defaultMaxAttempts, w.maxAttempts)
	}
	if w.registry == nil {
		t.Error("registry should be initialized")
	}
}

func TestProcessJobSuccess(t *testing.T) {
	job := queuedJob(domain.JobKindPrepare)
	q := newFakeQueue(job)
	exec := &fakeExecutor{}
	w := newTestWorker(q, exec)

	if err := w.processJob(context.Background(), job.ID); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	stored := q.stored(job.ID)
	if stored.Status != domain.JobStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", stored.Status)
	}
	if exec.calls != 1 {
		t.Errorf("executor called %d times, want 1", exec.calls)
	}
}

func TestProcessJobClaimLostIsSkipped(t *testing.T) {
	job := queuedJob(domain.JobKindPrepare)
	q := newFakeQueue(job)
	q.claimErr = repo.ErrClaimLost
	exec := &fakeExecutor{}
	w := newTestWorker(q, exec)

	if err := w.processJob(context.Background(), job.ID); err != nil {
		t.Fatalf("lost claim must not be an error: %v", err)
	}
	if exec.calls != 0 {
		t.Errorf("executor must not run after lost claim, called %d times", exec.calls)
	}
}

func TestProcessJobNotFound(t *testing.T) {
	q := newFakeQueue()
	w := newTestWorker(q, &fakeExecutor{})

	err := w.processJob(context.Background(), uuid.New())
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestProcessJobRetriesThenSucceeds(t *testing.T) {
	job := queuedJob(domain.JobKindRender)
	q := newFakeQueue(job)
	exec := &fakeExecutor{failFirst: 2}
	w := newTestWorker(q, exec)

	if err := w.processJob(context.Background(), job.ID); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	stored := q.stored(job.ID)
	if stored.Status != domain.JobStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", stored.Status)
	}
	if exec.calls != 3 {
		t.Errorf("executor called %d times, want 3", exec.calls)
	}
}

func TestProcessJobExhaustsRetries(t *testing.T) {
	job := queuedJob(domain.JobKindPrepare)
	q := newFakeQueue(job)
	exec := &fakeExecutor{err: fmt.Errorf("provider overloaded: %w", gateway.ErrRateLimited)}
	w := newTestWorker(q, exec)

	if err := w.processJob(context.Background(), job.ID); err != nil {
		t.Fatalf("terminal failure is handled, not returned: %v", err)
	}

	stored := q.stored(job.ID)
	if stored.Status != domain.JobStatusFailed {
		t.Errorf("expected FAILED, got %s", stored.Status)
	}
	if stored.Error == "" {
		t.Error("failed job should store the error text")
	}
	// initial attempt + maxAttempts retries
	if exec.calls != defaultMaxAttempts+1 {
		t.Errorf("executor called %d times, want %d", exec.calls, defaultMaxAttempts+1)
	}
	if len(exec.failed) != 1 {
		t.Errorf("Finalizer.Fail called %d times, want 1", len(exec.failed))
	}
}

func TestProcessJobPermanentErrorFailsFast(t *testing.T) {
	job := queuedJob(domain.JobKindPrepare)
	q := newFakeQueue(job)
	exec := &fakeExecutor{err: fmt.Errorf("placement set: %w", gateway.ErrBadOutput)}
	w := newTestWorker(q, exec)

	if err := w.processJob(context.Background(), job.ID); err != nil {
		t.Fatalf("terminal failure is handled, not returned: %v", err)
	}

	stored := q.stored(job.ID)
	if stored.Status != domain.JobStatusFailed {
		t.Errorf("expected FAILED, got %s", stored.Status)
	}
	if exec.calls != 1 {
		t.Errorf("executor called %d times for a permanent error, want 1", exec.calls)
	}
	if stored.RetryCount != 0 {
		t.Errorf("permanent error must not consume retries, retry_count = %d", stored.RetryCount)
	}
	if len(exec.failed) != 1 {
		t.Errorf("Finalizer.Fail called %d times, want 1", len(exec.failed))
	}
}

func TestRecoverStaleRequeues(t *testing.T) {
	fresh := queuedJob(domain.JobKindPrepare)
	fresh.Status = domain.JobStatusProcessing
	exhausted := queuedJob(domain.JobKindRender)
	exhausted.Status = domain.JobStatusProcessing
	exhausted.RetryCount = defaultMaxAttempts

	q := newFakeQueue(fresh, exhausted)
	q.stale = []domain.RenderJob{*fresh, *exhausted}
	w := newTestWorker(q, &fakeExecutor{})

	w.recoverStale(context.Background())

	if got := q.stored(fresh.ID); got.Status != domain.JobStatusQueued || got.RetryCount != 1 {
		t.Errorf("fresh stale job: status=%s retry_count=%d, want QUEUED/1", got.Status, got.RetryCount)
	}
	if got := q.stored(exhausted.ID); got.Status != domain.JobStatusFailed {
		t.Errorf("exhausted stale job: status=%s, want FAILED", got.Status)
	}
}

// --- Registry tests ---

func TestRegistryUnknownKind(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get(domain.JobKindPrepare); !errors.Is(err, ErrUnknownJobKind) {
		t.Errorf("expected ErrUnknownJobKind, got %v", err)
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	exec := &fakeExecutor{}
	r.Register(domain.JobKindRender, exec)

	got, err := r.Get(domain.JobKindRender)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != exec {
		t.Error("Get returned a different executor")
	}
}

// --- Backoff tests ---

func TestBackoffDelay(t *testing.T) {
	base := time.Second
	max := 10 * time.Second

	cases := []struct {
		retryCount int
		expected   time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second}, // capped at max
		{9, 10 * time.Second}, // stays at max
	}
	for _, tc := range cases {
		if got := backoffDelay(tc.retryCount, base, max); got != tc.expected {
			t.Errorf("retry %d: expected %v, got %v", tc.retryCount, tc.expected, got)
		}
	}
}

// --- Executor fakes ---

type fakeAssets struct {
	mu     sync.Mutex
	assets map[uuid.UUID]*domain.ProductAsset
	staged map[uuid.UUID]domain.FileRef
}

func newFakeAssets(assets ...*domain.ProductAsset) *fakeAssets {
	f := &fakeAssets{
		assets: make(map[uuid.UUID]*domain.ProductAsset),
		staged: make(map[uuid.UUID]domain.FileRef),
	}
	for _, a := range assets {
		f.assets[a.ID] = a
	}
	return f
}

func (f *fakeAssets) GetByID(_ context.Context, id uuid.UUID) (*domain.ProductAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assets[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAssets) Claim(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assets[id]
	if !ok || a.Status != domain.AssetStatusPreparing {
		return repo.ErrClaimLost
	}
	a.MarkProcessing()
	return nil
}

func (f *fakeAssets) Update(_ context.Context, a *domain.ProductAsset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *a
	f.assets[a.ID] = &copied
	return nil
}

func (f *fakeAssets) UpdateStagedFile(_ context.Context, id uuid.UUID, ref domain.FileRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staged[id] = ref
	if a, ok := f.assets[id]; ok {
		a.StagedFile = ref
	}
	return nil
}

func (f *fakeAssets) stored(id uuid.UUID) domain.ProductAsset {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.assets[id]
}

type fakeStager struct {
	ref domain.FileRef
	err error
}

func (f *fakeStager) GetOrRefresh(_ context.Context, existing domain.FileRef, _ filecache.Loader, _, _ string) (domain.FileRef, error) {
	if f.err != nil {
		return domain.FileRef{}, f.err
	}
	if !existing.IsZero() {
		return existing, nil
	}
	return f.ref, nil
}

type fakeObjects struct{}

func (fakeObjects) Get(string) ([]byte, error) { return []byte("image-bytes"), nil }

type fakePreparer struct {
	err error
}

func (f *fakePreparer) Prepare(_ context.Context, _ pipeline.ExtractInput, _ *domain.FactsPatch) (*domain.ProductFacts, *domain.ProductFacts, *domain.PlacementSet, error) {
	if f.err != nil {
		return nil, nil, nil, f.err
	}
	facts := &domain.ProductFacts{Identity: "floor lamp", ScaleClass: "medium"}
	set := &domain.PlacementSet{ProductDescription: "a lamp"}
	for i := 0; i < domain.PlacementCount; i++ {
		set.Placements = append(set.Placements, domain.Placement{
			ID:          fmt.Sprintf("p%d", i),
			Name:        "spot",
			Instruction: "place it",
		})
	}
	return facts, facts, set, nil
}

func preparingAsset() *domain.ProductAsset {
	return &domain.ProductAsset{
		ID:             uuid.New(),
		TenantID:       uuid.New(),
		ProductID:      "prod-1",
		SourceImageKey: "tenants/t/products/p/source.png",
		Card:           domain.ProductCard{Title: "Arc Lamp"},
		Status:         domain.AssetStatusPreparing,
		CreatedAt:      time.Now(),
	}
}

// --- PrepareExecutor tests ---

func TestPrepareExecutorMarksAssetReady(t *testing.T) {
	a := preparingAsset()
	assets := newFakeAssets(a)
	stager := &fakeStager{ref: domain.FileRef{Ref: "files/abc", ExpiresAt: time.Now().Add(47 * time.Hour)}}
	exec := NewPrepareExecutor(assets, fakeObjects{}, stager, &fakePreparer{}, nil, nil)

	job := queuedJob(domain.JobKindPrepare)
	job.AssetID = a.ID
	if err := exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	stored := assets.stored(a.ID)
	if stored.Status != domain.AssetStatusReady {
		t.Errorf("expected READY, got %s", stored.Status)
	}
	if stored.ResolvedFacts == nil || stored.Placements == nil {
		t.Error("ready asset must carry resolved facts and placements")
	}
	if stored.StagedFile.IsZero() {
		t.Error("staged ref should be saved on the asset")
	}
}

func TestPrepareExecutorRollsBackOnTransientError(t *testing.T) {
	a := preparingAsset()
	assets := newFakeAssets(a)
	stager := &fakeStager{ref: domain.FileRef{Ref: "files/abc", ExpiresAt: time.Now().Add(47 * time.Hour)}}
	preparer := &fakePreparer{err: fmt.Errorf("provider busy: %w", gateway.ErrRateLimited)}
	exec := NewPrepareExecutor(assets, fakeObjects{}, stager, preparer, nil, nil)

	job := queuedJob(domain.JobKindPrepare)
	job.AssetID = a.ID
	if err := exec.Execute(context.Background(), job); err == nil {
		t.Fatal("expected pipeline error")
	}

	stored := assets.stored(a.ID)
	if stored.Status != domain.AssetStatusPreparing {
		t.Errorf("asset should roll back to PREPARING, got %s", stored.Status)
	}
	if stored.RetryCount != 1 {
		t.Errorf("retry_count = %d, want 1", stored.RetryCount)
	}
}

func TestPrepareExecutorPermanentErrorSkipsRollback(t *testing.T) {
	a := preparingAsset()
	assets := newFakeAssets(a)
	stager := &fakeStager{ref: domain.FileRef{Ref: "files/abc", ExpiresAt: time.Now().Add(47 * time.Hour)}}
	preparer := &fakePreparer{err: fmt.Errorf("placement set: %w", gateway.ErrBadOutput)}
	exec := NewPrepareExecutor(assets, fakeObjects{}, stager, preparer, nil, nil)

	job := queuedJob(domain.JobKindPrepare)
	job.AssetID = a.ID
	if err := exec.Execute(context.Background(), job); err == nil {
		t.Fatal("expected pipeline error")
	}

	// no rollback: there will be no second attempt, Fail finalizes the asset
	stored := assets.stored(a.ID)
	if stored.Status != domain.AssetStatusProcessing {
		t.Errorf("asset must not roll back on a permanent error, got %s", stored.Status)
	}
	if stored.RetryCount != 0 {
		t.Errorf("permanent error must not consume retries, retry_count = %d", stored.RetryCount)
	}
}

func TestPrepareExecutorSkipsReadyAsset(t *testing.T) {
	a := preparingAsset()
	facts := &domain.ProductFacts{Identity: "lamp"}
	set := &domain.PlacementSet{}
	for i := 0; i < domain.PlacementCount; i++ {
		set.Placements = append(set.Placements, domain.Placement{ID: "p", Instruction: "x"})
	}
	a.MarkReady(facts, facts, set)
	assets := newFakeAssets(a)
	preparer := &fakePreparer{err: errors.New("must not be called")}
	exec := NewPrepareExecutor(assets, fakeObjects{}, &fakeStager{}, preparer, nil, nil)

	job := queuedJob(domain.JobKindPrepare)
	job.AssetID = a.ID
	if err := exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("ready asset should be a no-op: %v", err)
	}
}

func TestPrepareExecutorFailMarksAssetFailed(t *testing.T) {
	a := preparingAsset()
	assets := newFakeAssets(a)
	exec := NewPrepareExecutor(assets, fakeObjects{}, &fakeStager{}, &fakePreparer{}, nil, nil)

	job := queuedJob(domain.JobKindPrepare)
	job.AssetID = a.ID
	exec.Fail(context.Background(), job, "retry attempts exhausted")

	stored := assets.stored(a.ID)
	if stored.Status != domain.AssetStatusFailed {
		t.Errorf("expected FAILED, got %s", stored.Status)
	}
	if stored.Error == "" {
		t.Error("failed asset should store the error text")
	}
}

// --- RenderExecutor tests ---

type fakeRooms struct {
	room   *domain.RoomSession
	staged domain.FileRef
}

func (f *fakeRooms) GetByID(_ context.Context, id uuid.UUID) (*domain.RoomSession, error) {
	if f.room == nil || f.room.ID != id {
		return nil, repo.ErrNotFound
	}
	copied := *f.room
	return &copied, nil
}

func (f *fakeRooms) UpdateStagedFile(_ context.Context, _ uuid.UUID, ref domain.FileRef) error {
	f.staged = ref
	return nil
}

type fakeRenderer struct {
	status domain.RunStatus
	called int
	input  render.Input
}

func (f *fakeRenderer) RenderAllVariants(_ context.Context, in render.Input, _ render.Callbacks) (*render.Result, error) {
	f.called++
	f.input = in
	run := &domain.RenderRun{ID: uuid.New(), Status: f.status, StartedAt: time.Now()}
	run.Succeeded = domain.PlacementCount
	return &render.Result{Run: run}, nil
}

func readyAsset() *domain.ProductAsset {
	a := preparingAsset()
	facts := &domain.ProductFacts{Identity: "lamp", ScaleClass: "medium"}
	set := &domain.PlacementSet{}
	for i := 0; i < domain.PlacementCount; i++ {
		set.Placements = append(set.Placements, domain.Placement{ID: fmt.Sprintf("p%d", i), Instruction: "x"})
	}
	a.MarkReady(facts, facts, set)
	return a
}

func TestRenderExecutorRunsEngine(t *testing.T) {
	a := readyAsset()
	room := &domain.RoomSession{
		ID:          uuid.New(),
		TenantID:    a.TenantID,
		OriginalKey: "tenants/t/rooms/r/original.jpg",
		CreatedAt:   time.Now(),
	}
	assets := newFakeAssets(a)
	rooms := &fakeRooms{room: room}
	engine := &fakeRenderer{status: domain.RunStatusCompleted}
	stager := &fakeStager{ref: domain.FileRef{Ref: "files/xyz", ExpiresAt: time.Now().Add(47 * time.Hour)}}
	exec := NewRenderExecutor(assets, rooms, fakeObjects{}, stager, engine, nil, nil)

	job := queuedJob(domain.JobKindRender)
	job.AssetID = a.ID
	job.RoomID = &room.ID
	if err := exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if engine.called != 1 {
		t.Errorf("engine called %d times, want 1", engine.called)
	}
	if engine.input.ProductImage.URI == "" || engine.input.RoomImage.URI == "" {
		t.Error("both staged images must be passed to the engine")
	}
	if engine.input.RoomImage.MIMEType != "image/jpeg" {
		t.Errorf("room mime = %s, want image/jpeg", engine.input.RoomImage.MIMEType)
	}
}

func TestRenderExecutorRejectsUnpreparedAsset(t *testing.T) {
	a := preparingAsset()
	room := &domain.RoomSession{ID: uuid.New(), OriginalKey: "k.jpg", CreatedAt: time.Now()}
	exec := NewRenderExecutor(newFakeAssets(a), &fakeRooms{room: room}, fakeObjects{}, &fakeStager{}, &fakeRenderer{}, nil, nil)

	job := queuedJob(domain.JobKindRender)
	job.AssetID = a.ID
	job.RoomID = &room.ID
	if err := exec.Execute(context.Background(), job); !errors.Is(err, ErrAssetNotReady) {
		t.Fatalf("expected ErrAssetNotReady, got %v", err)
	}
}

func TestRenderExecutorRequiresRoom(t *testing.T) {
	a := readyAsset()
	exec := NewRenderExecutor(newFakeAssets(a), &fakeRooms{}, fakeObjects{}, &fakeStager{}, &fakeRenderer{}, nil, nil)

	job := queuedJob(domain.JobKindRender)
	job.AssetID = a.ID
	if err := exec.Execute(context.Background(), job); !errors.Is(err, ErrNoRoom) {
		t.Fatalf("expected ErrNoRoom, got %v", err)
	}
}

func TestRenderExecutorFailedRunIsJobError(t *testing.T) {
	a := readyAsset()
	room := &domain.RoomSession{ID: uuid.New(), OriginalKey: "k.jpg", CreatedAt: time.Now()}
	engine := &fakeRenderer{status: domain.RunStatusFailed}
	stager := &fakeStager{ref: domain.FileRef{Ref: "files/xyz", ExpiresAt: time.Now().Add(47 * time.Hour)}}
	exec := NewRenderExecutor(newFakeAssets(a), &fakeRooms{room: room}, fakeObjects{}, stager, engine, nil, nil)

	job := queuedJob(domain.JobKindRender)
	job.AssetID = a.ID
	job.RoomID = &room.ID
	if err := exec.Execute(context.Background(), job); err == nil {
		t.Fatal("a fully failed run should fail the job")
	}
}

func TestRenderExecutorPartialRunCompletesJob(t *testing.T) {
	a := readyAsset()
	room := &domain.RoomSession{ID: uuid.New(), OriginalKey: "k.jpg", CreatedAt: time.Now()}
	engine := &fakeRenderer{status: domain.RunStatusPartial}
	stager := &fakeStager{ref: domain.FileRef{Ref: "files/xyz", ExpiresAt: time.Now().Add(47 * time.Hour)}}
	exec := NewRenderExecutor(newFakeAssets(a), &fakeRooms{room: room}, fakeObjects{}, stager, engine, nil, nil)

	job := queuedJob(domain.JobKindRender)
	job.AssetID = a.ID
	job.RoomID = &room.ID
	if err := exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("partial run is terminal, job must complete: %v", err)
	}
}
