package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Showroom/internal/domain"
	"github.com/shaiso/Showroom/internal/gateway"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	// errByPlacement fails calls for specific placement ids.
	errByPlacement map[string]error
	// errAll fails every call.
	errAll error
	delay  time.Duration
}

func (f *fakeProvider) GenerateComposite(ctx context.Context, prompt string, _ []gateway.StagedImage, _ string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.errAll != nil {
		return nil, f.errAll
	}
	for id, err := range f.errByPlacement {
		if containsPlacement(prompt, id) {
			return nil, err
		}
	}
	return []byte("image-bytes"), nil
}

func containsPlacement(prompt, id string) bool {
	return id != "" && strings.Contains(prompt, "near-"+id)
}

type fakeStore struct {
	mu       sync.Mutex
	runs     []*domain.RenderRun
	variants []domain.Variant
	quota    int
	quotaErr error
	final    []*domain.RenderRun
}

func (f *fakeStore) CreateRun(_ context.Context, run *domain.RenderRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeStore) InsertVariant(_ context.Context, v *domain.Variant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.variants = append(f.variants, *v)
	return nil
}

func (f *fakeStore) FinalizeRun(_ context.Context, run *domain.RenderRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.final = append(f.final, run)
	return nil
}

func (f *fakeStore) IncrementQuota(_ context.Context, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quotaErr != nil {
		return f.quotaErr
	}
	f.quota++
	return nil
}

type fakeSink struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakeSink) Put(key string, _ []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	return nil
}

type openAdmission struct{}

func (openAdmission) AcquireSlot(context.Context) (func(), error) {
	return func() {}, nil
}

func testPlacements() *domain.PlacementSet {
	set := &domain.PlacementSet{ProductDescription: "a lamp"}
	for i := 0; i < domain.PlacementCount; i++ {
		id := fmt.Sprintf("p%d", i)
		set.Placements = append(set.Placements, domain.Placement{
			ID:          id,
			Name:        "spot " + id,
			Instruction: "place near-" + id,
		})
	}
	return set
}

func testInput() Input {
	return Input{
		TenantID:     uuid.New(),
		AssetID:      uuid.New(),
		RoomID:       uuid.New(),
		ProductImage: gateway.StagedImage{URI: "files/product", MIMEType: "image/png"},
		RoomImage:    gateway.StagedImage{URI: "files/room", MIMEType: "image/jpeg"},
		Facts:        &domain.ProductFacts{Identity: "floor lamp", ScaleClass: "medium"},
		Placements:   testPlacements(),
	}
}

func newTestEngine(p Provider, s Store, sink ImageSink) *Engine {
	return New(p, s, sink, openAdmission{}, Config{VariantTimeout: time.Second})
}

func TestRenderAllVariantsAllSucceed(t *testing.T) {
	store := &fakeStore{}
	sink := &fakeSink{}
	e := newTestEngine(&fakeProvider{}, store, sink)

	var started int
	var completed []domain.Variant
	cb := Callbacks{
		OnRunStarted: func(info RunInfo) {
			started++
			if info.VariantCount != domain.PlacementCount {
				t.Errorf("unexpected variant count %d", info.VariantCount)
			}
		},
		OnVariantCompleted: func(v domain.Variant) { completed = append(completed, v) },
	}

	result, err := e.RenderAllVariants(context.Background(), testInput(), cb)
	if err != nil {
		t.Fatalf("RenderAllVariants: %v", err)
	}

	if result.Run.Status != domain.RunStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", result.Run.Status)
	}
	if len(result.Variants) != domain.PlacementCount {
		t.Fatalf("expected %d variants, got %d", domain.PlacementCount, len(result.Variants))
	}
	for _, v := range result.Variants {
		if v.Status != domain.VariantStatusSuccess {
			t.Errorf("variant %s: expected SUCCESS, got %s", v.PlacementID, v.Status)
		}
		if v.ImageKey == "" {
			t.Errorf("variant %s: missing image key", v.PlacementID)
		}
	}
	if started != 1 {
		t.Errorf("OnRunStarted fired %d times", started)
	}
	if len(completed) != domain.PlacementCount {
		t.Errorf("OnVariantCompleted fired %d times", len(completed))
	}
	if store.quota != 1 {
		t.Errorf("quota incremented %d times, want 1", store.quota)
	}
	if len(store.variants) != domain.PlacementCount {
		t.Errorf("persisted %d variants, want %d", len(store.variants), domain.PlacementCount)
	}
	if len(store.final) != 1 {
		t.Errorf("run finalized %d times", len(store.final))
	}
}

func TestRenderAllVariantsAllTimeout(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(&fakeProvider{errAll: gateway.ErrTimeout}, store, &fakeSink{})

	result, err := e.RenderAllVariants(context.Background(), testInput(), Callbacks{})
	if err != nil {
		t.Fatalf("RenderAllVariants: %v", err)
	}

	if result.Run.Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", result.Run.Status)
	}
	if result.Run.TimedOut != domain.PlacementCount {
		t.Errorf("expected %d timeouts, got %d", domain.PlacementCount, result.Run.TimedOut)
	}
	for _, v := range result.Variants {
		if v.Status != domain.VariantStatusTimeout || v.ErrorCode != "timeout" {
			t.Errorf("variant %s: status=%s code=%s", v.PlacementID, v.Status, v.ErrorCode)
		}
	}
	// quota is charged even when every variant fails
	if store.quota != 1 {
		t.Errorf("quota incremented %d times, want 1", store.quota)
	}
}

func TestRenderAllVariantsPartialFailure(t *testing.T) {
	provider := &fakeProvider{errByPlacement: map[string]error{
		"p2": errors.New("boom"),
		"p5": gateway.ErrTimeout,
	}}
	store := &fakeStore{}
	e := newTestEngine(provider, store, &fakeSink{})

	result, err := e.RenderAllVariants(context.Background(), testInput(), Callbacks{})
	if err != nil {
		t.Fatalf("RenderAllVariants: %v", err)
	}

	if result.Run.Status != domain.RunStatusPartial {
		t.Errorf("expected PARTIAL, got %s", result.Run.Status)
	}
	if result.Run.Succeeded != domain.PlacementCount-2 {
		t.Errorf("expected %d successes, got %d", domain.PlacementCount-2, result.Run.Succeeded)
	}
	if result.Run.Failed != 1 || result.Run.TimedOut != 1 {
		t.Errorf("failed=%d timed_out=%d", result.Run.Failed, result.Run.TimedOut)
	}
	if store.quota != 1 {
		t.Errorf("quota incremented %d times, want 1", store.quota)
	}
}

func TestRenderVariantStorageErrorIsFailed(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(&fakeProvider{}, store, &fakeSink{err: errors.New("bucket gone")})

	result, err := e.RenderAllVariants(context.Background(), testInput(), Callbacks{})
	if err != nil {
		t.Fatalf("RenderAllVariants: %v", err)
	}
	if result.Run.Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", result.Run.Status)
	}
	for _, v := range result.Variants {
		if v.ErrorCode != "storage_error" {
			t.Errorf("variant %s: code=%s", v.PlacementID, v.ErrorCode)
		}
	}
}

func TestRenderAllVariantsRejectsBadPlacementSet(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(&fakeProvider{}, store, &fakeSink{})

	in := testInput()
	in.Placements = &domain.PlacementSet{Placements: in.Placements.Placements[:5]}
	if _, err := e.RenderAllVariants(context.Background(), in, Callbacks{}); err == nil {
		t.Fatal("expected validation error for 5-entry placement set")
	}
	if len(store.runs) != 0 || store.quota != 0 {
		t.Errorf("invalid input must not create a run or charge quota: runs=%d quota=%d", len(store.runs), store.quota)
	}
}

func TestQuotaFailureFinalizesCreatedRun(t *testing.T) {
	store := &fakeStore{quotaErr: errors.New("tenant repo down")}
	e := newTestEngine(&fakeProvider{}, store, &fakeSink{})

	var started int
	cb := Callbacks{OnRunStarted: func(RunInfo) { started++ }}
	if _, err := e.RenderAllVariants(context.Background(), testInput(), cb); err == nil {
		t.Fatal("expected quota error")
	}

	if started != 0 {
		t.Errorf("OnRunStarted fired %d times on a rejected run", started)
	}
	if len(store.variants) != 0 {
		t.Errorf("persisted %d variants, want 0", len(store.variants))
	}
	// the created run row must not be left in running
	if len(store.final) != 1 {
		t.Fatalf("run finalized %d times, want 1", len(store.final))
	}
	final := store.final[0]
	if final.Status != domain.RunStatusFailed {
		t.Errorf("finalized status = %s, want %s", final.Status, domain.RunStatusFailed)
	}
	if final.FinishedAt == nil {
		t.Error("finalized run has no finish time")
	}
}

func TestOnRunStartedPrecedesDispatch(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(&fakeProvider{}, store, &fakeSink{})

	var mu sync.Mutex
	var events []string
	cb := Callbacks{
		OnRunStarted: func(RunInfo) {
			mu.Lock()
			events = append(events, "started")
			mu.Unlock()
		},
		OnVariantCompleted: func(domain.Variant) {
			mu.Lock()
			events = append(events, "variant")
			mu.Unlock()
		},
	}

	if _, err := e.RenderAllVariants(context.Background(), testInput(), cb); err != nil {
		t.Fatalf("RenderAllVariants: %v", err)
	}
	if len(events) == 0 || events[0] != "started" {
		t.Fatalf("OnRunStarted must precede variant callbacks: %v", events)
	}
}

func TestStartContinuesAfterCallerCancel(t *testing.T) {
	store := &fakeStore{}
	provider := &fakeProvider{delay: 20 * time.Millisecond}
	e := newTestEngine(provider, store, &fakeSink{})

	done := make(chan struct{})
	var got int
	var mu sync.Mutex
	cb := Callbacks{
		OnVariantCompleted: func(domain.Variant) {
			mu.Lock()
			got++
			n := got
			mu.Unlock()
			if n == domain.PlacementCount {
				close(done)
			}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	runID, err := e.Start(ctx, testInput(), cb)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if runID == uuid.Nil {
		t.Fatal("Start returned nil run id")
	}
	// observer disconnects right after start
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish after caller cancelled")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.variants) != domain.PlacementCount {
		t.Errorf("persisted %d variants, want %d", len(store.variants), domain.PlacementCount)
	}
	for _, v := range store.variants {
		if v.Status != domain.VariantStatusSuccess {
			t.Errorf("variant %s should succeed despite cancelled caller, got %s", v.PlacementID, v.Status)
		}
	}
}
