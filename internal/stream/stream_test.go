package stream

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Showroom/internal/domain"
)

func eventNames(body string) []string {
	var names []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "event: ") {
			names = append(names, strings.TrimPrefix(line, "event: "))
		}
	}
	return names
}

func successVariant(runID uuid.UUID, id string) domain.Variant {
	return domain.Variant{
		RunID:       runID,
		PlacementID: id,
		Status:      domain.VariantStatusSuccess,
		LatencyMS:   100,
	}
}

func serveDone(s *Stream, disconnected <-chan struct{}) chan struct{} {
	done := make(chan struct{})
	go func() {
		s.Serve(disconnected)
		close(done)
	}()
	return done
}

func TestFrameOrderMatchesEnqueueOrder(t *testing.T) {
	rec := httptest.NewRecorder()
	s, err := New(rec, Config{Heartbeat: time.Hour, KeepAlive: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	done := serveDone(s, nil)

	runID := uuid.New()
	run := &domain.RenderRun{ID: runID, Status: domain.RunStatusCompleted, StartedAt: time.Now()}

	s.RunStarted(runID.String(), domain.PlacementCount)
	var ids []string
	for i := 0; i < domain.PlacementCount; i++ {
		id := fmt.Sprintf("p%d", i)
		ids = append(ids, id)
		s.Variant(successVariant(runID, id), "https://img/"+id)
	}
	s.Complete(run, ids)
	<-done

	names := eventNames(rec.Body.String())
	if names[0] != EventRunStarted {
		t.Errorf("first event = %s, want %s", names[0], EventRunStarted)
	}
	if names[len(names)-1] != EventComplete {
		t.Errorf("last event = %s, want %s", names[len(names)-1], EventComplete)
	}

	// variant frames appear in enqueue order
	var variantOrder []int
	body := rec.Body.String()
	for i := 0; i < domain.PlacementCount; i++ {
		idx := strings.Index(body, fmt.Sprintf(`"id":"p%d"`, i))
		if idx < 0 {
			t.Fatalf("variant p%d missing from stream", i)
		}
		variantOrder = append(variantOrder, idx)
	}
	for i := 1; i < len(variantOrder); i++ {
		if variantOrder[i] < variantOrder[i-1] {
			t.Fatalf("variant frames out of enqueue order: %v", variantOrder)
		}
	}
}

func TestFirstImageExactlyOnce(t *testing.T) {
	rec := httptest.NewRecorder()
	s, err := New(rec, Config{Heartbeat: time.Hour, KeepAlive: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	done := serveDone(s, nil)

	runID := uuid.New()
	s.RunStarted(runID.String(), domain.PlacementCount)
	s.Variant(domain.Variant{RunID: runID, PlacementID: "p0", Status: domain.VariantStatusFailed}, "")
	s.Variant(successVariant(runID, "p1"), "u1")
	s.Variant(successVariant(runID, "p2"), "u2")
	s.Complete(&domain.RenderRun{ID: runID, Status: domain.RunStatusPartial, StartedAt: time.Now()}, []string{"p1", "p2"})
	<-done

	count := 0
	for _, n := range eventNames(rec.Body.String()) {
		if n == EventFirstImage {
			count++
		}
	}
	if count != 1 {
		t.Errorf("first_image emitted %d times, want 1", count)
	}

	// first_image follows the first success, not the failure
	body := rec.Body.String()
	if strings.Index(body, `"id":"p1"`) > strings.Index(body, EventFirstImage+"\n") {
		t.Error("first_image emitted before its success variant frame")
	}
}

func TestExactlyOneTerminalFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	s, err := New(rec, Config{Heartbeat: time.Hour, KeepAlive: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	done := serveDone(s, nil)

	runID := uuid.New()
	run := &domain.RenderRun{ID: runID, Status: domain.RunStatusCompleted, StartedAt: time.Now()}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				s.Complete(run, nil)
			} else {
				s.Error("render_failed", "boom", "req-1", runID.String())
			}
		}(i)
	}
	wg.Wait()
	<-done

	terminals := 0
	names := eventNames(rec.Body.String())
	for _, n := range names {
		if n == EventComplete || n == EventError {
			terminals++
		}
	}
	if terminals != 1 {
		t.Fatalf("emitted %d terminal frames, want exactly 1: %v", terminals, names)
	}
	if last := names[len(names)-1]; last != EventComplete && last != EventError {
		t.Errorf("terminal frame is not last: %v", names)
	}

	// enqueues after close are ignored
	s.Variant(successVariant(runID, "late"), "u")
}

func TestNoFramesAfterCompleteUnderHotHeartbeat(t *testing.T) {
	// a near-zero heartbeat keeps a tick pending in the writer's select
	// while the terminal frame is being delivered
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		s, err := New(rec, Config{Heartbeat: time.Microsecond, KeepAlive: time.Hour})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		done := serveDone(s, nil)

		runID := uuid.New()
		s.RunStarted(runID.String(), domain.PlacementCount)
		time.Sleep(time.Millisecond)
		s.Complete(&domain.RenderRun{ID: runID, Status: domain.RunStatusCompleted, StartedAt: time.Now()}, nil)
		<-done

		names := eventNames(rec.Body.String())
		if last := names[len(names)-1]; last != EventComplete {
			t.Fatalf("iteration %d: last event = %s, want %s: %v", i, last, EventComplete, names)
		}
	}
}

func TestDisconnectDetachesWithoutBlockingProducer(t *testing.T) {
	rec := httptest.NewRecorder()
	s, err := New(rec, Config{Heartbeat: time.Hour, KeepAlive: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	disconnected := make(chan struct{})
	done := serveDone(s, disconnected)

	runID := uuid.New()
	s.RunStarted(runID.String(), domain.PlacementCount)
	close(disconnected)
	// give the writer a moment to observe the disconnect
	time.Sleep(20 * time.Millisecond)

	before := rec.Body.Len()
	for i := 0; i < domain.PlacementCount; i++ {
		s.Variant(successVariant(runID, fmt.Sprintf("p%d", i)), "u")
	}
	s.Complete(&domain.RenderRun{ID: runID, Status: domain.RunStatusCompleted, StartedAt: time.Now()}, nil)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not finish after terminal frame on a detached stream")
	}
	if rec.Body.Len() != before {
		t.Errorf("frames were written after detach: %d -> %d bytes", before, rec.Body.Len())
	}
}

func TestHeartbeatEmitsProgress(t *testing.T) {
	rec := httptest.NewRecorder()
	s, err := New(rec, Config{Heartbeat: 10 * time.Millisecond, KeepAlive: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	done := serveDone(s, nil)

	runID := uuid.New()
	s.RunStarted(runID.String(), domain.PlacementCount)
	time.Sleep(60 * time.Millisecond)
	s.Complete(&domain.RenderRun{ID: runID, Status: domain.RunStatusFailed, StartedAt: time.Now()}, nil)
	<-done

	progress := 0
	for _, n := range eventNames(rec.Body.String()) {
		if n == EventProgress {
			progress++
		}
	}
	// one immediate progress plus several heartbeat ticks
	if progress < 3 {
		t.Errorf("expected heartbeat progress frames, got %d", progress)
	}
}

func TestKeepAliveComment(t *testing.T) {
	rec := httptest.NewRecorder()
	s, err := New(rec, Config{Heartbeat: time.Hour, KeepAlive: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	done := serveDone(s, nil)

	time.Sleep(40 * time.Millisecond)
	s.Error("timeout", "x", "req", "")
	<-done

	if !strings.Contains(rec.Body.String(), ": keep-alive") {
		t.Error("keep-alive comment frame missing")
	}
}

func TestHeadersDisableBuffering(t *testing.T) {
	rec := httptest.NewRecorder()
	if _, err := New(rec, Config{}); err != nil {
		t.Fatalf("New: %v", err)
	}
	h := rec.Header()
	if got := h.Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}
	if !strings.Contains(h.Get("Cache-Control"), "no-cache") {
		t.Errorf("Cache-Control = %q", h.Get("Cache-Control"))
	}
	if h.Get("X-Accel-Buffering") != "no" {
		t.Error("X-Accel-Buffering header missing")
	}
}
