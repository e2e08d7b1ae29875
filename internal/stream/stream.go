package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shaiso/Showroom/internal/domain"
)

// ErrStreamingUnsupported — ResponseWriter не умеет flush.
var ErrStreamingUnsupported = errors.New("response writer does not support streaming")

// Config — настройки таймеров потока.
type Config struct {
	// Heartbeat — период progress-кадров, пока варианты в полёте.
	Heartbeat time.Duration

	// KeepAlive — период comment-кадров против idle-таймаутов прокси.
	KeepAlive time.Duration
}

// frame — один кадр очереди. Либо событие, либо comment.
// terminal помечает последний кадр потока: после его записи
// Serve возвращается, не давая таймерам вставить кадр следом.
type frame struct {
	event    string
	data     []byte
	comment  string
	terminal bool
}

// Stream — один SSE-поток. Все публичные методы потокобезопасны;
// фактическую запись выполняет единственный цикл Serve.
type Stream struct {
	w     io.Writer
	flush func()
	cfg   Config

	mu     sync.Mutex
	frames chan frame
	closed bool

	// detached — клиент ушёл или запись отказала; кадры дальше
	// молча поглощаются. Вне mu: путь записи не берёт блокировку.
	detached atomic.Bool

	total     int
	succeeded int
	failed    int
	firstSent bool
}

// New подготавливает SSE-ответ: заголовки, очередь кадров.
// Заголовки отключают буферизацию и кэширование в промежуточных узлах.
func New(w http.ResponseWriter, cfg Config) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 3 * time.Second
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 15 * time.Second
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Stream{
		w:      w,
		flush:  flusher.Flush,
		cfg:    cfg,
		frames: make(chan frame, 64),
		total:  domain.PlacementCount,
	}, nil
}

// Serve — цикл писателя. Возвращается после терминального кадра.
// disconnected сигнализирует об уходе клиента: запись прекращается,
// но цикл продолжает потреблять очередь до терминального кадра,
// чтобы продолжающийся в фоне рендер не блокировался на постановке.
func (s *Stream) Serve(disconnected <-chan struct{}) {
	heartbeat := time.NewTicker(s.cfg.Heartbeat)
	defer heartbeat.Stop()
	keepAlive := time.NewTicker(s.cfg.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case f, ok := <-s.frames:
			if !ok {
				return
			}
			s.write(f)
			if f.terminal {
				return
			}
		case <-heartbeat.C:
			s.write(frame{event: EventProgress, data: s.progressData()})
		case <-keepAlive.C:
			s.write(frame{comment: "keep-alive"})
		case <-disconnected:
			s.detached.Store(true)
			disconnected = nil
		}
	}
}

// RunStarted ставит в очередь run_started и немедленный progress.
func (s *Stream) RunStarted(runID string, variantCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = variantCount
	s.enqueue(frame{event: EventRunStarted, data: marshal(RunStartedEvent{
		RunID:        runID,
		VariantCount: variantCount,
	})})
	s.enqueue(frame{event: EventProgress, data: s.progressDataLocked()})
}

// Variant ставит в очередь кадр варианта, обновляет счётчики и на
// первом успехе добавляет first_image.
func (s *Stream) Variant(v domain.Variant, imageURL string) {
	ev := VariantEvent{
		ID:        v.PlacementID,
		Status:    string(v.Status),
		LatencyMS: v.LatencyMS,
	}
	if v.Status == domain.VariantStatusSuccess {
		ev.ImageURL = imageURL
	} else {
		ev.ErrorMessage = v.ErrorMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v.Status == domain.VariantStatusSuccess {
		s.succeeded++
	} else {
		s.failed++
	}
	s.enqueue(frame{event: EventVariant, data: marshal(ev)})
	if v.Status == domain.VariantStatusSuccess && !s.firstSent {
		s.firstSent = true
		s.enqueue(frame{event: EventFirstImage, data: marshal(FirstImageEvent{RunID: v.RunID.String()})})
	}
	s.enqueue(frame{event: EventProgress, data: s.progressDataLocked()})
}

// Complete ставит терминальный кадр завершённого run и закрывает поток.
func (s *Stream) Complete(run *domain.RenderRun, successIDs []string) {
	if successIDs == nil {
		successIDs = []string{}
	}
	s.terminal(frame{event: EventComplete, data: marshal(CompleteEvent{
		RunID:             run.ID.String(),
		Status:            string(run.Status),
		DurationMS:        run.Duration().Milliseconds(),
		SuccessVariantIDs: successIDs,
	})})
}

// Error ставит терминальный error-кадр и закрывает поток.
func (s *Stream) Error(code, message, requestID, runID string) {
	s.terminal(frame{event: EventError, data: marshal(ErrorEvent{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		RunID:     runID,
	})})
}

// terminal ставит кадр и закрывает очередь. Только первый вызов
// имеет эффект: терминальный кадр ровно один.
func (s *Stream) terminal(f frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	f.terminal = true
	s.enqueue(f)
	s.closed = true
	close(s.frames)
}

// enqueue ставит кадр в очередь. Вызывается под mu.
func (s *Stream) enqueue(f frame) {
	if s.closed {
		return
	}
	s.frames <- f
}

// write пишет кадр в соединение. После отказа записи или ухода
// клиента поток отсоединён: кадры молча поглощаются.
func (s *Stream) write(f frame) {
	if s.detached.Load() {
		return
	}

	var err error
	if f.comment != "" {
		_, err = fmt.Fprintf(s.w, ": %s\n\n", f.comment)
	} else {
		_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", f.event, f.data)
	}
	if err != nil {
		s.detached.Store(true)
		return
	}
	s.flush()
}

func (s *Stream) progressData() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressDataLocked()
}

func (s *Stream) progressDataLocked() []byte {
	return marshal(ProgressEvent{
		Total:     s.total,
		Succeeded: s.succeeded,
		Failed:    s.failed,
		InFlight:  s.total - s.succeeded - s.failed,
	})
}

func marshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshal sse event", "error", err)
		return []byte("{}")
	}
	return data
}
