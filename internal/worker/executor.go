package worker

import (
	"context"
	"fmt"

	"github.com/shaiso/Showroom/internal/domain"
)

// Executor — интерфейс выполнения одного типа задачи.
//
// Реализации: PrepareExecutor, RenderExecutor.
//
// Execute выполняет одну попытку. Возвращённая ошибка означает
// неудачную попытку; retry и подсчёт попыток — забота воркера.
type Executor interface {
	Execute(ctx context.Context, job *domain.RenderJob) error
}

// Finalizer — опциональное расширение Executor: вызывается один раз,
// когда задача исчерпала попытки, чтобы довести владеемые executor'ом
// строки до терминального состояния.
type Finalizer interface {
	Fail(ctx context.Context, job *domain.RenderJob, msg string)
}

// Registry — реестр executor'ов по типу задачи.
type Registry struct {
	executors map[domain.JobKind]Executor
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[domain.JobKind]Executor)}
}

// Register добавляет executor для типа задачи.
func (r *Registry) Register(kind domain.JobKind, executor Executor) {
	r.executors[kind] = executor
}

// Get возвращает executor для типа задачи.
func (r *Registry) Get(kind domain.JobKind) (Executor, error) {
	executor, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobKind, kind)
	}
	return executor, nil
}
