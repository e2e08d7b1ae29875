package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Showroom/internal/domain"
	"github.com/shaiso/Showroom/internal/gateway"
	"github.com/shaiso/Showroom/internal/mq"
	"github.com/shaiso/Showroom/internal/repo"
	"github.com/shaiso/Showroom/internal/telemetry"
)

// handleJobReady обрабатывает wakeup из очереди jobs.ready.
func (w *Worker) handleJobReady(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.JobReadyPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse job.ready payload", "error", err)
		return err
	}

	w.logger.Debug("received job.ready event",
		"job_id", payload.JobID,
		"kind", payload.Kind,
	)

	if err := w.processJob(ctx, payload.JobID); err != nil {
		// Ожидаемые ситуации — не возвращаем ошибку (ack)
		if errors.Is(err, ErrJobNotFound) || errors.Is(err, ErrJobNotQueued) {
			w.logger.Debug("job not processed", "job_id", payload.JobID, "reason", err)
			return nil
		}
		w.logger.Error("failed to process job", "job_id", payload.JobID, "error", err)
		return err
	}
	return nil
}

// processJob захватывает задачу, выполняет её с retry и доводит
// до терминального статуса. Проигранный claim — не ошибка: строку
// взял другой процесс.
func (w *Worker) processJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := w.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return fmt.Errorf("get job: %w", err)
	}
	if job.IsFinished() {
		return nil
	}
	if err := w.jobs.Claim(ctx, job.ID); err != nil {
		if errors.Is(err, repo.ErrClaimLost) {
			w.logger.Debug("claim lost, skipping job", "job_id", job.ID)
			return nil
		}
		return fmt.Errorf("claim job: %w", err)
	}
	job.MarkProcessing()

	logger := telemetry.WithJobID(w.logger, job.ID.String())
	logger.Info("job started",
		"kind", job.Kind,
		"tenant_id", job.TenantID,
		"asset_id", job.AssetID,
		"retry_count", job.RetryCount,
	)

	executor, err := w.registry.Get(job.Kind)
	if err != nil {
		job.MarkFailed(err.Error())
		telemetry.JobsProcessed.WithLabelValues("failed").Inc()
		if updErr := w.jobs.Update(ctx, job); updErr != nil {
			return fmt.Errorf("update job: %w", updErr)
		}
		return err
	}

	execErr := w.executeWithRetry(ctx, executor, job)
	if execErr == nil {
		job.MarkCompleted()
		telemetry.JobsProcessed.WithLabelValues("completed").Inc()
		if err := w.jobs.Update(ctx, job); err != nil {
			return fmt.Errorf("update job to completed: %w", err)
		}
		logger.Info("job completed", "kind", job.Kind)
		return nil
	}

	msg := truncate(execErr.Error(), defaultMaxErrorLen)
	job.MarkFailed(msg)
	telemetry.JobsProcessed.WithLabelValues("failed").Inc()
	if err := w.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("update job to failed: %w", err)
	}
	if f, ok := executor.(Finalizer); ok {
		f.Fail(ctx, job, msg)
	}
	logger.Warn("job failed", "kind", job.Kind, "retry_count", job.RetryCount, "error", msg)
	return nil
}

// executeWithRetry выполняет задачу, повторяя неудачные попытки
// с экспоненциальным backoff. Повторяются только транзиентные ошибки;
// постоянная (невалидный вывод провайдера, нарушенное предусловие)
// завершает задачу с первой попытки. Claim продлевается перед каждой
// повторной попыткой, чтобы не попасть под stale recovery.
func (w *Worker) executeWithRetry(ctx context.Context, executor Executor, job *domain.RenderJob) error {
	for {
		err := executor.Execute(ctx, job)
		if err == nil {
			return nil
		}
		if !gateway.Retryable(err) {
			return err
		}
		if !job.CanRetry(w.maxAttempts) {
			return err
		}

		delay := backoffDelay(job.RetryCount, w.retryBase, w.retryMax)
		w.logger.Debug("retrying job",
			"job_id", job.ID,
			"retry_count", job.RetryCount,
			"delay", delay,
			"error", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		job.ResetForRetry()
		job.MarkProcessing()
		if updErr := w.jobs.Update(ctx, job); updErr != nil {
			return fmt.Errorf("update job for retry: %w", updErr)
		}
		telemetry.JobsProcessed.WithLabelValues("requeued").Inc()
	}
}

// backoffDelay вычисляет задержку перед попыткой retryCount+1:
// base * 2^retryCount с потолком max.
func backoffDelay(retryCount int, base, max time.Duration) time.Duration {
	delay := base
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// truncate ограничивает длину сохраняемого текста ошибки.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
