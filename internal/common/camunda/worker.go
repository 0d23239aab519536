package camunda

import (
	"context"
	"time"

	"financing-portal/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

type HandlerFunc func(client worker.JobClient, job entities.Job)

// JobRecorder receives one record per handled job. Satisfied by
// *observability.Observability.
type JobRecorder interface {
	RecordJob(ctx context.Context, taskType, status string, duration time.Duration)
}

type WorkerOptions struct {
	MaxJobsActive int
	Timeout       time.Duration
	Recorder      JobRecorder
}

// Instrument wraps handler with the active-job gauge and duration histogram.
// rec may be nil.
func Instrument(taskType string, handler HandlerFunc, rec JobRecorder) HandlerFunc {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		defer func() {
			elapsed := time.Since(start)
			metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
			if rec != nil {
				rec.RecordJob(context.Background(), taskType, "handled", elapsed)
			}
		}()
		handler(client, job)
	}
}

// StartWorker opens a job worker for taskType. The returned worker must be
// closed on shutdown.
func StartWorker(client zbc.Client, taskType string, opts WorkerOptions, handler HandlerFunc, log *zap.Logger) worker.JobWorker {
	if opts.MaxJobsActive == 0 {
		opts.MaxJobsActive = 5
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	w := client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(Instrument(taskType, handler, opts.Recorder))).
		MaxJobsActive(opts.MaxJobsActive).
		Timeout(opts.Timeout).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", opts.MaxJobsActive),
		zap.Duration("timeout", opts.Timeout),
	)
	return w
}
