package inforeply

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"financing-portal/internal/common/camunda"
	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/logger"
	"financing-portal/internal/common/metrics"
	"financing-portal/internal/messaging"
)

const TaskType = "info-reply"

type Handler struct {
	config       *Config
	replies      Replies
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, replies Replies, log logger.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		replies:      replies,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := camunda.DecodeVariables(job, GetInputSchema(), &input); err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	if err := camunda.CompleteJob(ctx, client, job, output); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{"jobKey": job.Key, "error": err})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	reply, err := h.replies.CreateReply(ctx, messaging.Reply{
		ParentMessageID: input.ParentMessageID,
		ApplicationID:   input.ApplicationID,
		Body:            input.Body,
	}, input.actor())
	if err != nil {
		return nil, err
	}

	out := &Output{
		MessageID:       reply.ID,
		ParentMessageID: reply.ParentMessageID,
		ApplicationID:   reply.ApplicationID,
	}
	thread, err := h.replies.Thread(ctx, reply.ParentMessageID)
	if err != nil {
		// the reply is stored; a failed read only loses the summary
		h.logger.Warn("thread status unavailable", map[string]interface{}{
			"requestId": reply.ParentMessageID,
			"error":     err,
		})
		return out, nil
	}
	out.ThreadStatus = string(thread.Status)
	out.ReplyCount = len(thread.Replies)
	return out, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
