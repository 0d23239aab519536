package sendnotification

import (
	"context"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"financing-portal/internal/common/camunda"
	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/logger"
	"financing-portal/internal/common/metrics"
	"financing-portal/internal/email"
	"financing-portal/internal/models"
	"financing-portal/internal/notify"
)

const TaskType = "send-notification"

const defaultNotificationType = "APPLICATION_UPDATE"

type Handler struct {
	config       *Config
	notifier     Notifier
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, notifier Notifier, log logger.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		notifier:     notifier,
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
	if input.EventID == "" {
		input.EventID = fmt.Sprintf("job:%d", job.GetKey())
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
	if input.EventID == "" {
		return nil, apperrors.NewValidationFailedError("eventId is required")
	}

	ev := notify.Event{
		ID:            input.EventID,
		ApplicationID: input.ApplicationID,
		Title:         input.Title,
		Message:       input.Message,
		Type:          input.NotificationType,
		Link:          input.Link,
	}
	if ev.Type == "" {
		ev.Type = defaultNotificationType
	}
	for _, r := range input.Recipients {
		rec := notify.Recipient{
			UserID:   r.UserID,
			Customer: r.Customer,
			Role:     models.Role(r.Role),
			Exclude:  r.ExcludeUserID,
			Email:    r.Email || r.Customer,
		}
		if rec.UserID == "" && !rec.Customer && rec.Role == "" {
			return nil, apperrors.NewValidationFailedError("each recipient needs userId, customer or role")
		}
		ev.Recipients = append(ev.Recipients, rec)
	}
	if input.Email != nil {
		ev.Email = &notify.EmailSpec{
			Kind:    email.Kind(input.Email.Kind),
			Subject: input.Email.Subject,
			Body:    input.Email.Body,
		}
	}

	result, err := h.notifier.Notify(ctx, ev)
	if err != nil {
		return nil, err
	}

	out := &Output{
		EventID:      result.EventID,
		Created:      result.Created,
		Duplicates:   len(result.Duplicates),
		Unresolved:   result.Unresolved,
		Failed:       result.Failed,
		EmailsSent:   result.EmailsSent,
		EmailsFailed: result.EmailsFailed,
	}
	if out.Created == nil {
		out.Created = []string{}
	}
	out.AnyDelivered = len(result.Created) > 0 || result.EmailsSent > 0
	return out, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
