package createapplication

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"financing-portal/internal/common/camunda"
	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/logger"
	"financing-portal/internal/common/metrics"
	"financing-portal/internal/models"
	"financing-portal/internal/workflow"
)

const TaskType = "create-application"

type Handler struct {
	config       *Config
	applications Applications
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, applications Applications, log logger.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		applications: applications,
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
	app, err := h.applications.CreateApplication(ctx, workflow.NewApplication{
		Type:                 models.ApplicationType(input.Type),
		ContactEmail:         input.ContactEmail,
		ContactPerson:        input.ContactPerson,
		ContactPhone:         input.ContactPhone,
		CompanyName:          input.CompanyName,
		BusinessID:           input.BusinessID,
		EquipmentDescription: input.EquipmentDescription,
		EquipmentPrice:       input.EquipmentPrice,
		Submit:               input.Submit,
	}, input.actor())
	if err != nil {
		return nil, err
	}

	h.logger.Info("application created", map[string]interface{}{
		"applicationId":   app.ID,
		"referenceNumber": app.ReferenceNumber,
		"status":          string(app.Status),
	})
	return &Output{
		ApplicationID:     app.ID,
		ReferenceNumber:   app.ReferenceNumber,
		ApplicationStatus: string(app.Status),
		CustomerID:        app.CustomerID,
	}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
