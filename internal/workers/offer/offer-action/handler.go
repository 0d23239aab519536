package offeraction

import (
	"context"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"financing-portal/internal/common/camunda"
	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/logger"
	"financing-portal/internal/common/metrics"
	"financing-portal/internal/models"
)

const TaskType = "offer-action"

type Handler struct {
	config       *Config
	offers       Offers
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, offers Offers, log logger.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		offers:       offers,
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
	actor := input.actor()
	if input.Action != ActionCreate && input.OfferID == "" {
		return nil, apperrors.NewValidationFailedError("offerId is required for " + input.Action)
	}

	var (
		offer *models.Offer
		err   error
	)
	switch input.Action {
	case ActionCreate:
		if input.ApplicationID == "" || input.Terms == nil {
			return nil, apperrors.NewValidationFailedError("applicationId and terms are required for create")
		}
		offer, err = h.offers.CreateOffer(ctx, input.ApplicationID, input.Terms.toWorkflow(), actor)
	case ActionSubmitForApproval:
		offer, err = h.offers.SubmitOfferForApproval(ctx, input.OfferID, actor)
	case ActionApprove:
		offer, err = h.offers.ApproveOffer(ctx, input.OfferID, actor)
	case ActionSend:
		offer, err = h.offers.SendOffer(ctx, input.OfferID, actor)
	case ActionAccept:
		offer, err = h.offers.AcceptOffer(ctx, input.OfferID, actor)
	case ActionReject:
		offer, err = h.offers.RejectOffer(ctx, input.OfferID, actor)
	default:
		return nil, apperrors.NewValidationFailedError(fmt.Sprintf("unknown action %q", input.Action))
	}
	if err != nil {
		return nil, err
	}

	h.logger.Info("offer action applied", map[string]interface{}{
		"offerId":       offer.ID,
		"applicationId": offer.ApplicationID,
		"action":        input.Action,
		"status":        string(offer.Status),
	})

	view := *offer
	if actor.Role == models.RoleCustomer {
		view = offer.CustomerView()
	}
	return &Output{
		OfferID:       offer.ID,
		OfferStatus:   string(offer.Status),
		ApplicationID: offer.ApplicationID,
		Offer:         &view,
	}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
