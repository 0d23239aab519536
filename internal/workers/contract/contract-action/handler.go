package contractaction

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
	"financing-portal/internal/workflow"
)

const TaskType = "contract-action"

type Handler struct {
	config       *Config
	contracts    Contracts
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, contracts Contracts, log logger.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		contracts:    contracts,
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
	if input.Action != ActionCreate && input.ContractID == "" {
		return nil, apperrors.NewValidationFailedError("contractId is required for " + input.Action)
	}

	var (
		contract *models.Contract
		err      error
	)
	switch input.Action {
	case ActionCreate:
		if input.ApplicationID == "" || input.Lessor == nil {
			return nil, apperrors.NewValidationFailedError("applicationId and lessor are required for create")
		}
		contract, err = h.contracts.CreateContract(ctx, input.ApplicationID, workflow.NewContract{
			OfferID:      input.OfferID,
			Lessor:       *input.Lessor,
			Lessee:       input.Lessee,
			Seller:       input.Seller,
			LeaseObjects: input.LeaseObjects,
		}, actor)
	case ActionAssignNumber:
		contract, err = h.contracts.AssignContractNumber(ctx, input.ContractID, input.ContractNumber, actor)
	case ActionSend:
		contract, err = h.contracts.SendContract(ctx, input.ContractID, actor)
	case ActionAccept:
		contract, err = h.contracts.AcceptContract(ctx, input.ContractID, actor)
	case ActionSign:
		if input.Signature == nil {
			return nil, apperrors.NewValidationFailedError("signature is required for sign")
		}
		contract, err = h.contracts.SignContract(ctx, input.ContractID, workflow.SignatureInput{
			SignerName: input.Signature.SignerName,
			Place:      input.Signature.Place,
			Date:       input.Signature.Date,
		}, actor)
	case ActionReject:
		contract, err = h.contracts.RejectContract(ctx, input.ContractID, input.Reason, actor)
	default:
		return nil, apperrors.NewValidationFailedError(fmt.Sprintf("unknown action %q", input.Action))
	}
	if err != nil {
		return nil, err
	}

	h.logger.Info("contract action applied", map[string]interface{}{
		"contractId":     contract.ID,
		"applicationId":  contract.ApplicationID,
		"action":         input.Action,
		"status":         string(contract.Status),
		"contractNumber": contract.ContractNumber,
	})
	return &Output{
		ContractID:     contract.ID,
		ContractStatus: string(contract.Status),
		ContractNumber: contract.ContractNumber,
		ApplicationID:  contract.ApplicationID,
		Signed:         contract.Status == models.ContractSigned,
	}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
