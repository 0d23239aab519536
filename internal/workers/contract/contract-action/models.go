package contractaction

import (
	"context"

	"financing-portal/internal/models"
	"financing-portal/internal/workflow"
)

const (
	ActionCreate       = "create"
	ActionAssignNumber = "assign-number"
	ActionSend         = "send"
	ActionAccept       = "accept"
	ActionSign         = "sign"
	ActionReject       = "reject"
)

type Signature struct {
	SignerName string `json:"signerName"`
	Place      string `json:"place"`
	Date       string `json:"date"`
}

// Input carries party and lease object documents in their stored
// snake_case form so the process can pass them through unchanged.
type Input struct {
	ActorID        string               `json:"actorId"`
	ActorRole      string               `json:"actorRole"`
	Action         string               `json:"action"`
	ApplicationID  string               `json:"applicationId,omitempty"`
	ContractID     string               `json:"contractId,omitempty"`
	OfferID        string               `json:"offerId,omitempty"`
	Lessor         *models.Party        `json:"lessor,omitempty"`
	Lessee         *models.Party        `json:"lessee,omitempty"`
	Seller         *models.Party        `json:"seller,omitempty"`
	LeaseObjects   []models.LeaseObject `json:"leaseObjects,omitempty"`
	ContractNumber string               `json:"contractNumber,omitempty"`
	Signature      *Signature           `json:"signature,omitempty"`
	Reason         string               `json:"reason,omitempty"`
}

func (i *Input) actor() models.Actor {
	return models.Actor{ID: i.ActorID, Role: models.Role(i.ActorRole)}
}

type Output struct {
	ContractID     string `json:"contractId"`
	ContractStatus string `json:"contractStatus"`
	ContractNumber string `json:"contractNumber,omitempty"`
	ApplicationID  string `json:"applicationId"`
	Signed         bool   `json:"signed"`
}

type Contracts interface {
	CreateContract(ctx context.Context, appID string, in workflow.NewContract, actor models.Actor) (*models.Contract, error)
	AssignContractNumber(ctx context.Context, contractID, number string, actor models.Actor) (*models.Contract, error)
	SendContract(ctx context.Context, contractID string, actor models.Actor) (*models.Contract, error)
	AcceptContract(ctx context.Context, contractID string, actor models.Actor) (*models.Contract, error)
	SignContract(ctx context.Context, contractID string, sig workflow.SignatureInput, actor models.Actor) (*models.Contract, error)
	RejectContract(ctx context.Context, contractID, reason string, actor models.Actor) (*models.Contract, error)
}
