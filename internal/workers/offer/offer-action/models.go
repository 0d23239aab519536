package offeraction

import (
	"context"
	"time"

	"financing-portal/internal/models"
	"financing-portal/internal/workflow"
)

const (
	ActionCreate            = "create"
	ActionSubmitForApproval = "submit-for-approval"
	ActionApprove           = "approve"
	ActionSend              = "send"
	ActionAccept            = "accept"
	ActionReject            = "reject"
)

type Terms struct {
	MonthlyPayment   float64    `json:"monthlyPayment"`
	TermMonths       int        `json:"termMonths"`
	UpfrontPayment   float64    `json:"upfrontPayment,omitempty"`
	ResidualValue    float64    `json:"residualValue,omitempty"`
	OpeningFee       float64    `json:"openingFee,omitempty"`
	InvoiceFee       float64    `json:"invoiceFee,omitempty"`
	InterestOrMargin string     `json:"interestOrMargin,omitempty"`
	IncludedServices string     `json:"includedServices,omitempty"`
	NotesToCustomer  string     `json:"notesToCustomer,omitempty"`
	InternalNotes    string     `json:"internalNotes,omitempty"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
}

func (t Terms) toWorkflow() workflow.OfferTerms {
	return workflow.OfferTerms{
		MonthlyPayment:   t.MonthlyPayment,
		TermMonths:       t.TermMonths,
		UpfrontPayment:   t.UpfrontPayment,
		ResidualValue:    t.ResidualValue,
		OpeningFee:       t.OpeningFee,
		InvoiceFee:       t.InvoiceFee,
		InterestOrMargin: t.InterestOrMargin,
		IncludedServices: t.IncludedServices,
		NotesToCustomer:  t.NotesToCustomer,
		InternalNotes:    t.InternalNotes,
		ExpiresAt:        t.ExpiresAt,
	}
}

type Input struct {
	ActorID       string `json:"actorId"`
	ActorRole     string `json:"actorRole"`
	Action        string `json:"action"`
	ApplicationID string `json:"applicationId,omitempty"`
	OfferID       string `json:"offerId,omitempty"`
	Terms         *Terms `json:"terms,omitempty"`
}

func (i *Input) actor() models.Actor {
	return models.Actor{ID: i.ActorID, Role: models.Role(i.ActorRole)}
}

type Output struct {
	OfferID       string        `json:"offerId"`
	OfferStatus   string        `json:"offerStatus"`
	ApplicationID string        `json:"applicationId"`
	Offer         *models.Offer `json:"offer"`
}

type Offers interface {
	CreateOffer(ctx context.Context, appID string, terms workflow.OfferTerms, actor models.Actor) (*models.Offer, error)
	SubmitOfferForApproval(ctx context.Context, offerID string, actor models.Actor) (*models.Offer, error)
	ApproveOffer(ctx context.Context, offerID string, actor models.Actor) (*models.Offer, error)
	SendOffer(ctx context.Context, offerID string, actor models.Actor) (*models.Offer, error)
	AcceptOffer(ctx context.Context, offerID string, actor models.Actor) (*models.Offer, error)
	RejectOffer(ctx context.Context, offerID string, actor models.Actor) (*models.Offer, error)
}
