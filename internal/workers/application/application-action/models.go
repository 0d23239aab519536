package applicationaction

import (
	"context"

	"financing-portal/internal/models"
)

const (
	ActionSubmit                = "submit"
	ActionAssignFinancier       = "assign-financier"
	ActionRequestCreditDecision = "request-credit-decision"
	ActionResume                = "resume"
	ActionReject                = "reject"
	ActionCancel                = "cancel"
)

type Input struct {
	ActorID       string `json:"actorId"`
	ActorRole     string `json:"actorRole"`
	ApplicationID string `json:"applicationId"`
	Action        string `json:"action"`
	FinancierID   string `json:"financierId,omitempty"`
	// ToFinancier sends a resumed application back to the assigned
	// financier instead of intermediary review.
	ToFinancier bool   `json:"toFinancier,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func (i *Input) actor() models.Actor {
	return models.Actor{ID: i.ActorID, Role: models.Role(i.ActorRole)}
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationStatus string `json:"applicationStatus"`
	AssignedFinancier string `json:"assignedFinancier,omitempty"`
}

type Applications interface {
	SubmitApplication(ctx context.Context, appID string, actor models.Actor) (*models.Application, error)
	AssignFinancier(ctx context.Context, appID, financierID string, actor models.Actor) (*models.Application, error)
	RequestCreditDecision(ctx context.Context, appID string, actor models.Actor) (*models.Application, error)
	ResumeApplication(ctx context.Context, appID string, toFinancier bool, actor models.Actor) (*models.Application, error)
	RejectApplication(ctx context.Context, appID, reason string, actor models.Actor) (*models.Application, error)
	CancelApplication(ctx context.Context, appID, reason string, actor models.Actor) (*models.Application, error)
}
