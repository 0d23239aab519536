package createapplication

import (
	"context"

	"financing-portal/internal/models"
	"financing-portal/internal/workflow"
)

type Input struct {
	ActorID              string  `json:"actorId"`
	ActorRole            string  `json:"actorRole"`
	Type                 string  `json:"type"`
	ContactEmail         string  `json:"contactEmail"`
	ContactPerson        string  `json:"contactPerson,omitempty"`
	ContactPhone         string  `json:"contactPhone,omitempty"`
	CompanyName          string  `json:"companyName"`
	BusinessID           string  `json:"businessId,omitempty"`
	EquipmentDescription string  `json:"equipmentDescription,omitempty"`
	EquipmentPrice       float64 `json:"equipmentPrice,omitempty"`
	Submit               bool    `json:"submit,omitempty"`
}

func (i *Input) actor() models.Actor {
	return models.Actor{ID: i.ActorID, Role: models.Role(i.ActorRole)}
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ReferenceNumber   string `json:"referenceNumber"`
	ApplicationStatus string `json:"applicationStatus"`
	CustomerID        string `json:"customerId,omitempty"`
}

// Applications is the part of the workflow engine this worker drives.
type Applications interface {
	CreateApplication(ctx context.Context, in workflow.NewApplication, actor models.Actor) (*models.Application, error)
}
