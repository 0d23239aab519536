package inforequest

import (
	"context"

	"financing-portal/internal/messaging"
	"financing-portal/internal/models"
)

type Input struct {
	ActorID            string   `json:"actorId"`
	ActorRole          string   `json:"actorRole"`
	ApplicationID      string   `json:"applicationId"`
	Body               string   `json:"body"`
	RequestedDocuments []string `json:"requestedDocuments,omitempty"`
}

func (i *Input) actor() models.Actor {
	return models.Actor{ID: i.ActorID, Role: models.Role(i.ActorRole)}
}

type Output struct {
	MessageID     string `json:"messageId"`
	ApplicationID string `json:"applicationId"`
	ThreadStatus  string `json:"threadStatus"`
}

type Requests interface {
	CreateRequest(ctx context.Context, in messaging.InfoRequest, actor models.Actor) (*models.Message, error)
}
