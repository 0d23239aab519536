package inforeply

import (
	"context"

	"financing-portal/internal/messaging"
	"financing-portal/internal/models"
)

type Input struct {
	ActorID         string `json:"actorId"`
	ActorRole       string `json:"actorRole"`
	ParentMessageID string `json:"parentMessageId"`
	ApplicationID   string `json:"applicationId,omitempty"`
	Body            string `json:"body"`
}

func (i *Input) actor() models.Actor {
	return models.Actor{ID: i.ActorID, Role: models.Role(i.ActorRole)}
}

type Output struct {
	MessageID       string `json:"messageId"`
	ParentMessageID string `json:"parentMessageId"`
	ApplicationID   string `json:"applicationId"`
	ThreadStatus    string `json:"threadStatus"`
	ReplyCount      int    `json:"replyCount"`
}

type Replies interface {
	CreateReply(ctx context.Context, in messaging.Reply, actor models.Actor) (*models.Message, error)
	Thread(ctx context.Context, requestID string) (*messaging.Thread, error)
}
