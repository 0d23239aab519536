package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	awsclient "financing-portal/internal/common/aws"
	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/logger"
	"financing-portal/internal/models"
)

// SNSPublisher fans transition events out to an SNS topic. Message
// attributes carry entity type and target status so subscribers can use
// filter policies instead of parsing the body.
type SNSPublisher struct {
	client   awsclient.SNSAPI
	topicARN string
	logger   logger.Logger
}

func NewSNSPublisher(client awsclient.SNSAPI, topicARN string, log logger.Logger) *SNSPublisher {
	return &SNSPublisher{
		client:   client,
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"component": "events"}),
	}
}

func (p *SNSPublisher) Record(ctx context.Context, ev models.TransitionEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		Subject:  aws.String(fmt.Sprintf("%s %s", ev.EntityType, ev.To)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"entityType":    stringAttr(string(ev.EntityType)),
			"status":        stringAttr(string(ev.To)),
			"applicationId": stringAttr(ev.ApplicationID),
			"actorRole":     stringAttr(string(ev.Actor.Role)),
		},
	})
	if err != nil {
		return apperrors.NewExternalServiceError("sns", err)
	}

	p.logger.Debug("transition published", map[string]interface{}{
		"eventId":   ev.ID,
		"messageId": aws.ToString(out.MessageId),
	})
	return nil
}

func stringAttr(v string) types.MessageAttributeValue {
	if v == "" {
		v = "-"
	}
	return types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}
