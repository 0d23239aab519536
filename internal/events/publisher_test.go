package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/logger"
	"financing-portal/internal/models"
)

type mockSNS struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

func TestSNSPublisherRecord(t *testing.T) {
	ev := models.TransitionEvent{
		ID:            "evt-1",
		EntityType:    models.EntityContract,
		EntityID:      "con-1",
		ApplicationID: "app-1",
		From:          models.ContractDraft,
		To:            models.ContractSent,
		Actor:         models.Actor{ID: "fin-1", Role: models.RoleFinancier},
		Edge:          "contract.send",
		OccurredAt:    time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name      string
		publish   func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
		wantError bool
	}{
		{
			name: "publishes with filter attributes",
			publish: func(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
				assert.Equal(t, "arn:aws:sns:eu-north-1:123456789012:portal-transitions", aws.ToString(params.TopicArn))
				assert.Equal(t, "CONTRACT", aws.ToString(params.MessageAttributes["entityType"].StringValue))
				assert.Equal(t, "SENT", aws.ToString(params.MessageAttributes["status"].StringValue))
				assert.Equal(t, "FINANCIER", aws.ToString(params.MessageAttributes["actorRole"].StringValue))

				var decoded models.TransitionEvent
				require.NoError(t, json.Unmarshal([]byte(aws.ToString(params.Message)), &decoded))
				assert.Equal(t, ev, decoded)
				return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
			},
		},
		{
			name: "sns failure is an external service error",
			publish: func(context.Context, *sns.PublishInput, ...func(*sns.Options)) (*sns.PublishOutput, error) {
				return nil, errors.New("throttled")
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewSNSPublisher(&mockSNS{PublishFunc: tt.publish},
				"arn:aws:sns:eu-north-1:123456789012:portal-transitions", logger.NewTestLogger(t))
			err := p.Record(context.Background(), ev)
			if tt.wantError {
				require.Error(t, err)
				assert.Equal(t, apperrors.ErrorCode("EXTERNAL_SERVICE_ERROR"), apperrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
		})
	}
}
