package email

import (
	"context"
	"fmt"

	awsclient "financing-portal/internal/common/aws"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type SESGateway struct {
	client awsclient.SESAPI
	from   string
}

// NewSESGateway sends from "Name <address>".
func NewSESGateway(client awsclient.SESAPI, fromName, fromEmail string) *SESGateway {
	from := fromEmail
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromEmail)
	}
	return &SESGateway{client: client, from: from}
}

func (g *SESGateway) Send(ctx context.Context, to, subject, html string) (string, error) {
	out, err := g.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(g.from),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(html), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ses send: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

func (g *SESGateway) Provider() string { return "ses" }
