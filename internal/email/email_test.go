package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"financing-portal/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name        string
		kind        Kind
		data        Data
		wantSubject string
		contains    []string
		excludes    []string
	}{
		{
			name:        "offer with reference and link",
			kind:        KindOfferSent,
			data:        Data{CustomerName: "Maija", CompanyName: "Rakennus Oy", ReferenceNumber: "JR-20260301-ab12cd", Link: "https://portal.example/customer/applications/a1"},
			wantSubject: "Uusi tarjous saatavilla! - JR-20260301-ab12cd",
			contains:    []string{"Hei Maija,", "Uusi tarjous yrityksellenne Rakennus Oy", "Kirjaudu portaaliin", "JR-20260301-ab12cd"},
		},
		{
			name:        "info request carries custom body",
			kind:        KindInfoRequest,
			data:        Data{CustomBody: "Toimittakaa tilinpäätös <2025>"},
			wantSubject: "Lisätietopyyntö hakemukseesi",
			contains:    []string{"Hei,", "Toimittakaa tilinpäätös &lt;2025&gt;"},
			excludes:    []string{"<2025>"},
		},
		{
			name:        "rejection has no login button",
			kind:        KindRejected,
			data:        Data{CustomerName: "Maija", Link: "https://portal.example"},
			wantSubject: "Hakemuksen tila päivitetty",
			contains:    []string{"#dc2626", "Rahoituspäätös"},
			excludes:    []string{"Kirjaudu portaaliin"},
		},
		{
			name:        "unknown kind falls back to generic",
			kind:        Kind("SOMETHING"),
			data:        Data{Subject: "Tarjous hyväksytty"},
			wantSubject: "Tarjous hyväksytty",
			contains:    []string{"Sinulle on uusi ilmoitus"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, body := Render(tt.kind, tt.data)
			assert.Equal(t, tt.wantSubject, subject)
			for _, s := range tt.contains {
				assert.Contains(t, body, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, body, s)
			}
			assert.NotContains(t, body, "{{")
		})
	}
}

func TestRenderTemplate_DropsMissingPlaceholders(t *testing.T) {
	out := renderTemplate("Hei {{name}}, {{missing}}viite {{ref}}", map[string]interface{}{"name": "Maija", "ref": 42})
	assert.Equal(t, "Hei Maija, viite 42", out)
}

type mockSES struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *mockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

func TestSESGateway_Send(t *testing.T) {
	var captured *ses.SendEmailInput
	gw := NewSESGateway(&mockSES{SendEmailFunc: func(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		captured = params
		return &ses.SendEmailOutput{MessageId: aws.String("ses-123")}, nil
	}}, "Juuri Rahoitus", "noreply@juurirahoitus.fi")

	id, err := gw.Send(context.Background(), "maija@yritys.fi", "Aihe", "<p>runko</p>")
	require.NoError(t, err)
	assert.Equal(t, "ses-123", id)
	assert.Equal(t, "ses", gw.Provider())
	require.NotNil(t, captured)
	assert.Equal(t, "Juuri Rahoitus <noreply@juurirahoitus.fi>", aws.ToString(captured.Source))
	assert.Equal(t, []string{"maija@yritys.fi"}, captured.Destination.ToAddresses)
	assert.Equal(t, "<p>runko</p>", aws.ToString(captured.Message.Body.Html.Data))
}

func TestSESGateway_SendError(t *testing.T) {
	gw := NewSESGateway(&mockSES{SendEmailFunc: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		return nil, errors.New("throttled")
	}}, "", "noreply@juurirahoitus.fi")

	_, err := gw.Send(context.Background(), "maija@yritys.fi", "Aihe", "x")
	assert.ErrorContains(t, err, "throttled")
}

func TestSMTPGateway_Send(t *testing.T) {
	gw := NewSMTPGateway(SMTPConfig{Host: "smtp.example", Port: 2525, From: "Juuri Rahoitus <noreply@juurirahoitus.fi>"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	gw.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.Nil(t, auth)
		return nil
	}

	id, err := gw.Send(context.Background(), "maija.m@yritys.fi", "Sopimus allekirjoitettavana", "<p>x</p>")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(id, ".maijam@smtp.example>"))
	assert.Equal(t, "smtp.example:2525", gotAddr)
	assert.Equal(t, "noreply@juurirahoitus.fi", gotFrom)
	assert.Equal(t, []string{"maija.m@yritys.fi"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Sopimus allekirjoitettavana\r\n")
	assert.Contains(t, string(gotMsg), "Content-Type: text/html; charset=UTF-8")
}

func TestSMTPGateway_CancelledContext(t *testing.T) {
	gw := NewSMTPGateway(SMTPConfig{Host: "smtp.example", Port: 25})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.Send(ctx, "a@b.fi", "s", "b")
	assert.Error(t, err)
}

func TestLogGateway(t *testing.T) {
	gw := NewLogGateway(logger.NewTestLogger(t))

	id, err := gw.Send(context.Background(), "maija@yritys.fi", "Aihe", "runko")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = gw.Send(context.Background(), "", "Aihe", "runko")
	assert.Error(t, err)

	sent := gw.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "maija@yritys.fi", sent[0].To)
}
