package sendnotification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financing-portal/internal/actors"
	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/logger"
	"financing-portal/internal/email"
	"financing-portal/internal/models"
	"financing-portal/internal/notify"
	"financing-portal/internal/store"
)

func setup(t *testing.T) (*Handler, *email.LogGateway, string) {
	t.Helper()
	ctx := context.Background()
	log := logger.NewTestLogger(t)
	mem := store.NewMemoryStore()
	for _, p := range []models.Profile{
		{ID: "admin-1", Email: "a1@juurirahoitus.fi", Role: models.RoleIntermediary},
		{ID: "admin-2", Email: "a2@juurirahoitus.fi", Role: models.RoleIntermediary},
		{ID: "cust-1", Email: "maija@yritys.fi", Role: models.RoleCustomer},
	} {
		p := p
		require.NoError(t, store.InsertModel(ctx, mem, store.TableProfiles, &p))
	}
	app := &models.Application{Type: models.ApplicationTypeLeasing, Status: models.ApplicationSubmitted,
		ReferenceNumber: "JR-20260302-a1b2c3", CustomerID: "cust-1", ContactEmail: "maija@yritys.fi", CompanyName: "Yritys Oy"}
	require.NoError(t, store.InsertModel(ctx, mem, store.TableApplications, app))

	mailer := email.NewLogGateway(log)
	dispatcher := notify.NewDispatcher(mem,
		actors.NewCustomerResolver(mem, nil, log),
		actors.NewDirectory(mem, nil, nil, time.Minute, log),
		mailer, nil, notify.Config{BaseURL: "https://portaali.example.fi"}, log)
	return NewHandler(DefaultConfig(), dispatcher, log), mailer, app.ID
}

func TestHandler_Execute_DeliversOnce(t *testing.T) {
	handler, mailer, appID := setup(t)
	ctx := context.Background()

	input := &Input{
		EventID:       "job:4242",
		ApplicationID: appID,
		Title:         "Muistutus",
		Message:       "Hakemuksesi odottaa toimenpiteitä",
		Recipients: []RecipientInput{
			{Customer: true},
			{Role: "ADMIN", ExcludeUserID: "admin-1"},
		},
		Email: &EmailInput{Kind: "GENERIC", Body: "Kirjaudu portaaliin jatkaaksesi."},
	}

	out, err := handler.Execute(ctx, input)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cust-1", "admin-2"}, out.Created)
	assert.Equal(t, 1, out.EmailsSent)
	assert.True(t, out.AnyDelivered)
	require.Len(t, mailer.Sent(), 1)
	assert.Equal(t, "maija@yritys.fi", mailer.Sent()[0].To)

	again, err := handler.Execute(ctx, input)
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Equal(t, 2, again.Duplicates)
	assert.Len(t, mailer.Sent(), 1, "a retried job does not email twice")
}

func TestHandler_Execute_Validation(t *testing.T) {
	handler, _, appID := setup(t)

	tests := []struct {
		name  string
		input Input
	}{
		{"missing event id", Input{ApplicationID: appID, Title: "x", Recipients: []RecipientInput{{UserID: "admin-1"}}}},
		{"empty recipient", Input{EventID: "e1", ApplicationID: appID, Title: "x", Recipients: []RecipientInput{{Email: true}}}},
		{"no title", Input{EventID: "e1", ApplicationID: appID, Recipients: []RecipientInput{{UserID: "admin-1"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := handler.Execute(context.Background(), &tt.input)
			assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
		})
	}
}
