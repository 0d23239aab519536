package offeraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/logger"
	"financing-portal/internal/models"
	"financing-portal/internal/store"
	"financing-portal/internal/workflow"
)

func setup(t *testing.T) (*Handler, *store.MemoryStore, string) {
	t.Helper()
	log := logger.NewTestLogger(t)
	mem := store.NewMemoryStore()
	app := &models.Application{
		Type:              models.ApplicationTypeLeasing,
		Status:            models.ApplicationSubmittedToFinancier,
		CustomerID:        "cust-1",
		ContactEmail:      "maija@yritys.fi",
		CompanyName:       "Yritys Oy",
		AssignedFinancier: "fin-1",
	}
	require.NoError(t, store.InsertModel(context.Background(), mem, store.TableApplications, app))
	return NewHandler(DefaultConfig(), workflow.NewEngine(mem, nil, nil, log), log), mem, app.ID
}

func TestHandler_Execute_CreateSendAccept(t *testing.T) {
	handler, mem, appID := setup(t)
	ctx := context.Background()

	created, err := handler.Execute(ctx, &Input{
		ActorID: "fin-1", ActorRole: "FINANCIER", Action: ActionCreate, ApplicationID: appID,
		Terms: &Terms{MonthlyPayment: 3250, TermMonths: 48, ResidualValue: 10000, InternalNotes: "riskiluokka B"},
	})
	require.NoError(t, err)
	assert.Equal(t, "DRAFT", created.OfferStatus)
	assert.Equal(t, "riskiluokka B", created.Offer.InternalNotes)

	sent, err := handler.Execute(ctx, &Input{ActorID: "fin-1", ActorRole: "FINANCIER", Action: ActionSend, OfferID: created.OfferID})
	require.NoError(t, err)
	assert.Equal(t, "SENT", sent.OfferStatus)

	accepted, err := handler.Execute(ctx, &Input{ActorID: "cust-1", ActorRole: "CUSTOMER", Action: ActionAccept, OfferID: created.OfferID})
	require.NoError(t, err)
	assert.Equal(t, "ACCEPTED", accepted.OfferStatus)
	assert.Empty(t, accepted.Offer.InternalNotes, "customers never see internal notes")

	var app models.Application
	require.NoError(t, store.Load(ctx, mem, store.TableApplications, appID, &app))
	assert.Equal(t, models.ApplicationOfferAccepted, app.Status)
}

func TestHandler_Execute_Errors(t *testing.T) {
	handler, _, appID := setup(t)
	ctx := context.Background()

	draft, err := handler.Execute(ctx, &Input{
		ActorID: "fin-1", ActorRole: "FINANCIER", Action: ActionCreate, ApplicationID: appID,
		Terms: &Terms{MonthlyPayment: 900, TermMonths: 36},
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   Input
		wantErr error
	}{
		{"customer accepts draft", Input{ActorID: "cust-1", ActorRole: "CUSTOMER", Action: ActionAccept, OfferID: draft.OfferID}, apperrors.ErrInvalidTransition},
		{"customer creates offer", Input{ActorID: "cust-1", ActorRole: "CUSTOMER", Action: ActionCreate, ApplicationID: appID, Terms: &Terms{MonthlyPayment: 1, TermMonths: 1}}, apperrors.ErrRoleNotPermitted},
		{"create without terms", Input{ActorID: "fin-1", ActorRole: "FINANCIER", Action: ActionCreate, ApplicationID: appID}, apperrors.ErrValidationFailed},
		{"send without offer id", Input{ActorID: "fin-1", ActorRole: "FINANCIER", Action: ActionSend}, apperrors.ErrValidationFailed},
		{"unknown offer", Input{ActorID: "fin-1", ActorRole: "FINANCIER", Action: ActionSend, OfferID: "missing"}, apperrors.ErrEntityNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := handler.Execute(ctx, &tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
