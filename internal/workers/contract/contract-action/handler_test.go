package contractaction

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

func TestHandler_Execute_Lifecycle(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger(t)
	mem := store.NewMemoryStore()

	app := &models.Application{Type: models.ApplicationTypeLeasing, Status: models.ApplicationOfferAccepted,
		CustomerID: "cust-1", ContactEmail: "maija@yritys.fi", CompanyName: "Yritys Oy", AssignedFinancier: "fin-1"}
	require.NoError(t, store.InsertModel(ctx, mem, store.TableApplications, app))
	offer := &models.Offer{ApplicationID: app.ID, FinancierID: "fin-1", Status: models.OfferAccepted,
		MonthlyPayment: 2500, TermMonths: 36}
	require.NoError(t, store.InsertModel(ctx, mem, store.TableOffers, offer))

	handler := NewHandler(DefaultConfig(), workflow.NewEngine(mem, nil, nil, log), log)
	fin := func(in Input) *Input { in.ActorID, in.ActorRole = "fin-1", "FINANCIER"; return &in }
	cust := func(in Input) *Input { in.ActorID, in.ActorRole = "cust-1", "CUSTOMER"; return &in }

	created, err := handler.Execute(ctx, fin(Input{
		Action:        ActionCreate,
		ApplicationID: app.ID,
		Lessor:        &models.Party{CompanyName: "Rahoitus Oyj"},
		LeaseObjects:  []models.LeaseObject{{BrandModel: "Volvo EC220E", IsNew: true, Price: 185000}},
	}))
	require.NoError(t, err)
	assert.Equal(t, "DRAFT", created.ContractStatus)
	assert.Empty(t, created.ContractNumber)

	numbered, err := handler.Execute(ctx, fin(Input{Action: ActionAssignNumber, ContractID: created.ContractID, ContractNumber: "2026-00A1B2"}))
	require.NoError(t, err)
	assert.Equal(t, "2026-00A1B2", numbered.ContractNumber)

	sent, err := handler.Execute(ctx, fin(Input{Action: ActionSend, ContractID: created.ContractID}))
	require.NoError(t, err)
	assert.Equal(t, "SENT", sent.ContractStatus)
	assert.Equal(t, "2026-00A1B2", sent.ContractNumber, "an assigned number survives sending")

	_, err = handler.Execute(ctx, cust(Input{Action: ActionSign, ContractID: created.ContractID,
		Signature: &Signature{SignerName: "Maija", Place: "Helsinki", Date: "2026-03-02"}}))
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	accepted, err := handler.Execute(ctx, cust(Input{Action: ActionAccept, ContractID: created.ContractID}))
	require.NoError(t, err)
	assert.Equal(t, "WAITING_SIGNATURE", accepted.ContractStatus)

	signed, err := handler.Execute(ctx, cust(Input{Action: ActionSign, ContractID: created.ContractID,
		Signature: &Signature{SignerName: "Maija Meikäläinen", Place: "Helsinki", Date: "2026-03-02"}}))
	require.NoError(t, err)
	assert.True(t, signed.Signed)

	var stored models.Application
	require.NoError(t, store.Load(ctx, mem, store.TableApplications, app.ID, &stored))
	assert.Equal(t, models.ApplicationSigned, stored.Status)

	_, err = handler.Execute(ctx, fin(Input{Action: ActionAssignNumber, ContractID: created.ContractID, ContractNumber: "2026-FFFFFF"}))
	assert.ErrorIs(t, err, apperrors.ErrContractNumberLocked)
}

func TestHandler_Execute_InputErrors(t *testing.T) {
	handler := NewHandler(DefaultConfig(), workflow.NewEngine(store.NewMemoryStore(), nil, nil, logger.NewNoOpLogger()), logger.NewTestLogger(t))

	tests := []struct {
		name  string
		input Input
	}{
		{"create without lessor", Input{Action: ActionCreate, ApplicationID: "app-1"}},
		{"send without contract", Input{Action: ActionSend}},
		{"sign without signature", Input{Action: ActionSign, ContractID: "c-1"}},
		{"unknown action", Input{Action: "archive", ContractID: "c-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.input.ActorID, tt.input.ActorRole = "fin-1", "FINANCIER"
			_, err := handler.Execute(context.Background(), &tt.input)
			assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
		})
	}
}
