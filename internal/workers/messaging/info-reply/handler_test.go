package inforeply

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/logger"
	"financing-portal/internal/messaging"
	"financing-portal/internal/models"
	"financing-portal/internal/store"
	"financing-portal/internal/workflow"
)

func TestHandler_Execute_AnswersRequest(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger(t)
	mem := store.NewMemoryStore()

	app := &models.Application{Type: models.ApplicationTypeLeasing, Status: models.ApplicationSubmitted,
		CustomerID: "cust-1", ContactEmail: "maija@yritys.fi", CompanyName: "Yritys Oy"}
	require.NoError(t, store.InsertModel(ctx, mem, store.TableApplications, app))

	manager := messaging.NewManager(workflow.NewEngine(mem, nil, nil, log), nil, log)
	request, err := manager.CreateRequest(ctx, messaging.InfoRequest{ApplicationID: app.ID, Body: "Toimittakaa tilinpäätös"},
		models.Actor{ID: "admin-1", Role: models.RoleIntermediary})
	require.NoError(t, err)

	handler := NewHandler(DefaultConfig(), manager, log)
	out, err := handler.Execute(ctx, &Input{ActorID: "cust-1", ActorRole: "CUSTOMER", ParentMessageID: request.ID, Body: "Liitteenä"})
	require.NoError(t, err)
	assert.Equal(t, request.ID, out.ParentMessageID)
	assert.Equal(t, app.ID, out.ApplicationID)
	assert.Equal(t, "RESPONDED", out.ThreadStatus)
	assert.Equal(t, 1, out.ReplyCount)

	var stored models.Application
	require.NoError(t, store.Load(ctx, mem, store.TableApplications, app.ID, &stored))
	assert.Equal(t, models.ApplicationInfoReceived, stored.Status)

	_, err = handler.Execute(ctx, &Input{ActorID: "cust-1", ActorRole: "CUSTOMER", ParentMessageID: out.MessageID, Body: "Lisää"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParentMessage)
}
