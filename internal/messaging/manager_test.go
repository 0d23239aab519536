package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"financing-portal/internal/actors"
	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/logger"
	"financing-portal/internal/email"
	"financing-portal/internal/models"
	"financing-portal/internal/notify"
	"financing-portal/internal/store"
	"financing-portal/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	customer = models.Actor{ID: "cust-1", Role: models.RoleCustomer}
	admin    = models.Actor{ID: "admin-1", Role: models.RoleIntermediary}
	fin      = models.Actor{ID: "fin-1", Role: models.RoleFinancier}
)

// flakyStore fails message inserts.
type flakyStore struct {
	*store.MemoryStore
}

func (f *flakyStore) Insert(ctx context.Context, table string, row store.Row) (store.Row, error) {
	if table == store.TableMessages {
		return nil, errors.New("disk full")
	}
	return f.MemoryStore.Insert(ctx, table, row)
}

type fixture struct {
	mem     *store.MemoryStore
	manager *Manager
	mailer  *email.LogGateway
}

func newFixture(t *testing.T, failInserts bool) *fixture {
	t.Helper()
	ctx := context.Background()
	log := logger.NewTestLogger(t)
	mem := store.NewMemoryStore()
	var s store.EntityStore = mem
	if failInserts {
		s = &flakyStore{MemoryStore: mem}
	}

	for _, p := range []models.Profile{
		{ID: "admin-1", Email: "a1@juurirahoitus.fi", Role: models.RoleIntermediary},
		{ID: "admin-2", Email: "a2@juurirahoitus.fi", Role: models.RoleIntermediary},
		{ID: "fin-1", Email: "f1@rahoittaja.fi", Role: models.RoleFinancier},
		{ID: "cust-1", Email: "maija@yritys.fi", Role: models.RoleCustomer},
	} {
		p := p
		require.NoError(t, store.InsertModel(ctx, mem, store.TableProfiles, &p))
	}

	mailer := email.NewLogGateway(log)
	dispatcher := notify.NewDispatcher(s,
		actors.NewCustomerResolver(s, nil, log),
		actors.NewDirectory(s, nil, nil, time.Minute, log),
		mailer, nil, notify.Config{BaseURL: "https://portaali.example.fi"}, log)
	engine := workflow.NewEngine(s, nil, dispatcher, log)
	return &fixture{mem: mem, manager: NewManager(engine, dispatcher, log), mailer: mailer}
}

func (f *fixture) seedApp(t *testing.T, status models.Status) *models.Application {
	t.Helper()
	app := &models.Application{
		Type:              models.ApplicationTypeLeasing,
		Status:            status,
		ContactEmail:      "MAIJA@yritys.fi",
		CompanyName:       "Yritys Oy",
		AssignedFinancier: "fin-1",
	}
	require.NoError(t, store.InsertModel(context.Background(), f.mem, store.TableApplications, app))
	return app
}

func (f *fixture) appStatus(t *testing.T, id string) models.Status {
	t.Helper()
	var app models.Application
	require.NoError(t, store.Load(context.Background(), f.mem, store.TableApplications, id, &app))
	return app.Status
}

func (f *fixture) notificationsFor(t *testing.T, userID string) []models.Notification {
	t.Helper()
	out, err := store.LoadAll[models.Notification](context.Background(), f.mem, store.TableNotifications,
		store.Filter{store.Eq("user_id", userID)})
	require.NoError(t, err)
	return out
}

func TestInfoRequestAndCustomerReply(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	app := f.seedApp(t, models.ApplicationSubmitted)

	req, err := f.manager.CreateRequest(ctx, InfoRequest{
		ApplicationID:      app.ID,
		Body:               "Toimittakaa viimeisin tilinpäätös",
		RequestedDocuments: []string{"tilinpaatos"},
	}, admin)
	require.NoError(t, err)
	assert.True(t, req.IsInfoRequest)
	assert.Equal(t, []string{"tilinpaatos"}, req.RequestedDocuments)
	assert.Equal(t, models.ApplicationInfoRequested, f.appStatus(t, app.ID))

	custNotes := f.notificationsFor(t, "cust-1")
	require.Len(t, custNotes, 1)
	assert.Equal(t, "Lisätietopyyntö", custNotes[0].Title)
	assert.Equal(t, models.EntityMessage, custNotes[0].ReferenceType)
	require.Len(t, f.mailer.Sent(), 1)
	assert.True(t, strings.Contains(f.mailer.Sent()[0].HTML, "tilinpaatos"))

	thread, err := f.manager.Thread(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ThreadPending, thread.Status)

	reply, err := f.manager.CreateReply(ctx, Reply{ParentMessageID: req.ID, ApplicationID: app.ID, Body: "Liitteenä"}, customer)
	require.NoError(t, err)
	assert.Equal(t, req.ID, reply.ParentMessageID)
	assert.True(t, reply.CreatedAt.After(req.CreatedAt))
	assert.Equal(t, models.ApplicationInfoReceived, f.appStatus(t, app.ID))

	thread, err = f.manager.Thread(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ThreadResponded, thread.Status)
	require.Len(t, thread.Replies, 1)

	assert.Len(t, f.notificationsFor(t, "admin-1"), 1, "requester is told")
	assert.Len(t, f.notificationsFor(t, "admin-2"), 1, "intermediary peers are told")
	assert.Empty(t, f.notificationsFor(t, "fin-1"))

	threads, err := f.manager.Threads(ctx, app.ID)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, models.ThreadResponded, threads[0].Status)
}

func TestReplyOnUnmatchedApplicationIsRefused(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	app := &models.Application{
		Type:              models.ApplicationTypeLeasing,
		Status:            models.ApplicationSubmitted,
		ContactEmail:      "alice@nobody.fi",
		CompanyName:       "Toinen Oy",
		AssignedFinancier: "fin-1",
	}
	require.NoError(t, store.InsertModel(ctx, f.mem, store.TableApplications, app))

	req, err := f.manager.CreateRequest(ctx, InfoRequest{ApplicationID: app.ID, Body: "Toimittakaa tilinpäätös"}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationInfoRequested, f.appStatus(t, app.ID))

	_, err = f.manager.CreateReply(ctx, Reply{ParentMessageID: req.ID, Body: "Tässä"}, customer)
	assert.ErrorIs(t, err, apperrors.ErrRoleNotPermitted)
	assert.Equal(t, models.ApplicationInfoRequested, f.appStatus(t, app.ID))

	thread, err := f.manager.Thread(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ThreadPending, thread.Status)
	assert.Empty(t, thread.Replies)
}

func TestFinancierRequestAfterAcceptedOffer(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	app := f.seedApp(t, models.ApplicationOfferAccepted)

	req, err := f.manager.CreateRequest(ctx, InfoRequest{ApplicationID: app.ID, Body: "Luottopäätöstä varten: henkilötodistus"}, fin)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationCreditDecisionPending, f.appStatus(t, app.ID))
	assert.Len(t, f.notificationsFor(t, "admin-1"), 1)

	_, err = f.manager.CreateReply(ctx, Reply{ParentMessageID: req.ID, Body: "Toimitettu"}, customer)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationCreditDecisionPending, f.appStatus(t, app.ID), "credit review is not an info wait")
	assert.Len(t, f.notificationsFor(t, "fin-1"), 1)
	assert.Len(t, f.notificationsFor(t, "admin-2"), 2)
}

func TestFollowUpRequestKeepsStatus(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	app := f.seedApp(t, models.ApplicationInfoRequested)

	_, err := f.manager.CreateRequest(ctx, InfoRequest{ApplicationID: app.ID, Body: "Vielä yksi asia"}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationInfoRequested, f.appStatus(t, app.ID))
	assert.Len(t, f.notificationsFor(t, "cust-1"), 1)
}

func TestReplyParentRules(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	app := f.seedApp(t, models.ApplicationSubmitted)
	other := f.seedApp(t, models.ApplicationSubmitted)

	req, err := f.manager.CreateRequest(ctx, InfoRequest{ApplicationID: app.ID, Body: "Tarvitsemme lisätietoja"}, admin)
	require.NoError(t, err)
	reply, err := f.manager.CreateReply(ctx, Reply{ParentMessageID: req.ID, Body: "Tässä"}, customer)
	require.NoError(t, err)

	tests := []struct {
		name string
		in   Reply
	}{
		{"missing parent", Reply{ParentMessageID: "nope", Body: "x"}},
		{"parent on another application", Reply{ParentMessageID: req.ID, ApplicationID: other.ID, Body: "x"}},
		{"parent is not a request", Reply{ParentMessageID: reply.ID, Body: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.CreateReply(ctx, tt.in, customer)
			assert.ErrorIs(t, err, apperrors.ErrInvalidParentMessage)
		})
	}

	_, err = f.manager.CreateRequest(ctx, InfoRequest{ApplicationID: app.ID, Body: "x"}, customer)
	assert.ErrorIs(t, err, apperrors.ErrRoleNotPermitted)
	_, err = f.manager.CreateRequest(ctx, InfoRequest{ApplicationID: app.ID, Body: "  "}, admin)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestFailedMessageInsertRevertsStatus(t *testing.T) {
	f := newFixture(t, true)
	app := f.seedApp(t, models.ApplicationSubmitted)

	_, err := f.manager.CreateRequest(context.Background(), InfoRequest{ApplicationID: app.ID, Body: "Lisätietoja"}, admin)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeDatabaseInsertFailed, apperrors.CodeOf(err))
	assert.Equal(t, models.ApplicationSubmitted, f.appStatus(t, app.ID))
	assert.Empty(t, f.notificationsFor(t, "cust-1"))
}

func TestDeriveStatus(t *testing.T) {
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	request := models.Message{ID: "r", IsInfoRequest: true, CreatedAt: base}

	assert.Equal(t, models.ThreadPending, DeriveStatus(request, nil))
	assert.Equal(t, models.ThreadPending, DeriveStatus(request, []models.Message{{CreatedAt: base}}),
		"a reply at the same instant does not count")

	replies := []models.Message{{CreatedAt: base.Add(time.Minute)}}
	assert.Equal(t, models.ThreadResponded, DeriveStatus(request, replies))

	replies = append(replies, models.Message{CreatedAt: base.Add(-time.Minute)})
	assert.Equal(t, models.ThreadResponded, DeriveStatus(request, replies), "more replies never reopen a thread")
}
