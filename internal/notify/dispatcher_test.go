package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"financing-portal/internal/actors"
	"financing-portal/internal/common/logger"
	"financing-portal/internal/email"
	"financing-portal/internal/models"
	"financing-portal/internal/store"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingMailer struct {
	mu    sync.Mutex
	calls int
}

func (f *failingMailer) Send(context.Context, string, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return "", errors.New("smtp: 554 rejected")
}

func (f *failingMailer) Provider() string { return "smtp" }

type fixture struct {
	store      *store.MemoryStore
	mailer     *email.LogGateway
	dispatcher *Dispatcher
	app        models.Application
}

func newFixture(t *testing.T, mailer email.Gateway, guard Guard) *fixture {
	t.Helper()
	ctx := context.Background()
	log := logger.NewTestLogger(t)
	s := store.NewMemoryStore()

	for _, p := range []models.Profile{
		{ID: "admin-1", Email: "a1@juurirahoitus.fi", Role: models.RoleIntermediary},
		{ID: "admin-2", Email: "a2@juurirahoitus.fi", Role: models.RoleIntermediary},
		{ID: "fin-1", Email: "f1@rahoittaja.fi", FullName: "Fiona Financier", Role: models.RoleFinancier},
		{ID: "cust-1", Email: "maija@yritys.fi", Role: models.RoleCustomer},
	} {
		p := p
		require.NoError(t, store.InsertModel(ctx, s, store.TableProfiles, &p))
	}
	app := models.Application{
		ReferenceNumber: "JR-20260101-abcdef",
		Type:            models.ApplicationTypeLeasing,
		Status:          models.ApplicationOfferSent,
		ContactEmail:    "Maija@Yritys.fi",
		ContactPerson:   "Maija Meikäläinen",
		CompanyName:     "Yritys Oy",
	}
	require.NoError(t, store.InsertModel(ctx, s, store.TableApplications, &app))

	logMailer, _ := mailer.(*email.LogGateway)
	if mailer == nil {
		logMailer = email.NewLogGateway(log)
		mailer = logMailer
	}
	d := NewDispatcher(s,
		actors.NewCustomerResolver(s, nil, log),
		actors.NewDirectory(s, nil, nil, time.Minute, log),
		mailer, guard,
		Config{BaseURL: "https://portaali.example.fi/", Concurrency: 2},
		log)
	return &fixture{store: s, mailer: logMailer, dispatcher: d, app: app}
}

func (f *fixture) notifications(t *testing.T) []models.Notification {
	t.Helper()
	out, err := store.LoadAll[models.Notification](context.Background(), f.store, store.TableNotifications, nil, store.OldestFirst())
	require.NoError(t, err)
	return out
}

func TestNotify_RoleFanOutIsIdempotent(t *testing.T) {
	f := newFixture(t, nil, nil)
	ev := Event{
		ID:            "evt-1",
		ApplicationID: f.app.ID,
		Recipients:    []Recipient{AllWithRole(models.RoleIntermediary, "admin-2"), User("fin-1")},
		Title:         "Tarjous hyväksytty",
		Message:       "Asiakas hyväksyi tarjouksen",
	}

	res, err := f.dispatcher.Notify(context.Background(), ev)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"admin-1", "fin-1"}, res.Created)

	res, err = f.dispatcher.Notify(context.Background(), ev)
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.ElementsMatch(t, []string{"admin-1", "fin-1"}, res.Duplicates)

	notes := f.notifications(t)
	require.Len(t, notes, 2)
	for _, n := range notes {
		assert.Equal(t, DedupeKey("evt-1", n.UserID), n.DedupeKey)
		assert.Equal(t, models.EntityApplication, n.ReferenceType)
		assert.Equal(t, f.app.ID, n.ReferenceID)
	}
	byUser := map[string]models.Notification{}
	for _, n := range notes {
		byUser[n.UserID] = n
	}
	assert.Equal(t, "https://portaali.example.fi/financier/applications/"+f.app.ID, byUser["fin-1"].Link)
	assert.Equal(t, "https://portaali.example.fi/admin/applications/"+f.app.ID, byUser["admin-1"].Link)
}

func TestNotify_CustomerGetsNotificationAndEmail(t *testing.T) {
	f := newFixture(t, nil, nil)
	res, err := f.dispatcher.Notify(context.Background(), Event{
		ID:            "evt-2",
		ApplicationID: f.app.ID,
		Recipients:    []Recipient{Customer()},
		Title:         "Uusi tarjous",
		Message:       "Olet saanut rahoitustarjouksen",
		Email:         &EmailSpec{Kind: email.KindOfferSent},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cust-1"}, res.Created)
	assert.Equal(t, 1, res.EmailsSent)

	sent := f.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Maija@Yritys.fi", sent[0].To)
	assert.Equal(t, "Uusi tarjous saatavilla! - JR-20260101-abcdef", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "/dashboard/applications/"+f.app.ID)

	var app models.Application
	require.NoError(t, store.Load(context.Background(), f.store, store.TableApplications, f.app.ID, &app))
	assert.Equal(t, "cust-1", app.CustomerID)
}

func TestNotify_UnresolvedCustomerStillGetsEmail(t *testing.T) {
	f := newFixture(t, nil, nil)
	_, err := f.store.UpdateWhere(context.Background(), store.TableApplications, f.app.ID, "",
		store.Row{"contact_email": "tuntematon@yritys.fi"})
	require.NoError(t, err)

	res, err := f.dispatcher.Notify(context.Background(), Event{
		ID:            "evt-3",
		ApplicationID: f.app.ID,
		Recipients:    []Recipient{Customer()},
		Title:         "Lisätietopyyntö",
		Email:         &EmailSpec{Kind: email.KindInfoRequest, Body: "Toimita tilinpäätös"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unresolved)
	assert.Empty(t, res.Created)
	assert.Equal(t, 1, res.EmailsSent)
	assert.Empty(t, f.notifications(t))

	sent := f.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "tuntematon@yritys.fi", sent[0].To)
	assert.Contains(t, sent[0].HTML, "Toimita tilinpäätös")
}

func TestNotify_EmailFailureKeepsNotification(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	key := guardPrefix + DedupeKey("evt-4", "cust-1")
	mock.ExpectSetNX(key, "1", time.Hour).SetVal(true)
	mock.ExpectDel(key).SetVal(1)

	mailer := &failingMailer{}
	f := newFixture(t, mailer, NewRedisGuard(rdb, time.Hour))

	res, err := f.dispatcher.Notify(context.Background(), Event{
		ID:            "evt-4",
		ApplicationID: f.app.ID,
		Recipients:    []Recipient{Customer()},
		Title:         "Sopimus allekirjoitettavana",
		Email:         &EmailSpec{Kind: email.KindContractSent},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cust-1"}, res.Created)
	assert.Equal(t, 1, res.EmailsFailed)
	assert.Equal(t, 1, mailer.calls)
	assert.Len(t, f.notifications(t), 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotify_GuardSuppressesRepeatEmail(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	key := guardPrefix + DedupeKey("evt-5", "email:tuntematon@yritys.fi")
	mock.ExpectSetNX(key, "1", time.Hour).SetVal(false)

	f := newFixture(t, nil, NewRedisGuard(rdb, time.Hour))
	_, err := f.store.UpdateWhere(context.Background(), store.TableApplications, f.app.ID, "",
		store.Row{"contact_email": "tuntematon@yritys.fi"})
	require.NoError(t, err)

	res, err := f.dispatcher.Notify(context.Background(), Event{
		ID:            "evt-5",
		ApplicationID: f.app.ID,
		Recipients:    []Recipient{Customer()},
		Title:         "Hakemus hylätty",
		Email:         &EmailSpec{Kind: email.KindRejected},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.EmailsSent)
	assert.Empty(t, f.mailer.Sent())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotify_RejectsMalformedEvents(t *testing.T) {
	f := newFixture(t, nil, nil)
	tests := []struct {
		name string
		ev   Event
	}{
		{"missing id", Event{Title: "x", Recipients: []Recipient{User("u")}}},
		{"missing title", Event{ID: "e", Recipients: []Recipient{User("u")}}},
		{"no recipients", Event{ID: "e", Title: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.dispatcher.Notify(context.Background(), tt.ev)
			assert.Error(t, err)
		})
	}
}

func TestLink(t *testing.T) {
	assert.Equal(t, "https://p.fi/dashboard/applications/a1", Link("https://p.fi/", models.RoleCustomer, "a1"))
	assert.Equal(t, "https://p.fi/admin", Link("https://p.fi", models.RoleIntermediary, ""))
	assert.Equal(t, "https://p.fi/login", Link("https://p.fi", models.RoleSystem, "a1"))
}
