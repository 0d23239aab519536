package expireoffers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financing-portal/internal/common/logger"
	"financing-portal/internal/models"
	"financing-portal/internal/store"
	"financing-portal/internal/workflow"
)

type mockSweeper struct {
	ExpireOffersFunc func(ctx context.Context, now time.Time, limit int) (*workflow.ExpiryReport, error)
}

func (m *mockSweeper) ExpireOffers(ctx context.Context, now time.Time, limit int) (*workflow.ExpiryReport, error) {
	return m.ExpireOffersFunc(ctx, now, limit)
}

func TestHandler_Execute_Defaults(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC)
	var gotLimit int
	var gotNow time.Time
	handler := NewHandler(DefaultConfig(), &mockSweeper{
		ExpireOffersFunc: func(_ context.Context, now time.Time, limit int) (*workflow.ExpiryReport, error) {
			gotNow, gotLimit = now, limit
			return &workflow.ExpiryReport{}, nil
		},
	}, logger.NewTestLogger(t))
	handler.now = func() time.Time { return fixed }

	out, err := handler.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.Equal(t, 100, gotLimit)
	assert.Equal(t, fixed, gotNow)
	assert.Equal(t, []string{}, out.ExpiredOfferIDs)
	assert.Equal(t, 0, out.ExpiredCount)
}

func TestHandler_Execute_Sweep(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger(t)
	mem := store.NewMemoryStore()

	app := &models.Application{Type: models.ApplicationTypeLeasing, Status: models.ApplicationOfferSent,
		ContactEmail: "maija@yritys.fi", CompanyName: "Yritys Oy", AssignedFinancier: "fin-1"}
	require.NoError(t, store.InsertModel(ctx, mem, store.TableApplications, app))

	past := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	stale := &models.Offer{ApplicationID: app.ID, FinancierID: "fin-1", Status: models.OfferSent,
		MonthlyPayment: 500, TermMonths: 24, ExpiresAt: &past}
	fresh := &models.Offer{ApplicationID: app.ID, FinancierID: "fin-1", Status: models.OfferSent,
		MonthlyPayment: 480, TermMonths: 24, ExpiresAt: &future}
	require.NoError(t, store.InsertModel(ctx, mem, store.TableOffers, stale))
	require.NoError(t, store.InsertModel(ctx, mem, store.TableOffers, fresh))

	handler := NewHandler(DefaultConfig(), workflow.NewEngine(mem, nil, nil, log), log)
	asOf := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	out, err := handler.Execute(ctx, &Input{AsOf: &asOf})
	require.NoError(t, err)
	assert.Equal(t, []string{stale.ID}, out.ExpiredOfferIDs)
	assert.Equal(t, 1, out.ExpiredCount)

	var got models.Offer
	require.NoError(t, store.Load(ctx, mem, store.TableOffers, fresh.ID, &got))
	assert.Equal(t, models.OfferSent, got.Status)
}
