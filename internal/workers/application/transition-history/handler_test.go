package transitionhistory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/logger"
	"financing-portal/internal/models"
)

type mockHistory struct {
	HistoryFunc func(ctx context.Context, id string, limit int) ([]models.TransitionEvent, error)
}

func (m *mockHistory) History(ctx context.Context, id string, limit int) ([]models.TransitionEvent, error) {
	return m.HistoryFunc(ctx, id, limit)
}

func TestHandler_Execute(t *testing.T) {
	events := []models.TransitionEvent{
		{ID: "e1", EntityID: "app-1", ApplicationID: "app-1", To: models.ApplicationSubmitted},
		{ID: "e2", EntityID: "app-1", ApplicationID: "app-1", To: models.ApplicationSubmittedToFinancier},
		{ID: "e3", EntityID: "off-1", ApplicationID: "app-1", To: models.OfferDraft},
	}

	tests := []struct {
		name        string
		history     func(ctx context.Context, id string, limit int) ([]models.TransitionEvent, error)
		wantCount   int
		wantCurrent string
		wantCode    apperrors.ErrorCode
	}{
		{
			name: "application with child events",
			history: func(_ context.Context, id string, limit int) ([]models.TransitionEvent, error) {
				assert.Equal(t, "app-1", id)
				assert.Equal(t, 50, limit)
				return events, nil
			},
			wantCount:   3,
			wantCurrent: "SUBMITTED_TO_FINANCIER",
		},
		{
			name: "no history",
			history: func(context.Context, string, int) ([]models.TransitionEvent, error) {
				return []models.TransitionEvent{}, nil
			},
		},
		{
			name: "index unavailable",
			history: func(context.Context, string, int) ([]models.TransitionEvent, error) {
				return nil, apperrors.NewSearchQueryFailedError("portal-transitions", errors.New("connection refused"))
			},
			wantCode: apperrors.ErrCodeSearchQueryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(DefaultConfig(), &mockHistory{HistoryFunc: tt.history}, logger.NewTestLogger(t))
			out, err := handler.Execute(context.Background(), &Input{EntityID: "app-1", Limit: 50})
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, out.Count)
			assert.Equal(t, tt.wantCurrent, out.CurrentStatus)
		})
	}
}
