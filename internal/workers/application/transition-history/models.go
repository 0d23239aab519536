package transitionhistory

import (
	"context"

	"financing-portal/internal/models"
)

type Input struct {
	EntityID string `json:"entityId"`
	Limit    int    `json:"limit,omitempty"`
}

type Output struct {
	EntityID      string                   `json:"entityId"`
	Transitions   []models.TransitionEvent `json:"transitions"`
	Count         int                      `json:"count"`
	CurrentStatus string                   `json:"currentStatus,omitempty"`
}

// History is served by the audit index.
type History interface {
	History(ctx context.Context, id string, limit int) ([]models.TransitionEvent, error)
}
