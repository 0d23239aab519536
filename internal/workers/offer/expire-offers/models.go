package expireoffers

import (
	"context"
	"time"

	"financing-portal/internal/workflow"
)

type Input struct {
	Limit int `json:"limit,omitempty"`
	// AsOf overrides the sweep time; timer-driven jobs leave it empty.
	AsOf *time.Time `json:"asOf,omitempty"`
}

type Output struct {
	ExpiredOfferIDs []string `json:"expiredOfferIds"`
	SkippedOfferIDs []string `json:"skippedOfferIds"`
	ExpiredCount    int      `json:"expiredCount"`
}

type Sweeper interface {
	ExpireOffers(ctx context.Context, now time.Time, limit int) (*workflow.ExpiryReport, error)
}
