package messaging

import (
	"sort"

	"financing-portal/internal/models"
)

// Thread is an info request with its replies, oldest first.
type Thread struct {
	Request models.Message      `json:"request"`
	Replies []models.Message    `json:"replies"`
	Status  models.ThreadStatus `json:"status"`
}

// DeriveStatus is RESPONDED once any reply is newer than the request.
// Adding replies never moves a thread back to PENDING.
func DeriveStatus(request models.Message, replies []models.Message) models.ThreadStatus {
	for _, r := range replies {
		if r.CreatedAt.After(request.CreatedAt) {
			return models.ThreadResponded
		}
	}
	return models.ThreadPending
}

func newThread(request models.Message, replies []models.Message) Thread {
	sorted := append([]models.Message(nil), replies...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return Thread{Request: request, Replies: sorted, Status: DeriveStatus(request, sorted)}
}
