package sendnotification

import (
	"context"

	"financing-portal/internal/notify"
)

type RecipientInput struct {
	UserID        string `json:"userId,omitempty"`
	Customer      bool   `json:"customer,omitempty"`
	Role          string `json:"role,omitempty"`
	ExcludeUserID string `json:"excludeUserId,omitempty"`
	Email         bool   `json:"email,omitempty"`
}

type EmailInput struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

type Input struct {
	// EventID defaults to the job key, which stays the same across retries.
	EventID          string           `json:"eventId,omitempty"`
	ApplicationID    string           `json:"applicationId"`
	Title            string           `json:"title"`
	Message          string           `json:"message,omitempty"`
	NotificationType string           `json:"notificationType,omitempty"`
	Link             string           `json:"link,omitempty"`
	Recipients       []RecipientInput `json:"recipients"`
	Email            *EmailInput      `json:"email,omitempty"`
}

type Output struct {
	EventID      string   `json:"eventId"`
	Created      []string `json:"createdNotificationIds"`
	Duplicates   int      `json:"duplicates"`
	Unresolved   int      `json:"unresolved"`
	Failed       int      `json:"failed"`
	EmailsSent   int      `json:"emailsSent"`
	EmailsFailed int      `json:"emailsFailed"`
	AnyDelivered bool     `json:"anyDelivered"`
}

type Notifier interface {
	Notify(ctx context.Context, ev notify.Event) (*notify.Result, error)
}
