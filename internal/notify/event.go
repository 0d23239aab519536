package notify

import (
	"fmt"

	"financing-portal/internal/email"
	"financing-portal/internal/models"
)

// Recipient selects who receives an event. Exactly one of UserID, Customer
// or Role should be set; they are tried in that order.
type Recipient struct {
	UserID   string
	Customer bool
	Role     models.Role
	// Exclude drops this user from a role fan-out, usually the actor.
	Exclude string
	// Email also sends the event's email to this recipient.
	Email bool
}

func User(id string) Recipient { return Recipient{UserID: id} }

func Customer() Recipient { return Recipient{Customer: true, Email: true} }

func AllWithRole(role models.Role, exclude string) Recipient {
	return Recipient{Role: role, Exclude: exclude}
}

// EmailSpec is the optional email leg of an event.
type EmailSpec struct {
	Kind    email.Kind
	Subject string
	Body    string
}

// Event is one notifiable occurrence. ID must be stable across retries of
// the same occurrence; it is the idempotency key together with the
// recipient id.
type Event struct {
	ID            string
	ApplicationID string
	Recipients    []Recipient

	Title   string
	Message string
	Type    string
	// Link overrides the role-specific deep link.
	Link          string
	ReferenceType models.EntityType
	ReferenceID   string

	Email *EmailSpec
}

func (e Event) validate() error {
	if e.ID == "" {
		return fmt.Errorf("notify: event id is required")
	}
	if e.Title == "" {
		return fmt.Errorf("notify: event %s has no title", e.ID)
	}
	if len(e.Recipients) == 0 {
		return fmt.Errorf("notify: event %s has no recipients", e.ID)
	}
	return nil
}

// DedupeKey is the notification idempotency key for one recipient.
func DedupeKey(eventID, userID string) string {
	return eventID + ":" + userID
}

// Result summarizes one Notify call.
type Result struct {
	EventID      string
	Created      []string
	Duplicates   []string
	Unresolved   int
	Failed       int
	EmailsSent   int
	EmailsFailed int
}
