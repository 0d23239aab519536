package models

import "time"

type Offer struct {
	ID               string     `json:"id"`
	ApplicationID    string     `json:"application_id"`
	FinancierID      string     `json:"financier_id"`
	Status           Status     `json:"status"`
	MonthlyPayment   float64    `json:"monthly_payment"`
	TermMonths       int        `json:"term_months"`
	UpfrontPayment   float64    `json:"upfront_payment,omitempty"`
	ResidualValue    float64    `json:"residual_value,omitempty"`
	OpeningFee       float64    `json:"opening_fee,omitempty"`
	InvoiceFee       float64    `json:"invoice_fee,omitempty"`
	InterestOrMargin string     `json:"interest_or_margin,omitempty"`
	IncludedServices string     `json:"included_services,omitempty"`
	NotesToCustomer  string     `json:"notes_to_customer,omitempty"`
	InternalNotes    string     `json:"internal_notes,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
	RespondedAt      *time.Time `json:"responded_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// CustomerView returns a copy safe to show the customer: internal notes are
// stripped.
func (o Offer) CustomerView() Offer {
	o.InternalNotes = ""
	return o
}

// Expired reports whether the offer's expiry has passed at now.
func (o *Offer) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && !o.ExpiresAt.After(now)
}
