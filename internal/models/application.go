package models

import "time"

type ApplicationType string

const (
	ApplicationTypeLeasing       ApplicationType = "LEASING"
	ApplicationTypeSaleLeaseback ApplicationType = "SALE_LEASEBACK"
)

type Application struct {
	ID                   string          `json:"id"`
	ReferenceNumber      string          `json:"reference_number,omitempty"`
	Type                 ApplicationType `json:"type"`
	Status               Status          `json:"status"`
	CustomerID           string          `json:"customer_id,omitempty"`
	ContactEmail         string          `json:"contact_email"`
	ContactPerson        string          `json:"contact_person,omitempty"`
	ContactPhone         string          `json:"contact_phone,omitempty"`
	CompanyName          string          `json:"company_name"`
	BusinessID           string          `json:"business_id,omitempty"`
	EquipmentDescription string          `json:"equipment_description,omitempty"`
	EquipmentPrice       float64         `json:"equipment_price,omitempty"`
	AssignedFinancier    string          `json:"assigned_financier,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	SubmittedAt          *time.Time      `json:"submitted_at,omitempty"`
	UpdatedAt            *time.Time      `json:"updated_at,omitempty"`
}

// CustomerName is the salutation used in customer-facing email.
func (a *Application) CustomerName() string {
	if a.ContactPerson != "" {
		return a.ContactPerson
	}
	return a.CompanyName
}
