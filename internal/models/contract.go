package models

import "time"

type Party struct {
	CompanyName   string `json:"company_name"`
	BusinessID    string `json:"business_id,omitempty"`
	Address       string `json:"address,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`
	City          string `json:"city,omitempty"`
	ContactPerson string `json:"contact_person,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
}

type LeaseObject struct {
	BrandModel   string  `json:"brand_model"`
	IsNew        bool    `json:"is_new"`
	SerialNumber string  `json:"serial_number,omitempty"`
	YearModel    int     `json:"year_model,omitempty"`
	Accessories  string  `json:"accessories,omitempty"`
	Price        float64 `json:"price,omitempty"`
}

type Signature struct {
	SignerName string    `json:"signer_name"`
	Place      string    `json:"place"`
	Date       string    `json:"date"`
	RecordedBy string    `json:"recorded_by,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

type Contract struct {
	ID                string        `json:"id"`
	ApplicationID     string        `json:"application_id"`
	OfferID           string        `json:"offer_id"`
	FinancierID       string        `json:"financier_id"`
	ContractNumber    string        `json:"contract_number,omitempty"`
	Status            Status        `json:"status"`
	Lessee            Party         `json:"lessee"`
	Lessor            Party         `json:"lessor"`
	Seller            *Party        `json:"seller,omitempty"`
	LeasePeriodMonths int           `json:"lease_period_months"`
	MonthlyRent       float64       `json:"monthly_rent"`
	ResidualValue     float64       `json:"residual_value,omitempty"`
	AdvancePayment    float64       `json:"advance_payment,omitempty"`
	ProcessingFee     float64       `json:"processing_fee,omitempty"`
	LeaseObjects      []LeaseObject `json:"lease_objects"`
	LesseeSignature   *Signature    `json:"lessee_signature,omitempty"`
	LessorSignature   *Signature    `json:"lessor_signature,omitempty"`
	SentAt            *time.Time    `json:"sent_at,omitempty"`
	SignedAt          *time.Time    `json:"signed_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         *time.Time    `json:"updated_at,omitempty"`
}
