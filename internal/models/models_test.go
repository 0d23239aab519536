package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidStatus(t *testing.T) {
	tests := []struct {
		entity EntityType
		status Status
		want   bool
	}{
		{EntityApplication, ApplicationSubmittedToFinancier, true},
		{EntityApplication, OfferPendingAdmin, false},
		{EntityOffer, OfferPendingAdmin, true},
		{EntityOffer, ApplicationOfferSent, false},
		{EntityContract, ContractWaitingSignature, true},
		{EntityContract, "ARCHIVED", false},
		{EntityMessage, "DRAFT", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.entity)+"/"+string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, ValidStatus(tt.entity, tt.status))
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal(EntityApplication, ApplicationSigned))
	assert.True(t, Terminal(EntityApplication, ApplicationCancelled))
	assert.False(t, Terminal(EntityApplication, ApplicationOfferRejected))
	assert.True(t, Terminal(EntityOffer, OfferExpired))
	assert.False(t, Terminal(EntityContract, ContractWaitingSignature))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(EntityOffer, "SENT")
	require.NoError(t, err)
	assert.Equal(t, OfferSent, s)

	_, err = ParseStatus(EntityOffer, "OFFER_SENT")
	assert.Error(t, err)
}

func TestOffer_CustomerViewStripsInternalNotes(t *testing.T) {
	offer := Offer{ID: "o1", NotesToCustomer: "Sisältää huollon", InternalNotes: "riskiluokka B"}

	view := offer.CustomerView()

	assert.Empty(t, view.InternalNotes)
	assert.Equal(t, "Sisältää huollon", view.NotesToCustomer)
	assert.Equal(t, "riskiluokka B", offer.InternalNotes)
}

func TestOffer_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.False(t, (&Offer{}).Expired(now))
	assert.True(t, (&Offer{ExpiresAt: &past}).Expired(now))
	assert.False(t, (&Offer{ExpiresAt: &future}).Expired(now))
}

func TestRowConversion_Contract(t *testing.T) {
	created := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	contract := Contract{
		ID:                "c1",
		ApplicationID:     "a1",
		Status:            ContractDraft,
		Lessee:            Party{CompanyName: "Rakennus Oy", BusinessID: "1234567-8"},
		LeasePeriodMonths: 36,
		MonthlyRent:       2500,
		LeaseObjects:      []LeaseObject{{BrandModel: "Volvo EC220E", IsNew: true, YearModel: 2025}},
		CreatedAt:         created,
	}

	row, err := ToRow(contract)
	require.NoError(t, err)
	assert.Equal(t, "DRAFT", row["status"])
	assert.NotContains(t, row, "contract_number")
	assert.NotContains(t, row, "lessee_signature")

	var decoded Contract
	require.NoError(t, FromRow(row, &decoded))
	assert.Equal(t, contract.Lessee, decoded.Lessee)
	assert.Equal(t, contract.LeaseObjects, decoded.LeaseObjects)
	assert.True(t, created.Equal(decoded.CreatedAt))
}

func TestApplication_CustomerName(t *testing.T) {
	assert.Equal(t, "Maija", (&Application{ContactPerson: "Maija", CompanyName: "Oy"}).CustomerName())
	assert.Equal(t, "Oy", (&Application{CompanyName: "Oy"}).CustomerName())
}
