package models

import "fmt"

type Role string

const (
	RoleCustomer     Role = "CUSTOMER"
	RoleIntermediary Role = "ADMIN"
	RoleFinancier    Role = "FINANCIER"
	RoleSystem       Role = "SYSTEM"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleIntermediary, RoleFinancier, RoleSystem:
		return true
	}
	return false
}

type EntityType string

const (
	EntityApplication EntityType = "APPLICATION"
	EntityOffer       EntityType = "OFFER"
	EntityContract    EntityType = "CONTRACT"
	EntityMessage     EntityType = "MESSAGE"
)

// Table returns the storage table backing the entity.
func (e EntityType) Table() string {
	switch e {
	case EntityApplication:
		return "applications"
	case EntityOffer:
		return "offers"
	case EntityContract:
		return "contracts"
	case EntityMessage:
		return "messages"
	}
	return ""
}

type Status string

const (
	ApplicationDraft                 Status = "DRAFT"
	ApplicationSubmitted             Status = "SUBMITTED"
	ApplicationSubmittedToFinancier  Status = "SUBMITTED_TO_FINANCIER"
	ApplicationInfoRequested         Status = "INFO_REQUESTED"
	ApplicationInfoReceived          Status = "INFO_RECEIVED"
	ApplicationOfferSent             Status = "OFFER_SENT"
	ApplicationOfferAccepted         Status = "OFFER_ACCEPTED"
	ApplicationOfferRejected         Status = "OFFER_REJECTED"
	ApplicationCreditDecisionPending Status = "CREDIT_DECISION_PENDING"
	ApplicationContractSent          Status = "CONTRACT_SENT"
	ApplicationContractAccepted      Status = "CONTRACT_ACCEPTED"
	ApplicationWaitingSignature      Status = "WAITING_SIGNATURE"
	ApplicationSigned                Status = "SIGNED"
	ApplicationClosed                Status = "CLOSED"
	ApplicationCancelled             Status = "CANCELLED"
	ApplicationRejected              Status = "REJECTED"
)

const (
	OfferDraft        Status = "DRAFT"
	OfferPendingAdmin Status = "PENDING_ADMIN"
	OfferSent         Status = "SENT"
	OfferAccepted     Status = "ACCEPTED"
	OfferRejected     Status = "REJECTED"
	OfferExpired      Status = "EXPIRED"
)

const (
	ContractDraft            Status = "DRAFT"
	ContractSent             Status = "SENT"
	ContractWaitingSignature Status = "WAITING_SIGNATURE"
	ContractSigned           Status = "SIGNED"
	ContractRejected         Status = "REJECTED"
	ContractExpired          Status = "EXPIRED"
)

var statusSets = map[EntityType][]Status{
	EntityApplication: {
		ApplicationDraft, ApplicationSubmitted, ApplicationSubmittedToFinancier,
		ApplicationInfoRequested, ApplicationInfoReceived, ApplicationOfferSent,
		ApplicationOfferAccepted, ApplicationOfferRejected, ApplicationCreditDecisionPending,
		ApplicationContractSent, ApplicationContractAccepted, ApplicationWaitingSignature,
		ApplicationSigned, ApplicationClosed, ApplicationCancelled, ApplicationRejected,
	},
	EntityOffer: {
		OfferDraft, OfferPendingAdmin, OfferSent, OfferAccepted, OfferRejected, OfferExpired,
	},
	EntityContract: {
		ContractDraft, ContractSent, ContractWaitingSignature, ContractSigned, ContractRejected, ContractExpired,
	},
}

// Statuses lists the enum for entity in lifecycle order.
func Statuses(entity EntityType) []Status {
	return append([]Status(nil), statusSets[entity]...)
}

func ValidStatus(entity EntityType, s Status) bool {
	for _, candidate := range statusSets[entity] {
		if candidate == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition leaves s.
func Terminal(entity EntityType, s Status) bool {
	switch entity {
	case EntityApplication:
		switch s {
		case ApplicationSigned, ApplicationClosed, ApplicationCancelled, ApplicationRejected:
			return true
		}
	case EntityOffer:
		switch s {
		case OfferAccepted, OfferRejected, OfferExpired:
			return true
		}
	case EntityContract:
		switch s {
		case ContractSigned, ContractRejected, ContractExpired:
			return true
		}
	}
	return false
}

func ParseStatus(entity EntityType, raw string) (Status, error) {
	s := Status(raw)
	if !ValidStatus(entity, s) {
		return "", fmt.Errorf("unknown %s status %q", entity, raw)
	}
	return s, nil
}
