package workflow

import (
	"financing-portal/internal/models"
)

// Edge is one legal status change. Roles lists who may trigger it
// directly; cascaded writes are not role-checked.
type Edge struct {
	Name   string
	Entity models.EntityType
	From   []models.Status
	To     models.Status
	Roles  []models.Role
}

func (e *Edge) allowsFrom(s models.Status) bool {
	for _, f := range e.From {
		if f == s {
			return true
		}
	}
	return false
}

func (e *Edge) allowsRole(r models.Role) bool {
	for _, allowed := range e.Roles {
		if allowed == r {
			return true
		}
	}
	return false
}

const (
	EdgeAppSubmit                = "application.submit"
	EdgeAppAssignFinancier       = "application.assign_financier"
	EdgeAppRequestInfo           = "application.request_info"
	EdgeAppInfoReceived          = "application.info_received"
	EdgeAppResume                = "application.resume"
	EdgeAppResumeFinancier       = "application.resume_to_financier"
	EdgeAppOfferSent             = "application.offer_sent"
	EdgeAppOfferAccepted         = "application.offer_accepted"
	EdgeAppOfferRejected         = "application.offer_rejected"
	EdgeAppRequestCreditDecision = "application.request_credit_decision"
	EdgeAppContractSent          = "application.contract_sent"
	EdgeAppContractAccepted      = "application.contract_accepted"
	EdgeAppWaitingSignature      = "application.waiting_signature"
	EdgeAppSigned                = "application.signed"
	EdgeAppReject                = "application.reject"
	EdgeAppCancel                = "application.cancel"

	EdgeOfferSubmitForApproval = "offer.submit_for_approval"
	EdgeOfferApprove           = "offer.approve"
	EdgeOfferSend              = "offer.send"
	EdgeOfferAccept            = "offer.accept"
	EdgeOfferReject            = "offer.reject"
	EdgeOfferExpire            = "offer.expire"

	EdgeContractSend   = "contract.send"
	EdgeContractAccept = "contract.accept"
	EdgeContractSign   = "contract.sign"
	EdgeContractReject = "contract.reject"
)

var (
	customer     = models.RoleCustomer
	intermediary = models.RoleIntermediary
	financier    = models.RoleFinancier
	system       = models.RoleSystem
)

// nonTerminal lists every application status an intermediary may reject or
// cancel from.
var nonTerminal = []models.Status{
	models.ApplicationDraft,
	models.ApplicationSubmitted,
	models.ApplicationSubmittedToFinancier,
	models.ApplicationInfoRequested,
	models.ApplicationInfoReceived,
	models.ApplicationOfferSent,
	models.ApplicationOfferAccepted,
	models.ApplicationOfferRejected,
	models.ApplicationCreditDecisionPending,
	models.ApplicationContractSent,
	models.ApplicationContractAccepted,
	models.ApplicationWaitingSignature,
}

var edges = []Edge{
	{EdgeAppSubmit, models.EntityApplication,
		[]models.Status{models.ApplicationDraft}, models.ApplicationSubmitted,
		[]models.Role{customer}},
	{EdgeAppAssignFinancier, models.EntityApplication,
		[]models.Status{models.ApplicationSubmitted}, models.ApplicationSubmittedToFinancier,
		[]models.Role{intermediary}},
	{EdgeAppRequestInfo, models.EntityApplication,
		[]models.Status{models.ApplicationSubmitted, models.ApplicationSubmittedToFinancier, models.ApplicationInfoReceived},
		models.ApplicationInfoRequested,
		[]models.Role{intermediary, financier}},
	{EdgeAppInfoReceived, models.EntityApplication,
		[]models.Status{models.ApplicationInfoRequested}, models.ApplicationInfoReceived,
		[]models.Role{customer}},
	{EdgeAppResume, models.EntityApplication,
		[]models.Status{models.ApplicationInfoReceived}, models.ApplicationSubmitted,
		[]models.Role{intermediary}},
	{EdgeAppResumeFinancier, models.EntityApplication,
		[]models.Status{models.ApplicationInfoReceived}, models.ApplicationSubmittedToFinancier,
		[]models.Role{intermediary, financier}},
	{EdgeAppOfferSent, models.EntityApplication,
		[]models.Status{models.ApplicationSubmittedToFinancier, models.ApplicationOfferRejected},
		models.ApplicationOfferSent,
		[]models.Role{financier, intermediary}},
	{EdgeAppOfferAccepted, models.EntityApplication,
		[]models.Status{models.ApplicationOfferSent}, models.ApplicationOfferAccepted,
		[]models.Role{customer}},
	{EdgeAppOfferRejected, models.EntityApplication,
		[]models.Status{models.ApplicationOfferSent}, models.ApplicationOfferRejected,
		[]models.Role{customer}},
	{EdgeAppRequestCreditDecision, models.EntityApplication,
		[]models.Status{models.ApplicationOfferAccepted}, models.ApplicationCreditDecisionPending,
		[]models.Role{financier}},
	{EdgeAppContractSent, models.EntityApplication,
		[]models.Status{models.ApplicationOfferAccepted, models.ApplicationCreditDecisionPending},
		models.ApplicationContractSent,
		[]models.Role{financier}},
	{EdgeAppContractAccepted, models.EntityApplication,
		[]models.Status{models.ApplicationContractSent}, models.ApplicationContractAccepted,
		[]models.Role{customer}},
	{EdgeAppWaitingSignature, models.EntityApplication,
		[]models.Status{models.ApplicationContractAccepted}, models.ApplicationWaitingSignature,
		[]models.Role{customer, system}},
	{EdgeAppSigned, models.EntityApplication,
		[]models.Status{models.ApplicationWaitingSignature}, models.ApplicationSigned,
		[]models.Role{customer, financier}},
	{EdgeAppReject, models.EntityApplication, nonTerminal, models.ApplicationRejected,
		[]models.Role{intermediary}},
	{EdgeAppCancel, models.EntityApplication, nonTerminal, models.ApplicationCancelled,
		[]models.Role{intermediary}},

	{EdgeOfferSubmitForApproval, models.EntityOffer,
		[]models.Status{models.OfferDraft}, models.OfferPendingAdmin,
		[]models.Role{financier}},
	{EdgeOfferApprove, models.EntityOffer,
		[]models.Status{models.OfferPendingAdmin}, models.OfferSent,
		[]models.Role{intermediary}},
	{EdgeOfferSend, models.EntityOffer,
		[]models.Status{models.OfferDraft}, models.OfferSent,
		[]models.Role{financier}},
	{EdgeOfferAccept, models.EntityOffer,
		[]models.Status{models.OfferSent}, models.OfferAccepted,
		[]models.Role{customer}},
	{EdgeOfferReject, models.EntityOffer,
		[]models.Status{models.OfferSent}, models.OfferRejected,
		[]models.Role{customer}},
	{EdgeOfferExpire, models.EntityOffer,
		[]models.Status{models.OfferSent, models.OfferPendingAdmin}, models.OfferExpired,
		[]models.Role{system}},

	{EdgeContractSend, models.EntityContract,
		[]models.Status{models.ContractDraft}, models.ContractSent,
		[]models.Role{financier}},
	{EdgeContractAccept, models.EntityContract,
		[]models.Status{models.ContractSent}, models.ContractWaitingSignature,
		[]models.Role{customer}},
	{EdgeContractSign, models.EntityContract,
		[]models.Status{models.ContractWaitingSignature}, models.ContractSigned,
		[]models.Role{customer, financier}},
	{EdgeContractReject, models.EntityContract,
		[]models.Status{models.ContractSent}, models.ContractRejected,
		[]models.Role{customer}},
}

var edgeIndex = func() map[string]*Edge {
	idx := make(map[string]*Edge, len(edges))
	for i := range edges {
		idx[edges[i].Name] = &edges[i]
	}
	return idx
}()

// Lookup returns the edge registered under name.
func Lookup(name string) (*Edge, bool) {
	e, ok := edgeIndex[name]
	return e, ok
}

// Edges returns a copy of the transition table.
func Edges() []Edge {
	return append([]Edge(nil), edges...)
}

// Allowed reports whether any edge moves entity from -> to for role.
func Allowed(entity models.EntityType, from, to models.Status, role models.Role) bool {
	for i := range edges {
		e := &edges[i]
		if e.Entity == entity && e.To == to && e.allowsFrom(from) && e.allowsRole(role) {
			return true
		}
	}
	return false
}
