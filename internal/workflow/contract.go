package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/email"
	"financing-portal/internal/models"
	"financing-portal/internal/notify"
	"financing-portal/internal/store"
)

type NewContract struct {
	// OfferID optionally names the seeding offer; it must be the most
	// recent ACCEPTED one.
	OfferID      string
	Lessor       models.Party
	Lessee       *models.Party
	Seller       *models.Party
	LeaseObjects []models.LeaseObject
}

type SignatureInput struct {
	SignerName string
	Place      string
	Date       string
}

func (s SignatureInput) validate() error {
	var problems []string
	if strings.TrimSpace(s.SignerName) == "" {
		problems = append(problems, "signer name is required")
	}
	if strings.TrimSpace(s.Place) == "" {
		problems = append(problems, "signing place is required")
	}
	if strings.TrimSpace(s.Date) == "" {
		problems = append(problems, "signing date is required")
	}
	if len(problems) > 0 {
		return apperrors.NewValidationFailedError(strings.Join(problems, "; "))
	}
	return nil
}

var contractableStatuses = map[models.Status]bool{
	models.ApplicationOfferAccepted:         true,
	models.ApplicationCreditDecisionPending: true,
}

// CreateContract drafts a contract from the application's most recently
// accepted offer.
func (e *Engine) CreateContract(ctx context.Context, appID string, in NewContract, actor models.Actor) (*models.Contract, error) {
	if err := requireRole(actor, "contract.create", models.RoleFinancier); err != nil {
		return nil, err
	}
	app, err := loadAs[models.Application](ctx, e, models.EntityApplication, appID)
	if err != nil {
		return nil, err
	}
	if err := e.CheckParty(ctx, app, actor); err != nil {
		return nil, err
	}
	if !contractableStatuses[app.Status] {
		return nil, apperrors.NewPreconditionFailedError(fmt.Sprintf("application %s is %s; contracts need an accepted offer", app.ID, app.Status))
	}

	offer, err := e.latestAcceptedOffer(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	if in.OfferID != "" && in.OfferID != offer.ID {
		return nil, apperrors.NewPreconditionFailedError(fmt.Sprintf("offer %s is not the most recent accepted offer (%s)", in.OfferID, offer.ID))
	}

	lessee := models.Party{
		CompanyName:   app.CompanyName,
		BusinessID:    app.BusinessID,
		ContactPerson: app.ContactPerson,
		Email:         app.ContactEmail,
		Phone:         app.ContactPhone,
	}
	if in.Lessee != nil {
		lessee = *in.Lessee
	}
	objects := in.LeaseObjects
	if len(objects) == 0 {
		objects = []models.LeaseObject{{BrandModel: app.EquipmentDescription, Price: app.EquipmentPrice}}
	}

	contract := models.Contract{
		ApplicationID:     app.ID,
		OfferID:           offer.ID,
		FinancierID:       offer.FinancierID,
		Status:            models.ContractDraft,
		Lessee:            lessee,
		Lessor:            in.Lessor,
		Seller:            in.Seller,
		LeasePeriodMonths: offer.TermMonths,
		MonthlyRent:       offer.MonthlyPayment,
		ResidualValue:     offer.ResidualValue,
		AdvancePayment:    offer.UpfrontPayment,
		ProcessingFee:     offer.OpeningFee,
		LeaseObjects:      objects,
	}
	row, err := models.ToRow(&contract)
	if err != nil {
		return nil, err
	}
	stored, err := e.store.Insert(ctx, store.TableContracts, row)
	if err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}
	e.recordCreation(ctx, models.EntityContract, stored, actor, "contract.create")
	return decode[models.Contract](stored)
}

func (e *Engine) latestAcceptedOffer(ctx context.Context, appID string) (*models.Offer, error) {
	offers, err := store.LoadAll[models.Offer](ctx, e.store, store.TableOffers, store.Filter{
		store.Eq("application_id", appID),
		store.Eq("status", string(models.OfferAccepted)),
	}, store.NewestFirst())
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("query accepted offers", err)
	}
	if len(offers) == 0 {
		return nil, apperrors.NewPreconditionFailedError("application " + appID + " has no accepted offer")
	}
	return &offers[0], nil
}

// AssignContractNumber sets the contract number once. An empty number
// generates one.
func (e *Engine) AssignContractNumber(ctx context.Context, contractID, number string, actor models.Actor) (*models.Contract, error) {
	if err := requireRole(actor, "contract.assign_number", models.RoleFinancier, models.RoleIntermediary); err != nil {
		return nil, err
	}
	contract, err := loadAs[models.Contract](ctx, e, models.EntityContract, contractID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleFinancier && contract.FinancierID != actor.ID {
		return nil, apperrors.NewRoleNotPermittedError(string(actor.Role), "contract "+contract.ID, string(contract.Status), "")
	}
	if contract.ContractNumber != "" {
		return nil, apperrors.NewContractNumberLockedError(contract.ID, contract.ContractNumber)
	}
	if number == "" {
		number = ContractNumber(e.now())
	}

	row, err := e.store.UpdateWhere(ctx, store.TableContracts, contract.ID, string(contract.Status), store.Row{
		"contract_number": number,
		"updated_at":      e.now().UTC(),
	})
	if errors.Is(err, store.ErrConflict) {
		latest, loadErr := loadAs[models.Contract](ctx, e, models.EntityContract, contract.ID)
		switch {
		case loadErr != nil:
			return nil, loadErr
		case latest.ContractNumber != "":
			return nil, apperrors.NewContractNumberLockedError(latest.ID, latest.ContractNumber)
		case latest.Status != contract.Status:
			return nil, apperrors.NewConflictingTransitionError(string(models.EntityContract), contract.ID, string(contract.Status), string(latest.Status))
		}
		return nil, apperrors.NewPreconditionFailedError("contract number " + number + " is already in use")
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("update contracts", err)
	}

	e.logger.Info("contract number assigned", map[string]interface{}{
		"contractId":     contract.ID,
		"contractNumber": number,
	})
	return decode[models.Contract](row)
}

// SendContract sends a DRAFT contract to the customer, numbering it if it
// has no number yet.
func (e *Engine) SendContract(ctx context.Context, contractID string, actor models.Actor) (*models.Contract, error) {
	return e.contractTransition(ctx, contractID, EdgeContractSend, actor, func(c *models.Contract, app *models.Application) Request {
		patch := store.Row{"sent_at": e.now().UTC()}
		if c.ContractNumber == "" {
			patch["contract_number"] = ContractNumber(e.now())
		}
		return Request{
			Patch:   patch,
			Cascade: []Cascade{{Entity: models.EntityApplication, ID: app.ID, Edge: EdgeAppContractSent}},
			Notices: func(*Outcome) []notify.Event {
				return []notify.Event{
					withEmail(notice(app.ID, TypeContract, "Sopimus allekirjoitettavana",
						"Sopimus on valmis allekirjoitettavaksi. Kirjaudu sisään allekirjoittaaksesi.", notify.Customer()),
						notify.EmailSpec{Kind: email.KindContractSent}),
					notice(app.ID, TypeContract, "Sopimus lähetetty",
						"Sopimus lähetettiin asiakkaalle: "+companyOr(app, "Asiakas"), admins("")),
				}
			},
		}
	})
}

// AcceptContract is the customer accepting the contract for signing. The
// application passes CONTRACT_ACCEPTED on its way to WAITING_SIGNATURE.
func (e *Engine) AcceptContract(ctx context.Context, contractID string, actor models.Actor) (*models.Contract, error) {
	return e.contractTransition(ctx, contractID, EdgeContractAccept, actor, func(c *models.Contract, app *models.Application) Request {
		return Request{
			Cascade: []Cascade{
				{Entity: models.EntityApplication, ID: app.ID, Edge: EdgeAppContractAccepted},
				{Entity: models.EntityApplication, ID: app.ID, Edge: EdgeAppWaitingSignature},
			},
			Notices: func(*Outcome) []notify.Event {
				return []notify.Event{
					notice(app.ID, TypeContract, "Sopimus hyväksytty", "Asiakas hyväksyi sopimuksen allekirjoitettavaksi", notify.User(c.FinancierID)),
					notice(app.ID, TypeContract, "Sopimus hyväksytty", companyOr(app, "Asiakas")+" hyväksyi sopimuksen allekirjoitettavaksi", admins("")),
				}
			},
		}
	})
}

// SignContract records the lessee signature, either by the customer or by
// the financier entering a signature collected outside the portal.
func (e *Engine) SignContract(ctx context.Context, contractID string, sig SignatureInput, actor models.Actor) (*models.Contract, error) {
	if err := sig.validate(); err != nil {
		return nil, err
	}
	signature, err := jsonValue(models.Signature{
		SignerName: strings.TrimSpace(sig.SignerName),
		Place:      strings.TrimSpace(sig.Place),
		Date:       strings.TrimSpace(sig.Date),
		RecordedBy: actor.ID,
		RecordedAt: e.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	return e.contractTransition(ctx, contractID, EdgeContractSign, actor, func(c *models.Contract, app *models.Application) Request {
		return Request{
			Patch: store.Row{
				"lessee_signature": signature,
				"signed_at":        e.now().UTC(),
			},
			Cascade: []Cascade{{Entity: models.EntityApplication, ID: app.ID, Edge: EdgeAppSigned}},
			Notices: func(*Outcome) []notify.Event {
				events := []notify.Event{
					notice(app.ID, TypeContract, "Sopimus allekirjoitettu",
						companyOr(app, "Asiakas")+" allekirjoitti sopimuksen", admins("")),
				}
				if actor.Role == models.RoleCustomer {
					events = append(events, notice(app.ID, TypeContract, "Sopimus allekirjoitettu",
						"Asiakas allekirjoitti sopimuksen", notify.User(c.FinancierID)))
				} else {
					events = append(events, withEmail(notice(app.ID, TypeContract, "Sopimus allekirjoitettu",
						"Onnittelut! Sopimus on allekirjoitettu ja rahoitus on valmis.", notify.Customer()),
						notify.EmailSpec{Kind: email.KindGeneric, Subject: "Sopimus allekirjoitettu",
							Body: "Onnittelut! Sopimus on allekirjoitettu ja rahoitus on valmis."}))
				}
				return events
			},
		}
	})
}

func (e *Engine) RejectContract(ctx context.Context, contractID, reason string, actor models.Actor) (*models.Contract, error) {
	return e.contractTransition(ctx, contractID, EdgeContractReject, actor, func(c *models.Contract, app *models.Application) Request {
		return Request{
			Notices: func(*Outcome) []notify.Event {
				return []notify.Event{
					notice(app.ID, TypeContract, "Sopimus hylätty", withReason("Asiakas hylkäsi sopimuksen", reason), notify.User(c.FinancierID)),
					notice(app.ID, TypeContract, "Sopimus hylätty", withReason(companyOr(app, "Asiakas")+" hylkäsi sopimuksen", reason), admins("")),
				}
			},
		}
	})
}

func (e *Engine) contractTransition(ctx context.Context, contractID, edge string, actor models.Actor, build func(c *models.Contract, app *models.Application) Request) (*models.Contract, error) {
	contract, err := loadAs[models.Contract](ctx, e, models.EntityContract, contractID)
	if err != nil {
		return nil, err
	}
	app, err := loadAs[models.Application](ctx, e, models.EntityApplication, contract.ApplicationID)
	if err != nil {
		return nil, err
	}

	req := build(contract, app)
	req.Entity = models.EntityContract
	req.ID = contractID
	req.Edge = edge
	req.Actor = actor
	guard := req.Guard
	req.Guard = func(ctx context.Context, row store.Row) error {
		if actor.Role == models.RoleFinancier && contract.FinancierID != actor.ID {
			return apperrors.NewRoleNotPermittedError(string(actor.Role), "contract "+contract.ID, string(contract.Status), "")
		}
		if err := e.CheckParty(ctx, app, actor); err != nil {
			return err
		}
		if guard != nil {
			return guard(ctx, row)
		}
		return nil
	}

	out, err := e.Apply(ctx, req)
	if err != nil {
		return nil, err
	}
	return decode[models.Contract](out.After)
}
