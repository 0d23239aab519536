package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/email"
	"financing-portal/internal/models"
	"financing-portal/internal/notify"
	"financing-portal/internal/store"
)

type OfferTerms struct {
	MonthlyPayment   float64
	TermMonths       int
	UpfrontPayment   float64
	ResidualValue    float64
	OpeningFee       float64
	InvoiceFee       float64
	InterestOrMargin string
	IncludedServices string
	NotesToCustomer  string
	InternalNotes    string
	ExpiresAt        *time.Time
}

func (t OfferTerms) validate() error {
	var problems []string
	if t.MonthlyPayment <= 0 {
		problems = append(problems, "monthly payment must be positive")
	}
	if t.TermMonths <= 0 {
		problems = append(problems, "term months must be positive")
	}
	for name, v := range map[string]float64{
		"upfront payment": t.UpfrontPayment,
		"residual value":  t.ResidualValue,
		"opening fee":     t.OpeningFee,
		"invoice fee":     t.InvoiceFee,
	} {
		if v < 0 {
			problems = append(problems, name+" must not be negative")
		}
	}
	if len(problems) > 0 {
		return apperrors.NewValidationFailedError(strings.Join(problems, "; "))
	}
	return nil
}

// offerableStatuses are the application states a financier may draft an
// offer in.
var offerableStatuses = map[models.Status]bool{
	models.ApplicationSubmittedToFinancier: true,
	models.ApplicationOfferSent:            true,
	models.ApplicationOfferRejected:        true,
}

// CreateOffer stores a DRAFT offer from the acting financier.
func (e *Engine) CreateOffer(ctx context.Context, appID string, terms OfferTerms, actor models.Actor) (*models.Offer, error) {
	if err := requireRole(actor, "offer.create", models.RoleFinancier); err != nil {
		return nil, err
	}
	if err := terms.validate(); err != nil {
		return nil, err
	}
	app, err := loadAs[models.Application](ctx, e, models.EntityApplication, appID)
	if err != nil {
		return nil, err
	}
	if err := e.CheckParty(ctx, app, actor); err != nil {
		return nil, err
	}
	if !offerableStatuses[app.Status] {
		return nil, apperrors.NewPreconditionFailedError(fmt.Sprintf("application %s is %s; offers need SUBMITTED_TO_FINANCIER, OFFER_SENT or OFFER_REJECTED", app.ID, app.Status))
	}

	offer := models.Offer{
		ApplicationID:    app.ID,
		FinancierID:      actor.ID,
		Status:           models.OfferDraft,
		MonthlyPayment:   terms.MonthlyPayment,
		TermMonths:       terms.TermMonths,
		UpfrontPayment:   terms.UpfrontPayment,
		ResidualValue:    terms.ResidualValue,
		OpeningFee:       terms.OpeningFee,
		InvoiceFee:       terms.InvoiceFee,
		InterestOrMargin: terms.InterestOrMargin,
		IncludedServices: terms.IncludedServices,
		NotesToCustomer:  terms.NotesToCustomer,
		InternalNotes:    terms.InternalNotes,
		ExpiresAt:        terms.ExpiresAt,
	}
	row, err := models.ToRow(&offer)
	if err != nil {
		return nil, err
	}
	stored, err := e.store.Insert(ctx, store.TableOffers, row)
	if err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}
	e.recordCreation(ctx, models.EntityOffer, stored, actor, "offer.create")
	return decode[models.Offer](stored)
}

func (e *Engine) SubmitOfferForApproval(ctx context.Context, offerID string, actor models.Actor) (*models.Offer, error) {
	return e.offerTransition(ctx, offerID, EdgeOfferSubmitForApproval, actor, func(offer *models.Offer, app *models.Application) Request {
		return Request{
			Notices: func(*Outcome) []notify.Event {
				return []notify.Event{notice(app.ID, TypeOffer, "Tarjous odottaa hyväksyntää",
					"Rahoittaja lähetti tarjouksen hyväksyttäväksi: "+companyOr(app, "Asiakas"), admins(""))}
			},
		}
	})
}

// ApproveOffer is the intermediary releasing a PENDING_ADMIN offer to the
// customer.
func (e *Engine) ApproveOffer(ctx context.Context, offerID string, actor models.Actor) (*models.Offer, error) {
	return e.offerTransition(ctx, offerID, EdgeOfferApprove, actor, func(offer *models.Offer, app *models.Application) Request {
		return e.releaseOffer(offer, app, true)
	})
}

// SendOffer is the financier sending a DRAFT offer directly.
func (e *Engine) SendOffer(ctx context.Context, offerID string, actor models.Actor) (*models.Offer, error) {
	return e.offerTransition(ctx, offerID, EdgeOfferSend, actor, func(offer *models.Offer, app *models.Application) Request {
		return e.releaseOffer(offer, app, false)
	})
}

func (e *Engine) releaseOffer(offer *models.Offer, app *models.Application, approved bool) Request {
	return Request{
		Patch: store.Row{"sent_at": e.now().UTC()},
		Guard: func(context.Context, store.Row) error {
			if offer.Expired(e.now()) {
				return apperrors.NewPreconditionFailedError("offer " + offer.ID + " has expired")
			}
			return nil
		},
		Cascade: []Cascade{{
			Entity:   models.EntityApplication,
			ID:       app.ID,
			Edge:     EdgeAppOfferSent,
			Optional: true,
		}},
		Notices: func(*Outcome) []notify.Event {
			events := []notify.Event{
				withEmail(notice(app.ID, TypeOffer, "Uusi tarjous",
					"Olet saanut rahoitustarjouksen. Kirjaudu sisään nähdäksesi tarjouksen yksityiskohdat.", notify.Customer()),
					notify.EmailSpec{Kind: email.KindOfferSent}),
			}
			if approved {
				events = append(events, notice(app.ID, TypeOffer, "Tarjous hyväksytty lähetettäväksi",
					"Tarjouksesi välitettiin asiakkaalle: "+companyOr(app, "Asiakas"), notify.User(offer.FinancierID)))
			}
			return events
		},
	}
}

// AcceptOffer records the customer's acceptance. Only one offer per
// application can be ACCEPTED.
func (e *Engine) AcceptOffer(ctx context.Context, offerID string, actor models.Actor) (*models.Offer, error) {
	return e.offerTransition(ctx, offerID, EdgeOfferAccept, actor, func(offer *models.Offer, app *models.Application) Request {
		return Request{
			Patch: store.Row{"responded_at": e.now().UTC()},
			Guard: func(ctx context.Context, _ store.Row) error {
				if accepted := e.acceptedOffer(ctx, app.ID, offer.ID); accepted != "" {
					return apperrors.NewConflictingOfferError(app.ID, accepted)
				}
				if offer.Expired(e.now()) {
					return apperrors.NewPreconditionFailedError("offer " + offer.ID + " has expired")
				}
				return nil
			},
			Cascade: []Cascade{{Entity: models.EntityApplication, ID: app.ID, Edge: EdgeAppOfferAccepted}},
			Notices: func(*Outcome) []notify.Event {
				return []notify.Event{
					notice(app.ID, TypeOffer, "Tarjous hyväksytty", "Asiakas hyväksyi tarjouksesi", notify.User(offer.FinancierID)),
					notice(app.ID, TypeOffer, "Tarjous hyväksytty", "Asiakas hyväksyi tarjouksen: "+companyOr(app, "Asiakas"), admins("")),
					withEmail(notice(app.ID, TypeOffer, "Tarjous hyväksytty",
						"Tarjouksesi on hyväksytty. Sopimusprosessi käynnistyy pian.", notify.Customer()),
						notify.EmailSpec{Kind: email.KindGeneric, Subject: "Tarjous hyväksytty",
							Body: "Tarjouksesi on hyväksytty. Sopimusprosessi käynnistyy pian."}),
				}
			},
		}
	})
}

// RejectOffer records the customer's rejection. The application moves to
// OFFER_REJECTED once no other offer is waiting for an answer.
func (e *Engine) RejectOffer(ctx context.Context, offerID string, actor models.Actor) (*models.Offer, error) {
	return e.offerTransition(ctx, offerID, EdgeOfferReject, actor, func(offer *models.Offer, app *models.Application) Request {
		req := Request{
			Patch: store.Row{"responded_at": e.now().UTC()},
			Notices: func(*Outcome) []notify.Event {
				return []notify.Event{
					notice(app.ID, TypeOffer, "Tarjous hylätty", "Asiakas hylkäsi tarjouksesi", notify.User(offer.FinancierID)),
					notice(app.ID, TypeOffer, "Tarjous hylätty", "Asiakas hylkäsi tarjouksen: "+companyOr(app, "Asiakas"), admins("")),
				}
			},
		}
		if app.Status == models.ApplicationOfferSent && !e.hasOtherOpenOffer(ctx, app.ID, offer.ID) {
			req.Cascade = []Cascade{{Entity: models.EntityApplication, ID: app.ID, Edge: EdgeAppOfferRejected}}
		}
		return req
	})
}

type ExpiryReport struct {
	Expired []string
	Skipped []string
}

// ExpireOffers moves up to limit SENT or PENDING_ADMIN offers whose
// expires_at has passed to EXPIRED.
func (e *Engine) ExpireOffers(ctx context.Context, now time.Time, limit int) (*ExpiryReport, error) {
	rows, err := e.store.Query(ctx, store.TableOffers, store.Filter{
		store.In("status", string(models.OfferSent), string(models.OfferPendingAdmin)),
		store.Before("expires_at", now),
	}, store.Order{Column: "expires_at"})
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("query expired offers", err)
	}

	report := &ExpiryReport{}
	for _, row := range rows {
		if limit > 0 && len(report.Expired)+len(report.Skipped) >= limit {
			break
		}
		id := row.String("id")
		_, err := e.offerTransition(ctx, id, EdgeOfferExpire, models.SystemActor, func(offer *models.Offer, app *models.Application) Request {
			return Request{
				Notices: func(*Outcome) []notify.Event {
					return []notify.Event{notice(app.ID, TypeOffer, "Tarjous vanhentunut",
						"Tarjouksesi hakemukselle "+companyOr(app, "")+" vanheni vastaamatta", notify.User(offer.FinancierID))}
				},
			}
		})
		switch {
		case err == nil:
			report.Expired = append(report.Expired, id)
		case errors.Is(err, apperrors.ErrInvalidTransition), errors.Is(err, apperrors.ErrConflictingTransition):
			// answered or expired by someone else in the meantime
			report.Skipped = append(report.Skipped, id)
		default:
			return report, err
		}
	}

	e.logger.Info("offer expiry sweep finished", map[string]interface{}{
		"expired": len(report.Expired),
		"skipped": len(report.Skipped),
	})
	return report, nil
}

func (e *Engine) hasOtherOpenOffer(ctx context.Context, appID, exceptID string) bool {
	rows, err := e.store.Query(ctx, store.TableOffers, store.Filter{
		store.Eq("application_id", appID),
		store.Eq("status", string(models.OfferSent)),
	})
	if err != nil {
		return true
	}
	for _, r := range rows {
		if r.String("id") != exceptID {
			return true
		}
	}
	return false
}

func (e *Engine) offerTransition(ctx context.Context, offerID, edge string, actor models.Actor, build func(offer *models.Offer, app *models.Application) Request) (*models.Offer, error) {
	offer, err := loadAs[models.Offer](ctx, e, models.EntityOffer, offerID)
	if err != nil {
		return nil, err
	}
	app, err := loadAs[models.Application](ctx, e, models.EntityApplication, offer.ApplicationID)
	if err != nil {
		return nil, err
	}

	req := build(offer, app)
	req.Entity = models.EntityOffer
	req.ID = offerID
	req.Edge = edge
	req.Actor = actor
	guard := req.Guard
	req.Guard = func(ctx context.Context, row store.Row) error {
		if actor.Role == models.RoleFinancier && offer.FinancierID != actor.ID {
			return apperrors.NewRoleNotPermittedError(string(actor.Role), "offer "+offer.ID, string(offer.Status), "")
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
	return decode[models.Offer](out.After)
}
