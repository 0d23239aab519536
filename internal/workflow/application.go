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

const (
	TypeApplication = "APPLICATION_UPDATE"
	TypeOffer       = "OFFER_UPDATE"
	TypeContract    = "CONTRACT_UPDATE"
	TypeMessage     = "MESSAGE"
)

type NewApplication struct {
	Type                 models.ApplicationType
	ContactEmail         string
	ContactPerson        string
	ContactPhone         string
	CompanyName          string
	BusinessID           string
	EquipmentDescription string
	EquipmentPrice       float64
	// Submit moves the new application straight to SUBMITTED.
	Submit bool
}

func (n NewApplication) validate() error {
	var problems []string
	if n.Type != models.ApplicationTypeLeasing && n.Type != models.ApplicationTypeSaleLeaseback {
		problems = append(problems, fmt.Sprintf("type %q is not LEASING or SALE_LEASEBACK", n.Type))
	}
	if strings.TrimSpace(n.ContactEmail) == "" || !strings.Contains(n.ContactEmail, "@") {
		problems = append(problems, "contact email is required")
	}
	if strings.TrimSpace(n.CompanyName) == "" {
		problems = append(problems, "company name is required")
	}
	if n.EquipmentPrice < 0 {
		problems = append(problems, "equipment price must not be negative")
	}
	if len(problems) > 0 {
		return apperrors.NewValidationFailedError(strings.Join(problems, "; "))
	}
	return nil
}

// CreateApplication stores a DRAFT application with a fresh reference
// number, submitting it right away when asked.
func (e *Engine) CreateApplication(ctx context.Context, in NewApplication, actor models.Actor) (*models.Application, error) {
	if err := requireRole(actor, "application.create", models.RoleCustomer, models.RoleIntermediary); err != nil {
		return nil, err
	}
	if in.Submit && actor.Role != models.RoleCustomer {
		return nil, apperrors.NewRoleNotPermittedError(string(actor.Role), string(models.EntityApplication),
			string(models.ApplicationDraft), string(models.ApplicationSubmitted))
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	app := models.Application{
		ReferenceNumber:      ReferenceNumber(e.now()),
		Type:                 in.Type,
		Status:               models.ApplicationDraft,
		ContactEmail:         strings.TrimSpace(in.ContactEmail),
		ContactPerson:        in.ContactPerson,
		ContactPhone:         in.ContactPhone,
		CompanyName:          strings.TrimSpace(in.CompanyName),
		BusinessID:           in.BusinessID,
		EquipmentDescription: in.EquipmentDescription,
		EquipmentPrice:       in.EquipmentPrice,
	}
	if actor.Role == models.RoleCustomer {
		app.CustomerID = actor.ID
	}

	row, err := models.ToRow(&app)
	if err != nil {
		return nil, err
	}
	stored, err := e.store.Insert(ctx, store.TableApplications, row)
	if err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}
	e.recordCreation(ctx, models.EntityApplication, stored, actor, "application.create")

	created, err := decode[models.Application](stored)
	if err != nil {
		return nil, err
	}
	e.logger.Info("application created", map[string]interface{}{
		"applicationId":   created.ID,
		"referenceNumber": created.ReferenceNumber,
	})

	if !in.Submit {
		return created, nil
	}
	return e.SubmitApplication(ctx, created.ID, actor)
}

func (e *Engine) SubmitApplication(ctx context.Context, appID string, actor models.Actor) (*models.Application, error) {
	return e.applicationTransition(ctx, appID, EdgeAppSubmit, actor, func(app *models.Application) Request {
		return Request{
			Patch: store.Row{"submitted_at": e.now().UTC()},
			Notices: func(*Outcome) []notify.Event {
				return []notify.Event{notice(app.ID, TypeApplication, "Uusi hakemus",
					"Uusi rahoitushakemus: "+companyOr(app, "Uusi yritys"), admins(""))}
			},
		}
	})
}

// AssignFinancier routes a submitted application to one financier.
func (e *Engine) AssignFinancier(ctx context.Context, appID, financierID string, actor models.Actor) (*models.Application, error) {
	return e.applicationTransition(ctx, appID, EdgeAppAssignFinancier, actor, func(app *models.Application) Request {
		return Request{
			Patch: store.Row{"assigned_financier": financierID},
			Guard: func(ctx context.Context, _ store.Row) error {
				return e.requireProfile(ctx, financierID, models.RoleFinancier)
			},
			Notices: func(*Outcome) []notify.Event {
				return []notify.Event{notice(app.ID, TypeApplication, "Uusi hakemus käsiteltäväksi",
					"Sinulle on osoitettu hakemus: "+companyOr(app, "Asiakas"), notify.User(financierID))}
			},
		}
	})
}

// RequestCreditDecision moves an application with an accepted offer into
// credit review without an accompanying message.
func (e *Engine) RequestCreditDecision(ctx context.Context, appID string, actor models.Actor) (*models.Application, error) {
	return e.applicationTransition(ctx, appID, EdgeAppRequestCreditDecision, actor, func(app *models.Application) Request {
		return Request{
			Notices: func(*Outcome) []notify.Event {
				return []notify.Event{
					withEmail(notice(app.ID, TypeApplication, "Luottopäätös käsittelyssä",
						"Rahoittaja käsittelee luottopäätöstä hakemuksellesi", notify.Customer()),
						notify.EmailSpec{Kind: email.KindGeneric, Body: "Hakemuksesi on siirtynyt luottopäätöksen käsittelyyn."}),
					notice(app.ID, TypeApplication, "Luottopäätös käsittelyssä",
						companyOr(app, "Hakemus")+" siirtyi luottopäätöksen käsittelyyn", admins(actor.ID)),
				}
			},
		}
	})
}

// ResumeApplication continues processing after the customer answered an
// info request, back to the intermediary queue or straight to the
// assigned financier.
func (e *Engine) ResumeApplication(ctx context.Context, appID string, toFinancier bool, actor models.Actor) (*models.Application, error) {
	edge := EdgeAppResume
	if toFinancier {
		edge = EdgeAppResumeFinancier
	}
	return e.applicationTransition(ctx, appID, edge, actor, func(app *models.Application) Request {
		req := Request{}
		if !toFinancier {
			return req
		}
		req.Guard = func(context.Context, store.Row) error {
			if app.AssignedFinancier == "" {
				return apperrors.NewPreconditionFailedError("application " + app.ID + " has no assigned financier")
			}
			return nil
		}
		req.Notices = func(*Outcome) []notify.Event {
			return []notify.Event{notice(app.ID, TypeApplication, "Lisätiedot vastaanotettu",
				companyOr(app, "Asiakas")+" toimitti pyydetyt lisätiedot", notify.User(app.AssignedFinancier))}
		}
		return req
	})
}

func (e *Engine) RejectApplication(ctx context.Context, appID, reason string, actor models.Actor) (*models.Application, error) {
	return e.applicationTransition(ctx, appID, EdgeAppReject, actor, func(app *models.Application) Request {
		return Request{
			Notices: func(*Outcome) []notify.Event {
				events := []notify.Event{
					withEmail(notice(app.ID, TypeApplication, "Hakemuksen tila päivitetty",
						"Hakemuksesi tila on päivittynyt. Kirjaudu sisään nähdäksesi lisätiedot.", notify.Customer()),
						notify.EmailSpec{Kind: email.KindRejected}),
				}
				if app.AssignedFinancier != "" {
					events = append(events, notice(app.ID, TypeApplication, "Hakemus hylätty",
						withReason(companyOr(app, "Hakemus")+" hylättiin", reason), notify.User(app.AssignedFinancier)))
				}
				return events
			},
		}
	})
}

func (e *Engine) CancelApplication(ctx context.Context, appID, reason string, actor models.Actor) (*models.Application, error) {
	return e.applicationTransition(ctx, appID, EdgeAppCancel, actor, func(app *models.Application) Request {
		return Request{
			Notices: func(*Outcome) []notify.Event {
				recipients := []notify.Recipient{{Customer: true}}
				if app.AssignedFinancier != "" {
					recipients = append(recipients, notify.User(app.AssignedFinancier))
				}
				return []notify.Event{notice(app.ID, TypeApplication, "Hakemus peruttu",
					withReason(companyOr(app, "Hakemus")+" peruttiin", reason), recipients...)}
			},
		}
	})
}

// applicationTransition loads the application, lets build shape the
// request and applies it with the party check prepended to any guard.
func (e *Engine) applicationTransition(ctx context.Context, appID, edge string, actor models.Actor, build func(app *models.Application) Request) (*models.Application, error) {
	app, err := loadAs[models.Application](ctx, e, models.EntityApplication, appID)
	if err != nil {
		return nil, err
	}
	req := build(app)
	req.Entity = models.EntityApplication
	req.ID = appID
	req.Edge = edge
	req.Actor = actor
	guard := req.Guard
	req.Guard = func(ctx context.Context, row store.Row) error {
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
	return decode[models.Application](out.After)
}

func (e *Engine) requireProfile(ctx context.Context, userID string, role models.Role) error {
	if userID == "" {
		return apperrors.NewValidationFailedError("user id is required")
	}
	var p models.Profile
	err := store.Load(ctx, e.store, store.TableProfiles, userID, &p)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NewPreconditionFailedError(fmt.Sprintf("user %s does not exist", userID))
	case err != nil:
		return apperrors.NewQueryExecutionFailedError("get profiles", err)
	case p.Role != role:
		return apperrors.NewPreconditionFailedError(fmt.Sprintf("user %s is %s, not %s", userID, p.Role, role))
	}
	return nil
}

func withReason(message, reason string) string {
	if strings.TrimSpace(reason) == "" {
		return message
	}
	return message + ": " + strings.TrimSpace(reason)
}
