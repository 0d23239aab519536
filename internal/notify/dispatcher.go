package notify

import (
	"context"
	"errors"
	"strings"
	"sync"

	"financing-portal/internal/actors"
	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/logger"
	"financing-portal/internal/common/metrics"
	"financing-portal/internal/email"
	"financing-portal/internal/models"
	"financing-portal/internal/store"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Directory is the profile side of recipient resolution. Satisfied by
// *actors.Directory.
type Directory interface {
	UsersByRole(ctx context.Context, role models.Role) ([]models.Profile, error)
	Profile(ctx context.Context, userID string) (*models.Profile, error)
}

type Config struct {
	BaseURL     string
	Concurrency int
}

// Dispatcher creates one in-app notification per (event, recipient) and
// then sends the event's email best-effort. Nothing it does is reported
// back as a failure of the transition that produced the event.
type Dispatcher struct {
	store     store.EntityStore
	customers actors.Gateway
	directory Directory
	mailer    email.Gateway
	guard     Guard
	config    Config
	logger    logger.Logger
	tracer    trace.Tracer
}

func NewDispatcher(
	s store.EntityStore,
	customers actors.Gateway,
	directory Directory,
	mailer email.Gateway,
	guard Guard,
	cfg Config,
	log logger.Logger,
) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Dispatcher{
		store:     s,
		customers: customers,
		directory: directory,
		mailer:    mailer,
		guard:     guard,
		config:    cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
		tracer:    otel.Tracer("financing-portal/notify"),
	}
}

type target struct {
	userID    string
	role      models.Role
	email     string
	name      string
	sendEmail bool
}

func (t target) key() string {
	if t.userID != "" {
		return t.userID
	}
	return "email:" + strings.ToLower(t.email)
}

type emailOutcome int

const (
	emailNone emailOutcome = iota
	emailSent
	emailFailed
	emailSkipped
)

type outcome struct {
	notification string // created, duplicate, failed or ""
	email        emailOutcome
}

// Notify resolves ev's recipients and delivers to each of them
// concurrently. The returned error covers malformed events only.
func (d *Dispatcher) Notify(ctx context.Context, ev Event) (*Result, error) {
	if err := ev.validate(); err != nil {
		return nil, apperrors.NewValidationFailedError(err.Error())
	}
	if ev.ReferenceType == "" && ev.ApplicationID != "" {
		ev.ReferenceType = models.EntityApplication
		ev.ReferenceID = ev.ApplicationID
	}

	ctx, span := d.tracer.Start(ctx, "notify.Notify", trace.WithAttributes(
		attribute.String("event.id", ev.ID),
		attribute.String("application.id", ev.ApplicationID),
	))
	defer span.End()

	log := d.logger.WithFields(map[string]interface{}{
		"eventId":       ev.ID,
		"applicationId": ev.ApplicationID,
	})

	app := d.loadApplication(ctx, ev.ApplicationID, log)
	targets, unresolved := d.resolve(ctx, ev, app, log)

	res := &Result{EventID: ev.ID, Unresolved: unresolved}
	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(d.config.Concurrency)
	for _, t := range targets {
		p.Go(func() {
			out := d.deliver(ctx, ev, app, t, log)

			mu.Lock()
			defer mu.Unlock()
			switch out.notification {
			case "created":
				res.Created = append(res.Created, t.userID)
			case "duplicate":
				res.Duplicates = append(res.Duplicates, t.userID)
			case "failed":
				res.Failed++
			}
			switch out.email {
			case emailSent:
				res.EmailsSent++
			case emailFailed:
				res.EmailsFailed++
			}
		})
	}
	p.Wait()

	span.SetAttributes(
		attribute.Int("notify.created", len(res.Created)),
		attribute.Int("notify.duplicates", len(res.Duplicates)),
	)
	log.Info("event dispatched", map[string]interface{}{
		"created":      len(res.Created),
		"duplicates":   len(res.Duplicates),
		"unresolved":   res.Unresolved,
		"failed":       res.Failed,
		"emailsSent":   res.EmailsSent,
		"emailsFailed": res.EmailsFailed,
	})
	return res, nil
}

func (d *Dispatcher) loadApplication(ctx context.Context, id string, log logger.Logger) *models.Application {
	if id == "" {
		return nil
	}
	var app models.Application
	if err := store.Load(ctx, d.store, store.TableApplications, id, &app); err != nil {
		log.Warn("application lookup failed", map[string]interface{}{"error": err})
		return nil
	}
	return &app
}

func (d *Dispatcher) resolve(ctx context.Context, ev Event, app *models.Application, log logger.Logger) ([]target, int) {
	var (
		targets    []target
		index      = map[string]int{}
		unresolved int
	)
	add := func(t target) {
		if i, ok := index[t.key()]; ok {
			targets[i].sendEmail = targets[i].sendEmail || t.sendEmail
			return
		}
		index[t.key()] = len(targets)
		targets = append(targets, t)
	}
	skip := func(details string) {
		unresolved++
		metrics.Notifications.WithLabelValues("unresolved").Inc()
		stdErr := apperrors.NewRecipientUnresolvedError(ev.ID, details)
		log.Warn("recipient unresolved", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
	}

	for _, r := range ev.Recipients {
		switch {
		case r.UserID != "":
			add(target{userID: r.UserID, role: r.Role, sendEmail: r.Email})

		case r.Customer:
			if app == nil {
				skip("customer requested without an application")
				continue
			}
			userID, err := d.customers.ResolveCustomerUserID(ctx, app)
			if err != nil {
				log.Warn("customer resolution failed", map[string]interface{}{"error": err})
			}
			if userID == "" {
				skip("no customer account for " + app.ContactEmail)
				// the contact still gets the email
				if r.Email && ev.Email != nil && app.ContactEmail != "" {
					add(target{role: models.RoleCustomer, email: app.ContactEmail, name: app.CustomerName(), sendEmail: true})
				}
				continue
			}
			add(target{
				userID:    userID,
				role:      models.RoleCustomer,
				email:     app.ContactEmail,
				name:      app.CustomerName(),
				sendEmail: r.Email,
			})

		case r.Role != "":
			profiles, err := d.directory.UsersByRole(ctx, r.Role)
			if err != nil {
				skip("role lookup failed for " + string(r.Role) + ": " + err.Error())
				continue
			}
			for _, p := range profiles {
				if p.ID == r.Exclude {
					continue
				}
				add(target{userID: p.ID, role: p.Role, email: p.Email, name: p.FullName, sendEmail: r.Email})
			}

		default:
			skip("empty recipient selector")
		}
	}
	return targets, unresolved
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event, app *models.Application, t target, log logger.Logger) outcome {
	var out outcome
	log = log.WithFields(map[string]interface{}{"recipient": t.key()})

	if t.userID != "" && (t.role == "" || (t.sendEmail && t.email == "")) {
		d.completeTarget(ctx, &t, log)
	}

	link := ev.Link
	if link == "" {
		link = Link(d.config.BaseURL, t.role, ev.ApplicationID)
	}

	if t.userID != "" {
		n := models.Notification{
			UserID:        t.userID,
			Title:         ev.Title,
			Message:       ev.Message,
			Link:          link,
			Type:          ev.Type,
			ReferenceType: ev.ReferenceType,
			ReferenceID:   ev.ReferenceID,
			DedupeKey:     DedupeKey(ev.ID, t.userID),
		}
		err := store.InsertModel(ctx, d.store, store.TableNotifications, &n)
		switch {
		case errors.Is(err, store.ErrConflict):
			metrics.Notifications.WithLabelValues("duplicate").Inc()
			log.Debug("notification already exists", nil)
			out.notification = "duplicate"
			return out
		case err != nil:
			metrics.Notifications.WithLabelValues("failed").Inc()
			log.Error("failed to create notification", map[string]interface{}{"error": err})
			out.notification = "failed"
			return out
		}
		metrics.Notifications.WithLabelValues("created").Inc()
		out.notification = "created"
	}

	if t.sendEmail && ev.Email != nil {
		out.email = d.sendEmail(ctx, ev, app, t, link, log)
	}
	return out
}

func (d *Dispatcher) completeTarget(ctx context.Context, t *target, log logger.Logger) {
	p, err := d.directory.Profile(ctx, t.userID)
	if err != nil {
		log.Debug("profile lookup failed", map[string]interface{}{"error": err})
		return
	}
	if t.role == "" {
		t.role = p.Role
	}
	if t.email == "" {
		t.email = p.Email
	}
	if t.name == "" {
		t.name = p.FullName
	}
}

func (d *Dispatcher) sendEmail(ctx context.Context, ev Event, app *models.Application, t target, link string, log logger.Logger) emailOutcome {
	if d.mailer == nil {
		return emailNone
	}
	if t.email == "" {
		stdErr := apperrors.NewRecipientUnresolvedError(ev.ID, "no email address for "+t.key())
		log.Warn("email recipient unresolved", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
		return emailNone
	}

	key := DedupeKey(ev.ID, t.key())
	if d.guard != nil {
		acquired, err := d.guard.Acquire(ctx, key)
		switch {
		case err != nil:
			log.Warn("email guard unavailable, sending anyway", map[string]interface{}{"error": err})
		case !acquired:
			metrics.EmailDeliveries.WithLabelValues(d.mailer.Provider(), "skipped").Inc()
			log.Debug("email already sent for event", nil)
			return emailSkipped
		}
	}

	data := email.Data{
		CustomerName: t.name,
		Link:         link,
		CustomBody:   ev.Email.Body,
		Subject:      ev.Email.Subject,
	}
	if app != nil {
		data.CompanyName = app.CompanyName
		data.ReferenceNumber = app.ReferenceNumber
	}
	subject, body := email.Render(ev.Email.Kind, data)

	messageID, err := d.mailer.Send(ctx, t.email, subject, body)
	if err != nil {
		stdErr := apperrors.NewDeliveryFailedError(d.mailer.Provider(), err)
		metrics.EmailDeliveries.WithLabelValues(d.mailer.Provider(), "failed").Inc()
		log.Warn("email delivery failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
			"to":        t.email,
		})
		if d.guard != nil {
			if relErr := d.guard.Release(ctx, key); relErr != nil {
				log.Warn("failed to release email guard", map[string]interface{}{"error": relErr})
			}
		}
		return emailFailed
	}

	metrics.EmailDeliveries.WithLabelValues(d.mailer.Provider(), "sent").Inc()
	log.Info("email sent", map[string]interface{}{
		"to":        t.email,
		"kind":      string(ev.Email.Kind),
		"messageId": messageID,
	})
	return emailSent
}
