package workflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/metrics"
	"financing-portal/internal/models"
	"financing-portal/internal/notify"
	"financing-portal/internal/store"

	"github.com/google/uuid"
)

func decode[T any](row store.Row) (*T, error) {
	var v T
	if err := models.FromRow(row, &v); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return &v, nil
}

func loadAs[T any](ctx context.Context, e *Engine, entity models.EntityType, id string) (*T, error) {
	row, err := e.load(ctx, entity, id)
	if err != nil {
		return nil, err
	}
	return decode[T](row)
}

// jsonValue converts a nested value into the map form the store writes as
// JSON.
func jsonValue(v interface{}) (map[string]interface{}, error) {
	return models.ToRow(v)
}

func randomHex(n int) string {
	b := make([]byte, (n+1)/2)
	if _, err := rand.Read(b); err != nil {
		return strings.ReplaceAll(uuid.New().String(), "-", "")[:n]
	}
	return hex.EncodeToString(b)[:n]
}

// ReferenceNumber formats an application reference, JR-<yyyymmdd>-<hex>.
func ReferenceNumber(now time.Time) string {
	return fmt.Sprintf("JR-%s-%s", now.UTC().Format("20060102"), randomHex(6))
}

// ContractNumber formats a contract number, <year>-<HEX>.
func ContractNumber(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UTC().Year(), strings.ToUpper(randomHex(6)))
}

// requireRole rejects actors outside roles for operations that are not
// status transitions.
func requireRole(actor models.Actor, op string, roles ...models.Role) error {
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return apperrors.NewRoleNotPermittedError(string(actor.Role), op, "", "")
}

// CheckParty restricts customers to their own applications and financiers
// to applications assigned to them. The customer is resolved through the
// actor gateway first; while nobody resolves, no customer passes.
func (e *Engine) CheckParty(ctx context.Context, app *models.Application, actor models.Actor) error {
	switch actor.Role {
	case models.RoleCustomer:
		customerID, err := e.customers.ResolveCustomerUserID(ctx, app)
		if err != nil {
			return apperrors.NewExternalServiceError("customer resolution", err)
		}
		if customerID == "" || customerID != actor.ID {
			return apperrors.NewRoleNotPermittedError(string(actor.Role), "application "+app.ID, string(app.Status), "")
		}
	case models.RoleFinancier:
		if app.AssignedFinancier != "" && app.AssignedFinancier != actor.ID {
			return apperrors.NewRoleNotPermittedError(string(actor.Role), "application "+app.ID, string(app.Status), "")
		}
	}
	return nil
}

// recordCreation emits the creation of a new entity as a transition from
// the empty status.
func (e *Engine) recordCreation(ctx context.Context, entity models.EntityType, row store.Row, actor models.Actor, name string) models.TransitionEvent {
	appID := row.String("application_id")
	if entity == models.EntityApplication {
		appID = row.String("id")
	}
	ev := models.TransitionEvent{
		ID:            uuid.New().String(),
		EntityType:    entity,
		EntityID:      row.String("id"),
		ApplicationID: appID,
		To:            models.Status(row.String("status")),
		Actor:         actor,
		Edge:          name,
		OccurredAt:    e.now().UTC(),
	}
	metrics.Transitions.WithLabelValues(string(entity), string(ev.To), "created").Inc()
	e.emit(ctx, []models.TransitionEvent{ev}, e.logger)
	return ev
}

func notice(appID, typ, title, message string, recipients ...notify.Recipient) notify.Event {
	return notify.Event{
		ApplicationID: appID,
		Recipients:    recipients,
		Title:         title,
		Message:       message,
		Type:          typ,
	}
}

func withEmail(ev notify.Event, spec notify.EmailSpec) notify.Event {
	ev.Email = &spec
	return ev
}

func admins(exclude string) notify.Recipient {
	return notify.AllWithRole(models.RoleIntermediary, exclude)
}

func companyOr(app *models.Application, fallback string) string {
	if app != nil && app.CompanyName != "" {
		return app.CompanyName
	}
	return fallback
}
