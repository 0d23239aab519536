package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"financing-portal/internal/actors"
	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/logger"
	"financing-portal/internal/common/metrics"
	"financing-portal/internal/models"
	"financing-portal/internal/notify"
	"financing-portal/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// EventSink receives one TransitionEvent per applied status write.
type EventSink interface {
	Record(ctx context.Context, ev models.TransitionEvent) error
}

// Notifier is satisfied by *notify.Dispatcher.
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event) (*notify.Result, error)
}

// Request describes one transition: the primary write plus any
// counter-party writes that must accompany it.
type Request struct {
	Entity models.EntityType
	ID     string
	Edge   string
	Actor  models.Actor
	// Patch is written together with the new status.
	Patch store.Row
	// Guard runs after the state and role checks and before any write.
	Guard   func(ctx context.Context, current store.Row) error
	Cascade []Cascade
	// Record runs after every status write succeeded; an error reverts them.
	Record func(ctx context.Context, out *Outcome) error
	// Notices builds the notifications sent once everything is applied.
	Notices func(out *Outcome) []notify.Event
}

// Cascade is a counter-party status write applied after the primary one.
type Cascade struct {
	Entity models.EntityType
	ID     string
	Edge   string
	Patch  store.Row
	// Optional skips the step when the entity already sits at the edge's
	// target status.
	Optional bool
}

type Outcome struct {
	Before store.Row
	After  store.Row
	Events []models.TransitionEvent
	// Cascaded holds the final row of every cascaded entity by id.
	Cascaded map[string]store.Row
}

// EventID is the id of the primary TransitionEvent.
func (o *Outcome) EventID() string {
	if len(o.Events) == 0 {
		return ""
	}
	return o.Events[0].ID
}

type Engine struct {
	store     store.EntityStore
	customers actors.Gateway
	notifier  Notifier
	sinks     []EventSink
	logger    logger.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewEngine builds the engine. A nil customers gateway resolves customers
// from the store alone.
func NewEngine(s store.EntityStore, customers actors.Gateway, notifier Notifier, log logger.Logger, sinks ...EventSink) *Engine {
	log = log.WithFields(map[string]interface{}{"component": "workflow"})
	if customers == nil {
		customers = actors.NewCustomerResolver(s, nil, log)
	}
	return &Engine{
		store:     s,
		customers: customers,
		notifier:  notifier,
		sinks:     sinks,
		logger:    log,
		tracer:    otel.Tracer("financing-portal/workflow"),
		now:       time.Now,
	}
}

// Store exposes the engine's store to the action helpers of other packages.
func (e *Engine) Store() store.EntityStore {
	return e.store
}

// write is one applied status change, kept for compensation and events.
type write struct {
	entity  models.EntityType
	id      string
	edge    *Edge
	from    models.Status
	patch   store.Row
	before  store.Row
	after   store.Row
	cascade bool
}

// Apply validates and applies req. Errors returned before the primary write
// leave every entity untouched; notification problems after the writes are
// logged only.
func (e *Engine) Apply(ctx context.Context, req Request) (*Outcome, error) {
	edge, ok := Lookup(req.Edge)
	if !ok || edge.Entity != req.Entity {
		return nil, fmt.Errorf("workflow: unknown edge %q for %s", req.Edge, req.Entity)
	}

	ctx, span := e.tracer.Start(ctx, "workflow.Apply", trace.WithAttributes(
		attribute.String("edge", edge.Name),
		attribute.String("entity.type", string(req.Entity)),
		attribute.String("entity.id", req.ID),
		attribute.String("actor.role", string(req.Actor.Role)),
	))
	defer span.End()

	log := e.logger.WithFields(map[string]interface{}{
		"edge":     edge.Name,
		"entityId": req.ID,
		"actorId":  req.Actor.ID,
	})

	out, err := e.apply(ctx, req, edge, log)
	if err != nil {
		code := string(apperrors.CodeOf(err))
		if code == "" {
			code = "ERROR"
		}
		metrics.Transitions.WithLabelValues(string(edge.Entity), string(edge.To), code).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		log.Warn("transition rejected", map[string]interface{}{"errorCode": code, "error": err.Error()})
		return nil, err
	}
	metrics.Transitions.WithLabelValues(string(edge.Entity), string(edge.To), "applied").Inc()

	e.emit(ctx, out.Events, log)
	e.dispatch(ctx, req, out, log)
	return out, nil
}

func (e *Engine) apply(ctx context.Context, req Request, edge *Edge, log logger.Logger) (*Outcome, error) {
	table := req.Entity.Table()
	current, err := e.load(ctx, req.Entity, req.ID)
	if err != nil {
		return nil, err
	}
	from := models.Status(current.String("status"))

	if !edge.allowsFrom(from) {
		return nil, apperrors.NewInvalidTransitionError(string(req.Entity), req.ID, string(from), string(edge.To))
	}
	if !edge.allowsRole(req.Actor.Role) {
		return nil, apperrors.NewRoleNotPermittedError(string(req.Actor.Role), string(req.Entity), string(from), string(edge.To))
	}
	if req.Guard != nil {
		if err := req.Guard(ctx, current); err != nil {
			return nil, err
		}
	}

	planned, err := e.precheck(ctx, req.Cascade)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	patch := statusPatch(edge.To, req.Patch, now)
	after, err := e.store.UpdateWhere(ctx, table, req.ID, string(from), patch)
	if err != nil {
		return nil, e.mapWriteError(ctx, req.Entity, req.ID, from, edge.To, current, err)
	}

	applied := []write{{entity: req.Entity, id: req.ID, edge: edge, from: from, patch: patch, before: current, after: after}}
	for _, step := range planned {
		step.patch = statusPatch(step.edge.To, step.patch, now)
		row, err := e.store.UpdateWhere(ctx, step.entity.Table(), step.id, string(step.from), step.patch)
		if err != nil {
			cause := e.mapWriteError(ctx, step.entity, step.id, step.from, step.edge.To, step.before, err)
			return nil, e.compensate(ctx, applied, cause, log)
		}
		step.after = row
		applied = append(applied, step)
	}

	out := &Outcome{Before: current, After: after, Cascaded: map[string]store.Row{}}
	for _, w := range applied[1:] {
		out.Cascaded[w.id] = w.after
	}
	if req.Record != nil {
		if err := req.Record(ctx, out); err != nil {
			return nil, e.compensate(ctx, applied, err, log)
		}
	}

	for _, w := range applied {
		out.Events = append(out.Events, e.event(w, req.Actor, now))
	}
	log.Info("transition applied", map[string]interface{}{
		"from":     string(from),
		"to":       string(edge.To),
		"cascaded": len(applied) - 1,
	})
	return out, nil
}

// precheck verifies every cascade step against the state it will see once
// the earlier steps are applied.
func (e *Engine) precheck(ctx context.Context, steps []Cascade) ([]write, error) {
	simulated := map[string]models.Status{}
	var planned []write
	for _, c := range steps {
		edge, ok := Lookup(c.Edge)
		if !ok || edge.Entity != c.Entity {
			return nil, fmt.Errorf("workflow: unknown cascade edge %q for %s", c.Edge, c.Entity)
		}
		row, err := e.load(ctx, c.Entity, c.ID)
		if err != nil {
			return nil, err
		}
		from := models.Status(row.String("status"))
		if s, ok := simulated[c.ID]; ok {
			from = s
		}
		if c.Optional && from == edge.To {
			continue
		}
		if !edge.allowsFrom(from) {
			return nil, apperrors.NewInvalidTransitionError(string(c.Entity), c.ID, string(from), string(edge.To))
		}
		simulated[c.ID] = edge.To
		planned = append(planned, write{entity: c.Entity, id: c.ID, edge: edge, from: from, patch: c.Patch, before: row, cascade: true})
	}
	return planned, nil
}

// compensate reverts applied writes newest first. When a revert fails the
// caller learns exactly which writes remain.
func (e *Engine) compensate(ctx context.Context, applied []write, cause error, log logger.Logger) error {
	var remaining []string
	for i := len(applied) - 1; i >= 0; i-- {
		w := applied[i]
		revert := make(store.Row, len(w.patch))
		for k := range w.patch {
			revert[k] = w.before[k]
		}
		revert["status"] = string(w.from)
		if _, err := e.store.UpdateWhere(ctx, w.entity.Table(), w.id, string(w.edge.To), revert); err != nil {
			log.Error("compensation failed", map[string]interface{}{
				"entity": string(w.entity),
				"id":     w.id,
				"error":  err,
			})
			for j := 0; j <= i; j++ {
				remaining = append(remaining, fmt.Sprintf("%s:%s:%s", applied[j].entity, applied[j].id, applied[j].edge.To))
			}
			return apperrors.NewPartialTransitionError(remaining, cause)
		}
		log.Warn("write compensated", map[string]interface{}{
			"entity": string(w.entity),
			"id":     w.id,
			"status": string(w.from),
		})
	}
	return cause
}

func (e *Engine) load(ctx context.Context, entity models.EntityType, id string) (store.Row, error) {
	row, err := e.store.Get(ctx, entity.Table(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperrors.NewEntityNotFoundError(string(entity), id)
	case err != nil:
		return nil, apperrors.NewQueryExecutionFailedError("get "+entity.Table(), err)
	}
	return row, nil
}

func (e *Engine) mapWriteError(ctx context.Context, entity models.EntityType, id string, from, to models.Status, current store.Row, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NewEntityNotFoundError(string(entity), id)
	case errors.Is(err, store.ErrConflict):
		if entity == models.EntityOffer && to == models.OfferAccepted {
			appID := current.String("application_id")
			if accepted := e.acceptedOffer(ctx, appID, id); accepted != "" {
				return apperrors.NewConflictingOfferError(appID, accepted)
			}
		}
		return apperrors.NewConflictingTransitionError(string(entity), id, string(from), string(to))
	}
	return apperrors.NewQueryExecutionFailedError("update "+entity.Table(), err)
}

// acceptedOffer returns the id of an ACCEPTED offer on appID other than
// exceptID, or "".
func (e *Engine) acceptedOffer(ctx context.Context, appID, exceptID string) string {
	rows, err := e.store.Query(ctx, store.TableOffers, store.Filter{
		store.Eq("application_id", appID),
		store.Eq("status", string(models.OfferAccepted)),
	})
	if err != nil {
		return ""
	}
	for _, r := range rows {
		if id := r.String("id"); id != exceptID {
			return id
		}
	}
	return ""
}

func (e *Engine) event(w write, actor models.Actor, at time.Time) models.TransitionEvent {
	appID := w.after.String("application_id")
	if w.entity == models.EntityApplication {
		appID = w.id
	}
	return models.TransitionEvent{
		ID:            uuid.New().String(),
		EntityType:    w.entity,
		EntityID:      w.id,
		ApplicationID: appID,
		From:          w.from,
		To:            w.edge.To,
		Actor:         actor,
		Edge:          w.edge.Name,
		Cascade:       w.cascade,
		OccurredAt:    at,
	}
}

func (e *Engine) emit(ctx context.Context, events []models.TransitionEvent, log logger.Logger) {
	for _, ev := range events {
		for _, sink := range e.sinks {
			if err := sink.Record(ctx, ev); err != nil {
				log.Warn("event sink failed", map[string]interface{}{
					"eventId": ev.ID,
					"error":   err,
				})
			}
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, req Request, out *Outcome, log logger.Logger) {
	if req.Notices == nil || e.notifier == nil {
		return
	}
	for i, n := range req.Notices(out) {
		n.ID = fmt.Sprintf("%s#%d", out.EventID(), i)
		e.notifyBestEffort(ctx, n, log)
	}
}

func (e *Engine) notifyBestEffort(ctx context.Context, n notify.Event, log logger.Logger) {
	if e.notifier == nil {
		return
	}
	if _, err := e.notifier.Notify(ctx, n); err != nil {
		log.Warn("notification dispatch failed", map[string]interface{}{
			"eventId": n.ID,
			"error":   err,
		})
	}
}

func statusPatch(to models.Status, patch store.Row, now time.Time) store.Row {
	out := make(store.Row, len(patch)+2)
	for k, v := range patch {
		out[k] = v
	}
	out["status"] = string(to)
	out["updated_at"] = now
	return out
}
