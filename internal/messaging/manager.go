package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/logger"
	"financing-portal/internal/email"
	"financing-portal/internal/models"
	"financing-portal/internal/notify"
	"financing-portal/internal/store"
	"financing-portal/internal/workflow"
)

// Manager records info requests and replies and moves the application
// through INFO_REQUESTED / INFO_RECEIVED (or credit review) alongside.
type Manager struct {
	engine   *workflow.Engine
	store    store.EntityStore
	notifier workflow.Notifier
	logger   logger.Logger
	now      func() time.Time
}

func NewManager(engine *workflow.Engine, notifier workflow.Notifier, log logger.Logger) *Manager {
	return &Manager{
		engine:   engine,
		store:    engine.Store(),
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "messaging"}),
		now:      time.Now,
	}
}

type InfoRequest struct {
	ApplicationID      string
	Body               string
	RequestedDocuments []string
}

type Reply struct {
	ParentMessageID string
	// ApplicationID, when set, must match the parent's application.
	ApplicationID string
	Body          string
}

// CreateRequest stores an info request. An application with an accepted
// offer goes to CREDIT_DECISION_PENDING, any other to INFO_REQUESTED; one
// already there only gets the message.
func (m *Manager) CreateRequest(ctx context.Context, in InfoRequest, actor models.Actor) (*models.Message, error) {
	if actor.Role != models.RoleIntermediary && actor.Role != models.RoleFinancier {
		return nil, apperrors.NewRoleNotPermittedError(string(actor.Role), "message.request", "", "")
	}
	if strings.TrimSpace(in.Body) == "" {
		return nil, apperrors.NewValidationFailedError("message body is required")
	}

	var app models.Application
	if err := m.loadApplication(ctx, in.ApplicationID, &app); err != nil {
		return nil, err
	}
	if err := m.engine.CheckParty(ctx, &app, actor); err != nil {
		return nil, err
	}

	edge, target := workflow.EdgeAppRequestInfo, models.ApplicationInfoRequested
	if app.Status == models.ApplicationOfferAccepted || app.Status == models.ApplicationCreditDecisionPending {
		edge, target = workflow.EdgeAppRequestCreditDecision, models.ApplicationCreditDecisionPending
	}

	msg := models.Message{
		ApplicationID:      app.ID,
		SenderID:           actor.ID,
		SenderRole:         actor.Role,
		Body:               strings.TrimSpace(in.Body),
		IsInfoRequest:      true,
		RequestedDocuments: in.RequestedDocuments,
		CreatedAt:          m.now().UTC().Truncate(time.Microsecond),
	}
	notices := func() []notify.Event {
		return m.requestNotices(&app, &msg, actor)
	}

	if app.Status == target {
		if err := m.insert(ctx, &msg); err != nil {
			return nil, err
		}
		m.notifyDirect(ctx, "message:"+msg.ID, notices())
		return &msg, nil
	}

	_, err := m.engine.Apply(ctx, workflow.Request{
		Entity: models.EntityApplication,
		ID:     app.ID,
		Edge:   edge,
		Actor:  actor,
		Record: func(ctx context.Context, _ *workflow.Outcome) error {
			return m.insert(ctx, &msg)
		},
		Notices: func(*workflow.Outcome) []notify.Event { return notices() },
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("info request created", map[string]interface{}{
		"applicationId": app.ID,
		"messageId":     msg.ID,
		"status":        string(target),
	})
	return &msg, nil
}

// CreateReply answers an info request. A customer reply to an application
// waiting in INFO_REQUESTED moves it to INFO_RECEIVED.
func (m *Manager) CreateReply(ctx context.Context, in Reply, actor models.Actor) (*models.Message, error) {
	if !actor.Role.Valid() || actor.Role == models.RoleSystem {
		return nil, apperrors.NewRoleNotPermittedError(string(actor.Role), "message.reply", "", "")
	}
	if strings.TrimSpace(in.Body) == "" {
		return nil, apperrors.NewValidationFailedError("message body is required")
	}

	var parent models.Message
	err := store.Load(ctx, m.store, store.TableMessages, in.ParentMessageID, &parent)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperrors.NewInvalidParentMessageError("message " + in.ParentMessageID + " does not exist")
	case err != nil:
		return nil, apperrors.NewQueryExecutionFailedError("get messages", err)
	}
	if in.ApplicationID != "" && in.ApplicationID != parent.ApplicationID {
		return nil, apperrors.NewInvalidParentMessageError(fmt.Sprintf("message %s belongs to application %s, not %s",
			parent.ID, parent.ApplicationID, in.ApplicationID))
	}
	if !parent.IsInfoRequest {
		return nil, apperrors.NewInvalidParentMessageError("message " + parent.ID + " is not an info request")
	}

	var app models.Application
	if err := m.loadApplication(ctx, parent.ApplicationID, &app); err != nil {
		return nil, err
	}
	if err := m.engine.CheckParty(ctx, &app, actor); err != nil {
		return nil, err
	}

	createdAt := m.now().UTC().Truncate(time.Microsecond)
	if !createdAt.After(parent.CreatedAt) {
		createdAt = parent.CreatedAt.Add(time.Microsecond)
	}
	reply := models.Message{
		ApplicationID:   parent.ApplicationID,
		SenderID:        actor.ID,
		SenderRole:      actor.Role,
		Body:            strings.TrimSpace(in.Body),
		ParentMessageID: parent.ID,
		CreatedAt:       createdAt,
	}
	notices := func() []notify.Event {
		return m.replyNotices(&app, &parent, actor)
	}

	if actor.Role != models.RoleCustomer || app.Status != models.ApplicationInfoRequested {
		if err := m.insert(ctx, &reply); err != nil {
			return nil, err
		}
		m.notifyDirect(ctx, "message:"+reply.ID, notices())
		return &reply, nil
	}

	_, err = m.engine.Apply(ctx, workflow.Request{
		Entity: models.EntityApplication,
		ID:     app.ID,
		Edge:   workflow.EdgeAppInfoReceived,
		Actor:  actor,
		Record: func(ctx context.Context, _ *workflow.Outcome) error {
			return m.insert(ctx, &reply)
		},
		Notices: func(*workflow.Outcome) []notify.Event { return notices() },
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("info request answered", map[string]interface{}{
		"applicationId": app.ID,
		"requestId":     parent.ID,
		"messageId":     reply.ID,
	})
	return &reply, nil
}

// Thread returns the request with id requestID and its replies.
func (m *Manager) Thread(ctx context.Context, requestID string) (*Thread, error) {
	var request models.Message
	err := store.Load(ctx, m.store, store.TableMessages, requestID, &request)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperrors.NewEntityNotFoundError(string(models.EntityMessage), requestID)
	case err != nil:
		return nil, apperrors.NewQueryExecutionFailedError("get messages", err)
	}
	replies, err := store.LoadAll[models.Message](ctx, m.store, store.TableMessages,
		store.Filter{store.Eq("parent_message_id", request.ID)}, store.OldestFirst())
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("query replies", err)
	}
	t := newThread(request, replies)
	return &t, nil
}

// Threads lists every info request thread on an application, oldest first.
func (m *Manager) Threads(ctx context.Context, applicationID string) ([]Thread, error) {
	all, err := store.LoadAll[models.Message](ctx, m.store, store.TableMessages,
		store.Filter{store.Eq("application_id", applicationID)}, store.OldestFirst())
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("query messages", err)
	}

	replies := map[string][]models.Message{}
	for _, msg := range all {
		if msg.ParentMessageID != "" {
			replies[msg.ParentMessageID] = append(replies[msg.ParentMessageID], msg)
		}
	}
	var threads []Thread
	for _, msg := range all {
		if msg.IsInfoRequest && msg.ParentMessageID == "" {
			threads = append(threads, newThread(msg, replies[msg.ID]))
		}
	}
	return threads, nil
}

func (m *Manager) requestNotices(app *models.Application, msg *models.Message, actor models.Actor) []notify.Event {
	body := msg.Body
	if len(msg.RequestedDocuments) > 0 {
		body += "\n\nPyydetyt dokumentit: " + strings.Join(msg.RequestedDocuments, ", ")
	}
	events := []notify.Event{{
		ApplicationID: app.ID,
		Recipients:    []notify.Recipient{notify.Customer()},
		Title:         "Lisätietopyyntö",
		Message:       "Sinulle on lisätietopyyntö",
		Type:          workflow.TypeMessage,
		ReferenceType: models.EntityMessage,
		ReferenceID:   msg.ID,
		Email:         &notify.EmailSpec{Kind: email.KindInfoRequest, Body: body},
	}}
	if actor.Role == models.RoleFinancier {
		events = append(events, notify.Event{
			ApplicationID: app.ID,
			Recipients:    []notify.Recipient{notify.AllWithRole(models.RoleIntermediary, "")},
			Title:         "Rahoittaja pyysi lisätietoja",
			Message:       companyOrCustomer(app) + ": " + msg.Body,
			Type:          workflow.TypeMessage,
			ReferenceType: models.EntityMessage,
			ReferenceID:   msg.ID,
		})
	}
	return events
}

// replyNotices tells the requester about the reply. A financier's request
// also informs every intermediary; an intermediary's request informs the
// other intermediaries.
func (m *Manager) replyNotices(app *models.Application, request *models.Message, actor models.Actor) []notify.Event {
	var recipients []notify.Recipient
	if request.SenderID != actor.ID {
		recipients = append(recipients, notify.Recipient{UserID: request.SenderID, Role: request.SenderRole})
	}
	switch request.SenderRole {
	case models.RoleFinancier:
		recipients = append(recipients, notify.AllWithRole(models.RoleIntermediary, actor.ID))
	case models.RoleIntermediary:
		exclude := request.SenderID
		if actor.Role == models.RoleIntermediary {
			exclude = actor.ID
		}
		recipients = append(recipients, notify.AllWithRole(models.RoleIntermediary, exclude))
	}
	if len(recipients) == 0 {
		return nil
	}
	return []notify.Event{{
		ApplicationID: app.ID,
		Recipients:    recipients,
		Title:         "Vastaus lisätietopyyntöön",
		Message:       companyOrCustomer(app) + " vastasi lisätietopyyntöön",
		Type:          workflow.TypeMessage,
		ReferenceType: models.EntityMessage,
		ReferenceID:   request.ID,
	}}
}

func (m *Manager) notifyDirect(ctx context.Context, baseID string, events []notify.Event) {
	if m.notifier == nil {
		return
	}
	for i, ev := range events {
		ev.ID = fmt.Sprintf("%s#%d", baseID, i)
		if _, err := m.notifier.Notify(ctx, ev); err != nil {
			m.logger.Warn("notification dispatch failed", map[string]interface{}{
				"eventId": ev.ID,
				"error":   err,
			})
		}
	}
}

func (m *Manager) insert(ctx context.Context, msg *models.Message) error {
	if err := store.InsertModel(ctx, m.store, store.TableMessages, msg); err != nil {
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

func (m *Manager) loadApplication(ctx context.Context, id string, out *models.Application) error {
	err := store.Load(ctx, m.store, store.TableApplications, id, out)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NewEntityNotFoundError(string(models.EntityApplication), id)
	case err != nil:
		return apperrors.NewQueryExecutionFailedError("get applications", err)
	}
	return nil
}

func companyOrCustomer(app *models.Application) string {
	if app.CompanyName != "" {
		return app.CompanyName
	}
	return "Asiakas"
}
