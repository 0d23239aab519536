package email

import (
	"context"
	"fmt"
	"sync"

	"financing-portal/internal/common/logger"

	"github.com/google/uuid"
)

// Gateway delivers one rendered message and returns the provider's message
// id.
type Gateway interface {
	Send(ctx context.Context, to, subject, html string) (string, error)
	Provider() string
}

// LogGateway records messages instead of sending them. Used in development
// and as the default provider.
type LogGateway struct {
	logger logger.Logger

	mu   sync.Mutex
	sent []SentMessage
}

type SentMessage struct {
	ID      string
	To      string
	Subject string
	HTML    string
}

func NewLogGateway(log logger.Logger) *LogGateway {
	return &LogGateway{logger: log.WithFields(map[string]interface{}{"component": "email", "provider": "log"})}
}

func (g *LogGateway) Send(_ context.Context, to, subject, html string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("email: empty recipient")
	}
	id := uuid.New().String()

	g.mu.Lock()
	g.sent = append(g.sent, SentMessage{ID: id, To: to, Subject: subject, HTML: html})
	g.mu.Unlock()

	g.logger.Info("email recorded", map[string]interface{}{
		"to":        to,
		"subject":   subject,
		"messageId": id,
	})
	return id, nil
}

func (g *LogGateway) Provider() string { return "log" }

// Sent returns a copy of every recorded message.
func (g *LogGateway) Sent() []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]SentMessage(nil), g.sent...)
}
