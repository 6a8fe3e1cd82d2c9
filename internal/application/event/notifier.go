package event

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Type identifies a domain notification
type Type string

const (
	QuoteSent            Type = "quote.sent"
	QuoteApproved        Type = "quote.approved"
	QuoteRejected        Type = "quote.rejected"
	QuoteExpired         Type = "quote.expired"
	PaymentCompleted     Type = "payment.completed"
	RetainerChargeFailed Type = "retainer.charge_failed"
	RetainerPaused       Type = "retainer.paused"
)

// Event is a notification emitted by the billing core. Delivery (email, push)
// is owned by the external dispatcher; from here it is fire-and-forget and a
// delivery failure never rolls back the state transition that produced it.
type Event struct {
	Type     Type                   `json:"type"`
	TenantID uuid.UUID              `json:"tenant_id"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
}

// Notifier publishes domain events to the notification dispatcher
type Notifier interface {
	Publish(ctx context.Context, event Event)
}

// LogNotifier records events to the structured log. Stands in for the real
// dispatcher in environments without a notification pipeline; also useful as
// an audit trail alongside one.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Publish logs the event and returns immediately.
func (n *LogNotifier) Publish(ctx context.Context, event Event) {
	n.logger.Info("domain event",
		zap.String("type", string(event.Type)),
		zap.String("tenant_id", event.TenantID.String()),
		zap.Any("payload", event.Payload),
	)
}
