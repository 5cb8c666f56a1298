package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lifecycle event types published on the telemetry hub.
const (
	EventProxyCreated      = "proxy.created"
	EventProxyUpdated      = "proxy.updated"
	EventProxyRemoved      = "proxy.removed"
	EventProxyRolledBack   = "proxy.rolled_back"
	EventProxyRollbackFail = "proxy.rollback_failed"
	EventProxyReloadFailed = "proxy.reload_failed"
	EventCertificateIssued = "certificate.issued"
	EventCertificateFailed = "certificate.failed"
	EventSitesSwept        = "sites.sweep"
	EventSitesChanged      = "sites.changed"
)

// TopicNginx is the hub topic carrying everything that touches site configs.
const TopicNginx = "nginx"

type LifecycleEvent struct {
	ID      uuid.UUID `json:"id"`
	Type    string    `json:"type"`
	Proxy   string    `json:"proxy,omitempty"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// NewLifecycleEvent stamps a fresh id and time onto an event.
func NewLifecycleEvent(eventType, proxy, message string) LifecycleEvent {
	return LifecycleEvent{
		ID:      uuid.New(),
		Type:    eventType,
		Proxy:   proxy,
		Message: message,
		Time:    time.Now().UTC(),
	}
}

// EventPublisher is satisfied by the telemetry hub.
type EventPublisher interface {
	Broadcast(topic string, event LifecycleEvent)
}

// AuditEvent is one completed operation, successful or not.
type AuditEvent struct {
	ID         uuid.UUID `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	Outcome    string    `json:"outcome"`
	Message    string    `json:"message"`
}

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuditRepository persists audit events. Implementations must be safe for
// concurrent use.
type AuditRepository interface {
	Record(ctx context.Context, event *AuditEvent) error
	List(ctx context.Context, limit int) ([]AuditEvent, error)
}
