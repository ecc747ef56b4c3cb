// Package events carries the domain events the core emits for external
// notification/messaging collaborators. Delivery and retry are out of scope;
// the default publisher only logs.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	TypeEntityCreated       = "EntityCreated"
	TypeJobPosted           = "JobPosted"
	TypeJobStatusChanged    = "JobStatusChanged"
	TypeQuoteSubmitted      = "QuoteSubmitted"
	TypeQuoteAccepted       = "QuoteAccepted"
	TypeAssignmentCreated   = "AssignmentCreated"
	TypeAssignmentCompleted = "AssignmentCompleted"
)

// Event describes a committed domain fact. Subject is the id of the aggregate
// the event is about.
type Event struct {
	Type    string    `json:"type"`
	Subject string    `json:"subject"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// Publisher receives events after the owning operation has committed.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// ZapPublisher logs events; stands in until a real broker is attached.
type ZapPublisher struct {
	l *zap.Logger
}

func NewZapPublisher(l *zap.Logger) *ZapPublisher {
	return &ZapPublisher{l: l}
}

func (p *ZapPublisher) Publish(_ context.Context, e Event) {
	p.l.Info("domain event",
		zap.String("type", e.Type),
		zap.String("subject", e.Subject),
		zap.Time("at", e.At),
		zap.Any("payload", e.Payload),
	)
}
