// Package notification defines the outbound notification sink.
// Delivery is fire and forget: workflow transitions enqueue and move
// on, and a failed notification never fails the transition.
package notification

import (
	"context"
	"time"

	"medstock/internal/core/id"
)

// Kind of event being notified.
type Kind string

const (
	KindRequisitionApproved   Kind = "requisition.approved"
	KindRequisitionRejected   Kind = "requisition.rejected"
	KindRequisitionDispatched Kind = "requisition.dispatched"
	KindRequisitionDelivered  Kind = "requisition.delivered"
	KindLowStock              Kind = "stock.low"
	KindBatchRecalled         Kind = "batch.recalled"
)

// Notification is one message to one recipient. Payload carries
// structured event data for the consuming channel.
type Notification struct {
	ID          id.ID          `db:"id" json:"id"`
	Kind        Kind           `db:"kind" json:"kind"`
	RecipientID string         `db:"recipient_id" json:"recipientId"`
	Subject     string         `db:"subject" json:"subject"`
	Payload     map[string]any `db:"payload" json:"payload,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	SentAt      *time.Time     `db:"sent_at" json:"sentAt,omitempty"`
	ReadAt      *time.Time     `db:"read_at" json:"readAt,omitempty"`
}

func New(kind Kind, recipientID, subject string, payload map[string]any) Notification {
	return Notification{
		ID:          id.New(),
		Kind:        kind,
		RecipientID: recipientID,
		Subject:     subject,
		Payload:     payload,
		CreatedAt:   time.Now(),
	}
}

// Notifier is the outbound sink. Implementations must not block the
// caller's transaction and must swallow delivery errors after logging
// them.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Discard is a Notifier that drops everything. Used in tests and when
// no channel is configured.
type Discard struct{}

func (Discard) Notify(context.Context, Notification) {}
