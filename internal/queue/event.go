// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the background consumer.
package queue

import "time"

// Routing keys on the lifecycle exchange.
const (
	KeyBookingCreated = "booking.created"
	KeyPaymentSuccess = "payment.success"
)

// LifecycleEvent is published after a lifecycle notification is recorded.
// It carries enough for downstream consumers to log or notify without
// querying the primary database.
type LifecycleEvent struct {
	NotificationID uint64    `json:"notification_id"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	BookingID      *uint64   `json:"booking_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// RoutingKey maps a notification type to its routing key.  Unknown types
// are published under "notification.<type>".
func RoutingKey(notificationType string) string {
	switch notificationType {
	case "booking_created":
		return KeyBookingCreated
	case "payment_success":
		return KeyPaymentSuccess
	default:
		return "notification." + notificationType
	}
}
