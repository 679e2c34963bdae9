package model

import "time"

// Notification types emitted by the booking lifecycle.
const (
	NotificationGeneral        = "general"
	NotificationBookingCreated = "booking_created"
	NotificationPaymentSuccess = "payment_success"
)

// Notification is an append-only lifecycle event.  Only IsRead changes
// after insert.  BookingID is cleared by the store when its booking is
// deleted.
//
// Fields:
//  ID        – primary key identifier.
//  Title     – short headline.
//  Message   – human-readable body.
//  Type      – free-form type tag (booking_created, payment_success, ...).
//  BookingID – weak reference to the booking, if any.
//  IsRead    – read flag.
//  CreatedAt – creation timestamp.
//  Contacts  – name/phone of every visitor on the referenced booking.
type Notification struct {
	ID        uint64           `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      string           `json:"type"`
	BookingID *uint64          `json:"booking_id"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
	Contacts  []VisitorContact `json:"person_details"`
}
