package model

import "time"

// Booking records a time-slot reservation for the attraction.  A booking
// owns its visitors and is mutated after creation only by payment
// confirmation (paid, amount, payment_ref).
//
// Fields:
//  ID         – primary key identifier.
//  Ref        – public reference (BK-xxxxxxxxxx), unique and immutable.
//  Title      – what is being booked (e.g. "Darshan").
//  Date       – visit date, always formatted YYYY-MM-DD.
//  TimeSlot   – free-form slot label such as "10:00-11:00".
//  Persons    – number of visitors covered by the booking.
//  Amount     – amount in whole currency units.
//  Paid       – set once a payment confirmation is recorded.
//  PaymentRef – payment or QR reference, if any.
//  CreatedAt  – creation timestamp.
type Booking struct {
	ID         uint64    `json:"id"`          // bookings.id
	Ref        string    `json:"booking_ref"` // bookings.booking_ref
	Title      string    `json:"title"`       // bookings.title
	Date       string    `json:"booking_date"`
	TimeSlot   string    `json:"time_slot"`   // bookings.time_slot
	Persons    int       `json:"persons"`     // bookings.persons
	Amount     int64     `json:"amount"`      // bookings.amount
	Paid       bool      `json:"paid"`        // bookings.paid
	PaymentRef *string   `json:"payment_ref"` // bookings.payment_ref (nullable)
	CreatedAt  time.Time `json:"created_at"`  // bookings.created_at
}

// Visitor is one named person attached to a booking.  Every attribute but
// the owning booking is optional; Age and ElderAge are free-form strings.
type Visitor struct {
	ID                 uint64   `json:"id"`         // persons.id
	BookingID          uint64   `json:"booking_id"` // persons.booking_id
	Name               *string  `json:"name"`
	Phone              *string  `json:"phone"`
	Gender             *string  `json:"gender"`
	Age                *string  `json:"age"`
	IsElderDisabled    bool     `json:"is_elder_disabled"`
	ElderAge           *string  `json:"elder_age"`
	WheelchairRequired Tristate `json:"wheelchair_required"`
}

// VisitorContact is the name/phone projection attached to notifications.
type VisitorContact struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

// BookingView is a booking together with its complete visitor list.
type BookingView struct {
	Booking
	Visitors []Visitor `json:"person_details"`
}

// QRPayload is returned by the payment-token lookup.
type QRPayload struct {
	BookingID  uint64 `json:"booking_id"`
	BookingRef string `json:"booking_ref"`
	Amount     int64  `json:"amount"`
	PaymentRef string `json:"payment_ref"`
	Paid       bool   `json:"paid"`
}
