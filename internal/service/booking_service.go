package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/iliyamo/visitor-slot-booking/internal/model"
	"github.com/iliyamo/visitor-slot-booking/internal/repository"
	"github.com/iliyamo/visitor-slot-booking/internal/utils"
)

const (
	MinPersons = 1
	MaxPersons = 6
	// PricePerPerson is the default amount charged per visitor.
	PricePerPerson = 100
	// maxWriteAttempts bounds whole-insert retries after the unique
	// constraint rejects an allocated reference.
	maxWriteAttempts = 3
	dateLayout       = "2006-01-02"
)

// Column widths of bookings and persons, counted in characters.
const (
	maxTitleLen  = 255
	maxSlotLen   = 100
	maxNameLen   = 255
	maxPhoneLen  = 20
	maxGenderLen = 20
	maxAgeLen    = 50
)

// Emitter records lifecycle notifications on a best-effort basis.
type Emitter interface {
	Emit(ctx context.Context, title, message, typ string, bookingID *uint64) bool
}

// VisitorInput is one entry of person_details.  Every field is optional.
type VisitorInput struct {
	Name               *string           `json:"name"`
	Phone              *string           `json:"phone"`
	Gender             *string           `json:"gender"`
	Age                *model.FlexString `json:"age"`
	IsElderDisabled    bool              `json:"is_elder_disabled"`
	ElderAge           *model.FlexString `json:"elder_age"`
	WheelchairRequired model.Tristate    `json:"wheelchair_required"`
}

func tooLong(s *string, n int) bool {
	return s != nil && utf8.RuneCountInString(*s) > n
}

// check rejects values wider than their persons column.
func (v VisitorInput) check(i int) error {
	m := v.toModel()
	for _, f := range []struct {
		name string
		val  *string
		max  int
	}{
		{"name", m.Name, maxNameLen},
		{"phone", m.Phone, maxPhoneLen},
		{"gender", m.Gender, maxGenderLen},
		{"age", m.Age, maxAgeLen},
		{"elder_age", m.ElderAge, maxAgeLen},
	} {
		if tooLong(f.val, f.max) {
			return invalid(fmt.Sprintf("person_details[%d].%s", i, f.name),
				fmt.Sprintf("must be at most %d characters", f.max))
		}
	}
	return nil
}

func (v VisitorInput) toModel() model.Visitor {
	return model.Visitor{
		Name:               v.Name,
		Phone:              v.Phone,
		Gender:             v.Gender,
		Age:                v.Age.Ptr(),
		IsElderDisabled:    v.IsElderDisabled,
		ElderAge:           v.ElderAge.Ptr(),
		WheelchairRequired: v.WheelchairRequired,
	}
}

// CreateBookingInput carries a booking request.  Persons defaults to 1 and
// Amount to PricePerPerson × Persons when nil.
type CreateBookingInput struct {
	Title    string
	Date     string
	TimeSlot string
	Persons  *int
	Visitors []VisitorInput
	Amount   *int64
}

// CreateBookingResult identifies a newly created booking.
type CreateBookingResult struct {
	ID  uint64
	Ref string
}

// ConfirmPaymentInput carries a payment confirmation.  A nil Amount keeps
// the stored amount; an empty PaymentRef is replaced with a DEV- token.
type ConfirmPaymentInput struct {
	BookingID  uint64
	Amount     *int64
	PaymentRef *string
}

// BookingService implements booking creation, payment confirmation and
// the payment-token lookup.  Every multi-row mutation runs in its own
// transaction; notifications are emitted only after commit.
type BookingService struct {
	repo    *repository.BookingRepo
	refs    *RefAllocator
	emitter Emitter
}

func NewBookingService(repo *repository.BookingRepo, emitter Emitter) *BookingService {
	return &BookingService{repo: repo, refs: BookingRefs(), emitter: emitter}
}

// validate checks the request and builds the rows to insert.  Only the
// first Persons visitors are kept.
func (in CreateBookingInput) validate() (model.Booking, []model.Visitor, error) {
	title := strings.TrimSpace(in.Title)
	date := strings.TrimSpace(in.Date)
	slot := strings.TrimSpace(in.TimeSlot)
	switch {
	case title == "":
		return model.Booking{}, nil, invalid("title", "title is required")
	case date == "":
		return model.Booking{}, nil, invalid("date", "date is required")
	case slot == "":
		return model.Booking{}, nil, invalid("time_slot", "time_slot is required")
	}
	if tooLong(&title, maxTitleLen) {
		return model.Booking{}, nil, invalid("title", fmt.Sprintf("title must be at most %d characters", maxTitleLen))
	}
	if tooLong(&slot, maxSlotLen) {
		return model.Booking{}, nil, invalid("time_slot", fmt.Sprintf("time_slot must be at most %d characters", maxSlotLen))
	}
	if _, err := time.Parse(dateLayout, date); err != nil || len(date) != len(dateLayout) {
		return model.Booking{}, nil, ValidationError{Field: "date", Msg: "Invalid date format. Use YYYY-MM-DD.", Err: err}
	}
	persons := MinPersons
	if in.Persons != nil {
		persons = *in.Persons
	}
	if persons < MinPersons || persons > MaxPersons {
		return model.Booking{}, nil, invalid("persons", fmt.Sprintf("persons must be between %d and %d", MinPersons, MaxPersons))
	}
	if len(in.Visitors) < persons {
		return model.Booking{}, nil, invalid("person_details", "person_details must contain details for each person")
	}
	amount := int64(PricePerPerson * persons)
	if in.Amount != nil {
		if *in.Amount < 0 {
			return model.Booking{}, nil, invalid("amount", "amount must not be negative")
		}
		amount = *in.Amount
	}

	visitors := make([]model.Visitor, 0, persons)
	for i, v := range in.Visitors[:persons] {
		if err := v.check(i); err != nil {
			return model.Booking{}, nil, err
		}
		visitors = append(visitors, v.toModel())
	}
	return model.Booking{
		Title:    title,
		Date:     date,
		TimeSlot: slot,
		Persons:  persons,
		Amount:   amount,
	}, visitors, nil
}

// Create validates the request, writes the booking and its visitors as one
// unit and then emits a booking_created notification.  A reference that
// loses the race against the unique constraint triggers a full retry with
// a new reference.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (res CreateBookingResult, err error) {
	ctx, span := tracer.Start(ctx, "booking.create")
	defer func() { endSpan(span, err) }()

	b, visitors, err := in.validate()
	if err != nil {
		return CreateBookingResult{}, err
	}
	span.SetAttributes(attribute.Int("booking.persons", b.Persons))

	for attempt := 1; ; attempt++ {
		err = s.createOnce(ctx, &b, visitors)
		if err == nil {
			break
		}
		if repository.IsDuplicateKey(err) && attempt < maxWriteAttempts {
			log.Printf("booking: reference %s rejected by store, retrying (%d/%d)", b.Ref, attempt, maxWriteAttempts)
			continue
		}
		if IsConflict(err) || IsStorage(err) || errors.Is(err, context.Canceled) {
			return CreateBookingResult{}, err
		}
		if repository.IsDuplicateKey(err) {
			return CreateBookingResult{}, ConflictError{Resource: "booking", Msg: "could not allocate a unique reference", Err: err}
		}
		return CreateBookingResult{}, StorageError{Op: "create booking", Err: err}
	}
	span.SetAttributes(attribute.String("booking.ref", b.Ref))

	id := b.ID
	s.emitter.Emit(ctx,
		fmt.Sprintf("%s Booking Created", b.Title),
		fmt.Sprintf("Your booking (Ref: %s) for %s at %s is created. Complete payment to confirm.", b.Ref, b.Date, b.TimeSlot),
		model.NotificationBookingCreated, &id)

	return CreateBookingResult{ID: b.ID, Ref: b.Ref}, nil
}

func (s *BookingService) createOnce(ctx context.Context, b *model.Booking, visitors []model.Visitor) error {
	tx, err := s.repo.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ref, err := s.refs.Allocate(ctx, func(ctx context.Context, ref string) (bool, error) {
		return s.repo.RefExistsTx(ctx, tx, ref)
	})
	if err != nil {
		return err
	}
	b.Ref = ref
	if err := s.repo.CreateTx(ctx, tx, b); err != nil {
		return err
	}
	if err := s.repo.CreateVisitorsBulkTx(ctx, tx, b.ID, visitors); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ConfirmPayment marks a booking paid and records the payment reference.
// Confirming again overwrites the same fields.  The amount is recorded as
// given and is not reconciled against the booking.
func (s *BookingService) ConfirmPayment(ctx context.Context, in ConfirmPaymentInput) (out model.Booking, err error) {
	ctx, span := tracer.Start(ctx, "booking.confirm_payment")
	defer func() { endSpan(span, err) }()

	if in.BookingID == 0 {
		return model.Booking{}, invalid("booking_id", "Valid booking_id required")
	}
	if in.Amount != nil && *in.Amount < 0 {
		return model.Booking{}, invalid("amount", "amount must not be negative")
	}
	span.SetAttributes(attribute.Int64("booking.id", int64(in.BookingID)))

	tx, err := s.repo.DB().BeginTx(ctx, nil)
	if err != nil {
		return model.Booking{}, StorageError{Op: "confirm payment", Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	current, err := s.repo.GetByIDForUpdateTx(ctx, tx, in.BookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Booking{}, NotFoundError{Resource: "booking", Err: err}
	}
	if err != nil {
		return model.Booking{}, StorageError{Op: "load booking", Err: err}
	}
	amount := current.Amount
	if in.Amount != nil {
		amount = *in.Amount
	}
	ref := ""
	if in.PaymentRef != nil {
		ref = strings.TrimSpace(*in.PaymentRef)
	}
	if ref == "" {
		ref = utils.DevPaymentRef()
	}
	if err := s.repo.UpdatePaymentTx(ctx, tx, in.BookingID, amount, ref); err != nil {
		return model.Booking{}, StorageError{Op: "update payment", Err: err}
	}
	updated, err := s.repo.GetByIDTx(ctx, tx, in.BookingID)
	if err != nil {
		return model.Booking{}, StorageError{Op: "reload booking", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return model.Booking{}, StorageError{Op: "commit payment", Err: err}
	}
	committed = true

	id := updated.ID
	s.emitter.Emit(ctx,
		"Booking Payment Successful",
		fmt.Sprintf("Payment for booking Ref %s is successful. Amount: ₹%d.", updated.Ref, updated.Amount),
		model.NotificationPaymentSuccess, &id)

	return updated, nil
}

// PaymentToken returns the QR payload for a booking.  A booking without a
// payment reference gets a fresh QR-xxxxxxxxxxxx reference persisted first.
func (s *BookingService) PaymentToken(ctx context.Context, bookingID uint64) (model.QRPayload, error) {
	if bookingID == 0 {
		return model.QRPayload{}, invalid("booking_id", "invalid booking id")
	}
	tx, err := s.repo.DB().BeginTx(ctx, nil)
	if err != nil {
		return model.QRPayload{}, StorageError{Op: "payment token", Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := s.repo.GetByIDForUpdateTx(ctx, tx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.QRPayload{}, NotFoundError{Resource: "booking", Err: err}
	}
	if err != nil {
		return model.QRPayload{}, StorageError{Op: "load booking", Err: err}
	}
	ref := ""
	if b.PaymentRef != nil {
		ref = *b.PaymentRef
	}
	if ref == "" {
		ref = utils.ShortRef("QR", 12)
		if _, err := s.repo.SetPaymentRefIfEmptyTx(ctx, tx, bookingID, ref); err != nil {
			return model.QRPayload{}, StorageError{Op: "store payment token", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return model.QRPayload{}, StorageError{Op: "commit payment token", Err: err}
	}
	committed = true

	return model.QRPayload{
		BookingID:  b.ID,
		BookingRef: b.Ref,
		Amount:     b.Amount,
		PaymentRef: ref,
		Paid:       b.Paid,
	}, nil
}

// ClearAll removes every booking, visitor and notification in one
// transaction.  Development use only.
func (s *BookingService) ClearAll(ctx context.Context) error {
	tx, err := s.repo.DB().BeginTx(ctx, nil)
	if err != nil {
		return StorageError{Op: "clear bookings", Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := s.repo.ClearAllTx(ctx, tx); err != nil {
		return StorageError{Op: "clear bookings", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return StorageError{Op: "clear bookings", Err: err}
	}
	committed = true
	return nil
}
