package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/iliyamo/visitor-slot-booking/internal/model"
	"github.com/iliyamo/visitor-slot-booking/internal/repository"
)

// HistoryService rebuilds booking views (booking plus full visitor list).
// Visitors are always loaded with one batched query per call.
type HistoryService struct {
	repo *repository.BookingRepo
}

func NewHistoryService(repo *repository.BookingRepo) *HistoryService {
	return &HistoryService{repo: repo}
}

// ListAll returns every booking with its visitors, newest first.
func (s *HistoryService) ListAll(ctx context.Context) ([]model.BookingView, error) {
	bookings, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, StorageError{Op: "list bookings", Err: err}
	}
	return s.attach(ctx, bookings)
}

// ListForPhone returns the bookings that have at least one visitor with the
// given phone.  Each booking carries its complete visitor list, including
// visitors with other phones.
func (s *HistoryService) ListForPhone(ctx context.Context, phone string) (out []model.BookingView, err error) {
	ctx, span := tracer.Start(ctx, "history.list_for_phone")
	defer func() { endSpan(span, err) }()

	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, invalid("phone", "phone query parameter is required")
	}
	ids, err := s.repo.BookingIDsByVisitorPhone(ctx, phone)
	if err != nil {
		return nil, StorageError{Op: "find bookings by phone", Err: err}
	}
	span.SetAttributes(attribute.Int("history.matches", len(ids)))
	if len(ids) == 0 {
		return []model.BookingView{}, nil
	}
	bookings, err := s.repo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, StorageError{Op: "load bookings", Err: err}
	}
	return s.attach(ctx, bookings)
}

// Get returns a single booking with its visitors.
func (s *HistoryService) Get(ctx context.Context, id uint64) (model.BookingView, error) {
	if id == 0 {
		return model.BookingView{}, invalid("booking_id", "invalid booking id")
	}
	b, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.BookingView{}, NotFoundError{Resource: "booking", Err: err}
	}
	if err != nil {
		return model.BookingView{}, StorageError{Op: "load booking", Err: err}
	}
	views, err := s.attach(ctx, []model.Booking{b})
	if err != nil {
		return model.BookingView{}, err
	}
	return views[0], nil
}

func (s *HistoryService) attach(ctx context.Context, bookings []model.Booking) ([]model.BookingView, error) {
	views := make([]model.BookingView, len(bookings))
	if len(bookings) == 0 {
		return views, nil
	}
	ids := make([]uint64, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
	}
	visitors, err := s.repo.VisitorsByBookingIDs(ctx, ids)
	if err != nil {
		return nil, StorageError{Op: "load visitors", Err: err}
	}
	for i, b := range bookings {
		vs := visitors[b.ID]
		if vs == nil {
			vs = []model.Visitor{}
		}
		views[i] = model.BookingView{Booking: b, Visitors: vs}
	}
	return views, nil
}
