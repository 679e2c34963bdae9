package service

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/iliyamo/visitor-slot-booking/internal/model"
	"github.com/iliyamo/visitor-slot-booking/internal/repository"
)

var visitorRowCols = []string{"id", "booking_id", "name", "phone", "gender", "age", "is_elder_disabled", "elder_age", "wheelchair_required"}

func TestHistoryForPhoneNoMatches(t *testing.T) {
	db, mock := newMock(t)
	svc := NewHistoryService(repository.NewBookingRepo(db))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT booking_id FROM persons WHERE phone = ?`)).
		WithArgs("9000000000").
		WillReturnRows(sqlmock.NewRows([]string{"booking_id"}))

	views, err := svc.ListForPhone(context.Background(), "9000000000")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if views == nil || len(views) != 0 {
		t.Fatalf("want empty non-nil list, got %#v", views)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestHistoryForPhoneReturnsFullVisitorLists(t *testing.T) {
	db, mock := newMock(t)
	svc := NewHistoryService(repository.NewBookingRepo(db))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT booking_id FROM persons`)).
		WithArgs("9876543210").
		WillReturnRows(sqlmock.NewRows([]string{"booking_id"}).AddRow(3))
	mock.ExpectQuery(`FROM bookings WHERE id IN \(\?\)`).
		WithArgs(int64(3)).
		WillReturnRows(bookingRow(3, "BK-cccccccccc", false, 200, nil))
	mock.ExpectQuery(`FROM persons WHERE booking_id IN \(\?\)`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(visitorRowCols).
			AddRow(1, 3, "Asha", "9876543210", "Female", "34", false, nil, true).
			AddRow(2, 3, "Ravi", "9123456780", "Male", nil, true, "71", nil))

	views, err := svc.ListForPhone(context.Background(), " 9876543210 ")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("want 1 booking, got %d", len(views))
	}
	v := views[0]
	if v.Ref != "BK-cccccccccc" || len(v.Visitors) != 2 {
		t.Fatalf("unexpected view %+v", v)
	}
	if *v.Visitors[1].Phone != "9123456780" {
		t.Fatalf("co-visitor with another phone must be included")
	}
	if v.Visitors[0].WheelchairRequired != model.Yes || v.Visitors[1].WheelchairRequired != model.Unspecified {
		t.Fatalf("wheelchair answers not preserved: %v %v", v.Visitors[0].WheelchairRequired, v.Visitors[1].WheelchairRequired)
	}
	if v.Visitors[1].Age != nil || *v.Visitors[1].ElderAge != "71" {
		t.Fatalf("unexpected optional fields %+v", v.Visitors[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestHistoryForPhoneRequiresPhone(t *testing.T) {
	db, mock := newMock(t)
	_, err := NewHistoryService(repository.NewBookingRepo(db)).ListForPhone(context.Background(), "  ")
	if !IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestHistoryListAllBookingWithoutVisitors(t *testing.T) {
	db, mock := newMock(t)
	svc := NewHistoryService(repository.NewBookingRepo(db))

	mock.ExpectQuery(`ORDER BY created_at DESC, id DESC`).
		WillReturnRows(bookingRow(4, "BK-dddddddddd", true, 100, "PAY-1"))
	mock.ExpectQuery(`FROM persons WHERE booking_id IN`).
		WillReturnRows(sqlmock.NewRows(visitorRowCols))

	views, err := svc.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 || views[0].Visitors == nil || len(views[0].Visitors) != 0 {
		t.Fatalf("unexpected views %#v", views)
	}
}

func TestHistoryListAllStorageFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM bookings`).WillReturnError(errors.New("gone away"))

	_, err := NewHistoryService(repository.NewBookingRepo(db)).ListAll(context.Background())
	if !IsStorage(err) {
		t.Fatalf("want storage error, got %v", err)
	}
}

func TestHistoryGetMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM bookings WHERE id = \?`).WillReturnRows(sqlmock.NewRows(bookingRowCols))

	_, err := NewHistoryService(repository.NewBookingRepo(db)).Get(context.Background(), 99)
	if !IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestTicketRender(t *testing.T) {
	db, mock := newMock(t)
	tickets := NewTicketService(NewHistoryService(repository.NewBookingRepo(db)))

	mock.ExpectQuery(`FROM bookings WHERE id = \?`).
		WillReturnRows(bookingRow(6, "BK-eeeeeeeeee", true, 200, "PAY-7"))
	mock.ExpectQuery(`FROM persons WHERE booking_id IN`).
		WillReturnRows(sqlmock.NewRows(visitorRowCols).
			AddRow(1, 6, "Asha", "9876543210", "Female", "34", false, nil, false))

	pdf, name, err := tickets.Render(context.Background(), 6)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if name != "ETICKET_BK-eeeeeeeeee.pdf" {
		t.Fatalf("unexpected file name %q", name)
	}
	if len(pdf) < 5 || string(pdf[:5]) != "%PDF-" {
		t.Fatalf("output is not a PDF")
	}
}
