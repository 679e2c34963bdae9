package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/visitor-slot-booking/internal/handler"
	"github.com/iliyamo/visitor-slot-booking/internal/otp"
	"github.com/iliyamo/visitor-slot-booking/internal/repository"
	"github.com/iliyamo/visitor-slot-booking/internal/router"
	"github.com/iliyamo/visitor-slot-booking/internal/service"
	"github.com/iliyamo/visitor-slot-booking/internal/utils"
)

const testSecret = "handler-test-secret"

var bookingCols = []string{"id", "booking_ref", "title", "booking_date", "time_slot", "persons", "amount", "paid", "payment_ref", "created_at"}

type fixture struct {
	e    *echo.Echo
	mock sqlmock.Sqlmock
}

func noop(next echo.HandlerFunc) echo.HandlerFunc { return next }

func newFixture(t *testing.T, devOTP bool) fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	bookingRepo := repository.NewBookingRepo(db)
	notifier := service.NewNotifier(repository.NewNotificationRepo(db), nil)
	bookings := service.NewBookingService(bookingRepo, notifier)
	history := service.NewHistoryService(bookingRepo)
	users := service.NewUserService(repository.NewUserRepo(db), repository.NewTokenRepo(db), service.TokenSettings{
		Secret: testSecret, AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: 4,
	})
	slots := handler.NewSlotsHandler()
	slots.Now = func() time.Time { return time.Date(2025, 8, 10, 8, 0, 0, 0, time.UTC) }

	h := router.Handlers{
		Diagnostics:   &handler.DiagnosticsHandler{DB: db, DBName: "test", Env: "test", Service: "visitor-slot-booking"},
		Bookings:      handler.NewBookingHandler(bookings, history, service.NewTicketService(history)),
		Notifications: handler.NewNotificationHandler(notifier),
		History:       handler.NewHistoryHandler(history),
		Slots:         slots,
		OTP:           handler.NewOTPHandler(service.NewChallengeService(otp.NewRedisStore(rdb)), devOTP),
		Auth:          handler.NewAuthHandler(users, testSecret),
		Dev:           handler.NewDevHandler(users, bookings),
	}
	mw := router.Middleware{RateLimit: noop, Cache: noop}

	e := echo.New()
	router.RegisterRoutes(e, h)
	router.RegisterBooking(e, h, mw)
	router.RegisterAuth(e, h, mw, testSecret)
	router.RegisterDev(e, h)
	return fixture{e: e, mock: mock}
}

func (f fixture) do(t *testing.T, method, target, body string, hdr ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func TestBookEndpoint(t *testing.T) {
	f := newFixture(t, false)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM bookings`)).WillReturnRows(sqlmock.NewRows([]string{"1"}))
	f.mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO bookings`)).WillReturnResult(sqlmock.NewResult(15, 1))
	f.mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO persons`)).
		WithArgs(
			uint64(15), "Asha", "9876543210", nil, "34", false, nil, true,
			uint64(15), "Ravi", "9123456780", nil, "71", true, nil, nil,
		).
		WillReturnResult(sqlmock.NewResult(1, 2))
	f.mock.ExpectCommit()
	f.mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO notifications`)).
		WithArgs("Darshan Booking Created", sqlmock.AnyArg(), "booking_created", uint64(15)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec, body := f.do(t, http.MethodPost, "/book", `{
		"title": "Darshan", "date": "2025-08-15", "time_slot": "10:00-11:00", "persons": 2,
		"person_details": [
			{"name": "Asha", "phone": "9876543210", "age": 34, "wheelchair_required": true},
			{"name": "Ravi", "phone": "9123456780", "age": "71", "is_elder_disabled": true}
		]
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if body["success"] != true || body["booking_id"].(float64) != 15 {
		t.Fatalf("unexpected body %v", body)
	}
	if !regexp.MustCompile(`^BK-[0-9a-f]{10}$`).MatchString(body["booking_ref"].(string)) {
		t.Fatalf("unexpected ref %v", body["booking_ref"])
	}
	if body["message"] != "Booking created (payment pending)" {
		t.Fatalf("unexpected message %v", body["message"])
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestBookValidationEnvelope(t *testing.T) {
	f := newFixture(t, false)
	rec, body := f.do(t, http.MethodPost, "/book", `{"title":"Darshan","date":"2025-08-15","time_slot":"10:00","persons":9,"person_details":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if body["success"] != false || body["error"] != "validation_error" || !strings.Contains(body["message"].(string), "between 1 and 6") {
		t.Fatalf("unexpected envelope %v", body)
	}
}

func TestBookRejectsOversizedVisitorField(t *testing.T) {
	f := newFixture(t, false)
	rec, body := f.do(t, http.MethodPost, "/book", `{"title":"Darshan","date":"2025-08-15","time_slot":"10:00",
		"person_details":[{"name":"Asha","phone":"98765432109876543210987654321098765432"}]}`)
	if rec.Code != http.StatusBadRequest || body["error"] != "validation_error" {
		t.Fatalf("status %d body %v", rec.Code, body)
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("store touched: %v", err)
	}
}

func TestPaymentNotFound(t *testing.T) {
	f := newFixture(t, false)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows(bookingCols))
	f.mock.ExpectRollback()

	rec, body := f.do(t, http.MethodPost, "/payment", `{"booking_id": 404, "payment_ref": "PAY-1"}`)
	if rec.Code != http.StatusNotFound || body["error"] != "not_found" {
		t.Fatalf("status %d body %v", rec.Code, body)
	}
}

func TestStorageErrorsDoNotLeak(t *testing.T) {
	f := newFixture(t, false)
	f.mock.ExpectQuery(`FROM bookings`).WillReturnError(errors.New("Error 1045: Access denied for user 'root'@'10.0.0.7'"))

	rec, body := f.do(t, http.MethodGet, "/history", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "Access denied") || body["error"] != "storage_error" {
		t.Fatalf("driver text leaked: %s", rec.Body.String())
	}
}

func TestQREndpoint(t *testing.T) {
	f := newFixture(t, false)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows(bookingCols).
		AddRow(5, "BK-0123456789", "Darshan", time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC), "10:00", 1, 100, false, nil, time.Now()))
	f.mock.ExpectExec(`UPDATE bookings SET payment_ref`).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	rec, body := f.do(t, http.MethodGet, "/booking/5/qr", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	qr := body["qr_payload"].(map[string]interface{})
	if qr["booking_ref"] != "BK-0123456789" || !strings.HasPrefix(qr["payment_ref"].(string), "QR-") {
		t.Fatalf("unexpected payload %v", qr)
	}

	if rec, _ := f.do(t, http.MethodGet, "/booking/abc/qr", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric id: status %d", rec.Code)
	}
}

func TestHistoryUserRequiresPhone(t *testing.T) {
	f := newFixture(t, false)
	rec, body := f.do(t, http.MethodGet, "/history/user", "")
	if rec.Code != http.StatusBadRequest || body["error"] != "validation_error" {
		t.Fatalf("status %d body %v", rec.Code, body)
	}
}

func TestSlotsEndpoint(t *testing.T) {
	f := newFixture(t, false)
	rec, body := f.do(t, http.MethodGet, "/slots?start=2025-08-10&days=1000", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if body["days"].(float64) != 365 || len(body["slots"].([]interface{})) != 365 {
		t.Fatalf("days not clamped: %v", body["days"])
	}
	first := body["slots"].([]interface{})[0].(map[string]interface{})
	if first["date"] != "2025-08-10" || first["is_available"] != false {
		t.Fatalf("unexpected first day %v", first)
	}

	if rec, _ := f.do(t, http.MethodGet, "/slots?start=10-08-2025", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad start: status %d", rec.Code)
	}
}

func TestOTPDevFlow(t *testing.T) {
	f := newFixture(t, true)
	rec, body := f.do(t, http.MethodPost, "/send-otp", `{"phone":"9876543210"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("send: status %d", rec.Code)
	}
	code := body["otp"].(string)

	_, body = f.do(t, http.MethodPost, "/verify-otp", `{"phone":"9876543210","otp":"`+code+`"}`)
	if body["message"] != "OTP verified successfully" {
		t.Fatalf("verify: %v", body)
	}
	// dev mode reports success for a wrong code
	rec, body = f.do(t, http.MethodPost, "/verify-otp", `{"phone":"9876543210","otp":"`+code+`"}`)
	if rec.Code != http.StatusOK || body["message"] != "OTP verified successfully (dev)" {
		t.Fatalf("dev fallback: %d %v", rec.Code, body)
	}
	rec, _ = f.do(t, http.MethodPost, "/verify-otp", `{"phone":"9876543210","otp":"12"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed code: status %d", rec.Code)
	}
}

func TestOTPStrictMode(t *testing.T) {
	f := newFixture(t, false)
	_, body := f.do(t, http.MethodPost, "/send-otp", `{"phone":"9876543210"}`)
	if _, leaked := body["otp"]; leaked {
		t.Fatalf("code must not be echoed outside dev mode")
	}
	rec, body := f.do(t, http.MethodPost, "/verify-otp", `{"phone":"9000000001","otp":"1234"}`)
	if rec.Code != http.StatusBadRequest || body["message"] != "Invalid or expired OTP" {
		t.Fatalf("status %d body %v", rec.Code, body)
	}
}

func TestMeRequiresToken(t *testing.T) {
	f := newFixture(t, false)
	if rec, _ := f.do(t, http.MethodGet, "/me", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
	tok, _ := utils.NewAccessToken(testSecret, 3, "9876543210", 5)
	rec, body := f.do(t, http.MethodGet, "/me", "", "Authorization", "Bearer "+tok.Token)
	if rec.Code != http.StatusOK || body["phone"] != "9876543210" || body["user_id"].(float64) != 3 {
		t.Fatalf("status %d body %v", rec.Code, body)
	}
}

func TestNotificationsLimitParsing(t *testing.T) {
	f := newFixture(t, false)
	if rec, _ := f.do(t, http.MethodGet, "/notifications?limit=ten", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	f.mock.ExpectQuery(`FROM notifications`).WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "message", "type", "booking_id", "is_read", "created_at"}))
	rec, body := f.do(t, http.MethodGet, "/notifications?limit=5", "")
	if rec.Code != http.StatusOK || len(body["notifications"].([]interface{})) != 0 {
		t.Fatalf("status %d body %v", rec.Code, body)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	rec, _ := f.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("status %d body %q", rec.Code, rec.Body.String())
	}
}
