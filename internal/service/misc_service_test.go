package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/visitor-slot-booking/internal/otp"
	"github.com/iliyamo/visitor-slot-booking/internal/repository"
	"github.com/iliyamo/visitor-slot-booking/internal/utils"
)

func TestSlotAvailability(t *testing.T) {
	start := time.Date(2025, 8, 8, 15, 30, 0, 0, time.UTC)
	today := time.Date(2025, 8, 10, 9, 0, 0, 0, time.UTC)

	days := SlotAvailability(start, today, 7)
	if len(days) != 7 {
		t.Fatalf("want 7 days, got %d", len(days))
	}
	want := []struct {
		date      string
		opened    bool
		available bool
		free      int
	}{
		{"2025-08-08", false, false, 0},
		{"2025-08-09", false, false, 0},
		{"2025-08-10", true, false, 0}, // Sunday
		{"2025-08-11", true, false, 0},
		{"2025-08-12", true, true, 0},
		{"2025-08-13", true, false, 0},
		{"2025-08-14", true, true, 50},
	}
	for i, w := range want {
		d := days[i]
		if d.Date != w.date || d.IsOpened != w.opened || d.IsAvailable != w.available || d.AvailableSlots != w.free {
			t.Fatalf("day %d: got %+v, want %+v", i, d, w)
		}
		if d.TotalSlots != slotsPerDay {
			t.Fatalf("total slots = %d", d.TotalSlots)
		}
	}
}

func TestClampSlotDays(t *testing.T) {
	for in, want := range map[int]int{-3: 1, 0: 1, 30: 30, 365: 365, 1000: MaxSlotDays} {
		if got := ClampSlotDays(in); got != want {
			t.Fatalf("ClampSlotDays(%d) = %d, want %d", in, got, want)
		}
	}
}

func newChallengeService(t *testing.T) (*ChallengeService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewChallengeService(otp.NewRedisStore(rdb)), mr
}

func TestChallengeIssueAndVerify(t *testing.T) {
	s, _ := newChallengeService(t)
	ctx := context.Background()

	code, err := s.Issue(ctx, " 9876543210 ")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	ok, err := s.Verify(ctx, "9876543210", code)
	if err != nil || !ok {
		t.Fatalf("verify: ok=%v err=%v", ok, err)
	}
	ok, err = s.Verify(ctx, "9876543210", code)
	if err != nil || ok {
		t.Fatalf("code must be single use: ok=%v err=%v", ok, err)
	}
}

func TestChallengeValidation(t *testing.T) {
	s, _ := newChallengeService(t)
	ctx := context.Background()

	if _, err := s.Issue(ctx, ""); !IsValidation(err) {
		t.Fatalf("issue without phone: %v", err)
	}
	if _, err := s.Verify(ctx, "9876543210", ""); !IsValidation(err) {
		t.Fatalf("verify without code: %v", err)
	}
	if _, err := s.Verify(ctx, "9876543210", "12a4"); !IsValidation(err) {
		t.Fatalf("verify malformed code: %v", err)
	}
}

func TestChallengeStoreUnavailable(t *testing.T) {
	s, mr := newChallengeService(t)
	mr.Close()

	if _, err := s.Issue(context.Background(), "9876543210"); !IsStorage(err) {
		t.Fatalf("want storage error, got %v", err)
	}
}

var userRowCols = []string{"id", "user_ref", "phone", "name", "dob", "gender", "address", "password", "created_at", "updated_at"}

func newUserService(t *testing.T) (*UserService, sqlmock.Sqlmock) {
	db, mock := newMock(t)
	svc := NewUserService(repository.NewUserRepo(db), repository.NewTokenRepo(db), TokenSettings{
		Secret:         "test-secret",
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		BcryptCost:     4,
	})
	return svc, mock
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Name: "Asha", Phone: "9876543210", DOB: "1990-04-01",
		Gender: "Female", Address: "MG Road", Password: "secret1",
	}
}

func TestRegisterValidation(t *testing.T) {
	cases := map[string]func(*RegisterInput){
		"short phone":    func(in *RegisterInput) { in.Phone = "12345" },
		"bad dob":        func(in *RegisterInput) { in.DOB = "01-04-1990" },
		"bad gender":     func(in *RegisterInput) { in.Gender = "x" },
		"short password": func(in *RegisterInput) { in.Password = "abc" },
		"missing name":   func(in *RegisterInput) { in.Name = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			svc, mock := newUserService(t)
			in := validRegistration()
			mutate(&in)
			if _, err := svc.Register(context.Background(), in); !IsValidation(err) {
				t.Fatalf("want validation error, got %v", err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("expectations: %v", err)
			}
		})
	}
}

func TestRegisterCreatesUser(t *testing.T) {
	svc, mock := newUserService(t)

	mock.ExpectQuery(`FROM users WHERE phone=\?`).WillReturnRows(sqlmock.NewRows(userRowCols))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM users WHERE user_ref=?`)).WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs(sqlmock.AnyArg(), "9876543210", "Asha", "1990-04-01", "Female", "MG Road", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(21, 1))

	u, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.ID != 21 || !regexp.MustCompile(`^USR-[0-9a-f]{8}$`).MatchString(u.Ref) {
		t.Fatalf("unexpected user %+v", u)
	}
	if !utils.VerifyPassword(u.PasswordHash, "secret1") {
		t.Fatalf("password hash does not verify")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRegisterDuplicatePhoneRace(t *testing.T) {
	svc, mock := newUserService(t)

	mock.ExpectQuery(`FROM users WHERE phone=\?`).WillReturnRows(sqlmock.NewRows(userRowCols))
	mock.ExpectQuery(`SELECT 1 FROM users`).WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '9876543210' for key 'users.phone'"})

	_, err := svc.Register(context.Background(), validRegistration())
	if !IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, mock := newUserService(t)
	hash, err := utils.HashPassword("secret1", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := time.Now().UTC()
	mock.ExpectQuery(`FROM users WHERE phone=\?`).
		WillReturnRows(sqlmock.NewRows(userRowCols).
			AddRow(1, "USR-0a0b0c0d", "9876543210", "Asha", time.Date(1990, 4, 1, 0, 0, 0, 0, time.UTC), "Female", "MG Road", hash, now, now))

	_, err = svc.Login(context.Background(), "9876543210", "wrong-pass")
	var ue UnauthorizedError
	if !errors.As(err, &ue) {
		t.Fatalf("want unauthorized, got %v", err)
	}
}

func TestLoginIssuesSession(t *testing.T) {
	svc, mock := newUserService(t)
	hash, _ := utils.HashPassword("secret1", 4)
	now := time.Now().UTC()
	mock.ExpectQuery(`FROM users WHERE phone=\?`).
		WillReturnRows(sqlmock.NewRows(userRowCols).
			AddRow(1, "USR-0a0b0c0d", "9876543210", "Asha", time.Date(1990, 4, 1, 0, 0, 0, 0, time.UTC), "Female", "MG Road", hash, now, now))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).WillReturnResult(sqlmock.NewResult(1, 1))

	sess, err := svc.Login(context.Background(), "9876543210", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := utils.ParseAccessToken("test-secret", sess.Access.Token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != 1 || claims.Phone != "9876543210" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if sess.Refresh.Raw == "" || sess.User.DOB != "1990-04-01" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProfileNotFound(t *testing.T) {
	svc, mock := newUserService(t)
	mock.ExpectQuery(`FROM users WHERE phone=\?`).WillReturnRows(sqlmock.NewRows(userRowCols))

	if _, err := svc.Profile(context.Background(), "9000000000"); !IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestResetPasswordUnknownPhone(t *testing.T) {
	svc, mock := newUserService(t)
	mock.ExpectQuery(`FROM users WHERE phone=\?`).WillReturnRows(sqlmock.NewRows(userRowCols))

	if err := svc.ResetPassword(context.Background(), "9000000000", "newpass1"); !IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestLogoutRequiresTokenOrUser(t *testing.T) {
	svc, _ := newUserService(t)
	if err := svc.Logout(context.Background(), "", 0); !IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
}
