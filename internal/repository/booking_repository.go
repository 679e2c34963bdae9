package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/visitor-slot-booking/internal/model"
)

// BookingRepo provides persistence for bookings and the visitors (persons
// table) that belong to them.  Mutating methods take a caller-owned
// transaction so a booking and its visitors commit together.  All
// timestamps are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingCols = `id, booking_ref, title, booking_date, time_slot, persons, amount, paid, payment_ref, created_at`

const visitorCols = `id, booking_id, name, phone, gender, age, is_elder_disabled, elder_age, wheelchair_required`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(s rowScanner) (model.Booking, error) {
	var (
		b          model.Booking
		date       time.Time
		paymentRef sql.NullString
	)
	if err := s.Scan(&b.ID, &b.Ref, &b.Title, &date, &b.TimeSlot, &b.Persons,
		&b.Amount, &b.Paid, &paymentRef, &b.CreatedAt); err != nil {
		return model.Booking{}, err
	}
	b.Date = date.Format("2006-01-02")
	b.PaymentRef = nullString(paymentRef)
	return b, nil
}

func scanVisitor(s rowScanner) (model.Visitor, error) {
	var (
		v                             model.Visitor
		name, phone, gender, age, eld sql.NullString
	)
	if err := s.Scan(&v.ID, &v.BookingID, &name, &phone, &gender, &age,
		&v.IsElderDisabled, &eld, &v.WheelchairRequired); err != nil {
		return model.Visitor{}, err
	}
	v.Name = nullString(name)
	v.Phone = nullString(phone)
	v.Gender = nullString(gender)
	v.Age = nullString(age)
	v.ElderAge = nullString(eld)
	return v, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// RefExistsTx reports whether a booking with the given reference exists.
func (r *BookingRepo) RefExistsTx(ctx context.Context, tx *sql.Tx, ref string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE booking_ref = ? LIMIT 1`, ref).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateTx inserts a new unpaid booking within the scope of an existing
// transaction and populates the generated ID.  A duplicate booking_ref is
// reported as ErrDuplicate.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (booking_ref, title, booking_date, time_slot, persons, amount, paid) VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.Ref, b.Title, b.Date, b.TimeSlot, b.Persons, b.Amount, false)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.Paid = false
	return nil
}

// CreateVisitorsBulkTx inserts all visitors of a booking in a single
// statement.  Each visitor is attached to bookingID regardless of its
// BookingID field.  Passing an empty slice has no effect.
func (r *BookingRepo) CreateVisitorsBulkTx(ctx context.Context, tx *sql.Tx, bookingID uint64, visitors []model.Visitor) error {
	if len(visitors) == 0 {
		return nil
	}
	query := `INSERT INTO persons (booking_id, name, phone, gender, age, is_elder_disabled, elder_age, wheelchair_required) VALUES `
	args := make([]interface{}, 0, len(visitors)*8)
	for i, v := range visitors {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args, bookingID, v.Name, v.Phone, v.Gender, v.Age, v.IsElderDisabled, v.ElderAge, v.WheelchairRequired)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// GetByIDForUpdateTx loads a booking and locks its row until the
// transaction ends.  Returns ErrNotFound when absent.
func (r *BookingRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Booking, error) {
	b, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingCols+` FROM bookings WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrNotFound
	}
	return b, err
}

// GetByIDTx reads a booking inside a transaction without locking.
func (r *BookingRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Booking, error) {
	b, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingCols+` FROM bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrNotFound
	}
	return b, err
}

// GetByID reads a single booking.  Returns ErrNotFound when absent.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, `SELECT `+bookingCols+` FROM bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrNotFound
	}
	return b, err
}

// UpdatePaymentTx overwrites the payment fields and marks the booking paid.
// Re-confirming simply rewrites the same columns.
func (r *BookingRepo) UpdatePaymentTx(ctx context.Context, tx *sql.Tx, id uint64, amount int64, paymentRef string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE bookings SET paid = TRUE, amount = ?, payment_ref = ? WHERE id = ?`,
		amount, paymentRef, id)
	return err
}

// SetPaymentRefIfEmptyTx stores ref only when the booking has none yet and
// reports whether a row was changed.
func (r *BookingRepo) SetPaymentRefIfEmptyTx(ctx context.Context, tx *sql.Tx, id uint64, ref string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET payment_ref = ? WHERE id = ? AND (payment_ref IS NULL OR payment_ref = '')`,
		ref, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListAll returns every booking, newest first.
func (r *BookingRepo) ListAll(ctx context.Context) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+bookingCols+` FROM bookings ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListByIDs fetches the given bookings in one query, newest first.  Unknown
// ids are skipped.
func (r *BookingRepo) ListByIDs(ctx context.Context, ids []uint64) ([]model.Booking, error) {
	if len(ids) == 0 {
		return []model.Booking{}, nil
	}
	ph, args := inClause(ids)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingCols+` FROM bookings WHERE id IN (`+ph+`) ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func collectBookings(rows *sql.Rows) ([]model.Booking, error) {
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BookingIDsByVisitorPhone returns the distinct ids of bookings that have at
// least one visitor with the given phone.
func (r *BookingRepo) BookingIDsByVisitorPhone(ctx context.Context, phone string) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT booking_id FROM persons WHERE phone = ?`, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]uint64, 0)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// VisitorsByBookingIDs loads the complete visitor lists for several bookings
// with one query, keyed by booking id.  Visitors keep insertion order.
func (r *BookingRepo) VisitorsByBookingIDs(ctx context.Context, ids []uint64) (map[uint64][]model.Visitor, error) {
	out := make(map[uint64][]model.Visitor, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ph, args := inClause(ids)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+visitorCols+` FROM persons WHERE booking_id IN (`+ph+`) ORDER BY booking_id, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		v, err := scanVisitor(rows)
		if err != nil {
			return nil, err
		}
		out[v.BookingID] = append(out[v.BookingID], v)
	}
	return out, rows.Err()
}

// ClearAllTx deletes every visitor, booking and notification.  Development
// use only.
func (r *BookingRepo) ClearAllTx(ctx context.Context, tx *sql.Tx) error {
	for _, q := range []string{`DELETE FROM persons`, `DELETE FROM bookings`, `DELETE FROM notifications`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
