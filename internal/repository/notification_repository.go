package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/visitor-slot-booking/internal/model"
)

// NotificationRepo persists lifecycle notifications.  Rows are append-only
// apart from the is_read flag.
type NotificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// Insert appends a notification and returns its id.  bookingID may be nil.
func (r *NotificationRepo) Insert(ctx context.Context, title, message, typ string, bookingID *uint64) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (title, message, type, booking_id) VALUES (?, ?, ?, ?)`,
		title, message, typ, bookingID)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// ListRecent returns up to limit notifications, newest first.  Contacts
// are left empty; see ContactsByBookingIDs.
func (r *NotificationRepo) ListRecent(ctx context.Context, limit int) ([]model.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, message, type, booking_id, is_read, created_at
		 FROM notifications ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Notification, 0)
	for rows.Next() {
		var (
			n   model.Notification
			bid sql.NullInt64
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Message, &n.Type, &bid, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		if bid.Valid {
			id := uint64(bid.Int64)
			n.BookingID = &id
		}
		n.Contacts = []model.VisitorContact{}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead sets is_read on a notification.  A missing id is not an error.
func (r *NotificationRepo) MarkRead(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = ?`, id)
	return err
}

// ContactsByBookingIDs returns the name and phone of every visitor on the
// given bookings, keyed by booking id, using a single query.
func (r *NotificationRepo) ContactsByBookingIDs(ctx context.Context, ids []uint64) (map[uint64][]model.VisitorContact, error) {
	out := make(map[uint64][]model.VisitorContact, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ph, args := inClause(ids)
	rows, err := r.db.QueryContext(ctx,
		`SELECT booking_id, name, phone FROM persons WHERE booking_id IN (`+ph+`) ORDER BY booking_id, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			bid         uint64
			name, phone sql.NullString
		)
		if err := rows.Scan(&bid, &name, &phone); err != nil {
			return nil, err
		}
		out[bid] = append(out[bid], model.VisitorContact{Name: nullString(name), Phone: nullString(phone)})
	}
	return out, rows.Err()
}
