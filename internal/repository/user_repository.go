package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/visitor-slot-booking/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrPhoneExists = errors.New("phone already registered")

const userCols = "id,user_ref,phone,name,dob,gender,address,password,created_at,updated_at"

func scanUser(s rowScanner) (model.User, error) {
	var (
		u   model.User
		dob time.Time
	)
	err := s.Scan(&u.ID, &u.Ref, &u.Phone, &u.Name, &dob, &u.Gender, &u.Address, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.DOB = dob.Format("2006-01-02")
	return u, nil
}

// RefExists reports whether a user already holds the reference.
func (r *UserRepo) RefExists(ctx context.Context, ref string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE user_ref=? LIMIT 1", ref).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Create inserts user and sets its ID.  A taken phone yields
// ErrPhoneExists; a user_ref collision yields ErrDuplicate so the caller
// can retry with a fresh reference.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (user_ref, phone, name, dob, gender, address, password) VALUES (?,?,?,?,?,?,?)",
		u.Ref, u.Phone, u.Name, u.DOB, u.Gender, u.Address, u.PasswordHash)
	if err != nil {
		if DuplicateKeyOn(err, "phone") {
			return ErrPhoneExists
		}
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetByPhone fetches a user by phone.  Returns ErrNotFound when absent.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE phone=? LIMIT 1", strings.TrimSpace(phone)))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// GetByID fetches a user by id.  Returns ErrNotFound when absent.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// UpdateProfile rewrites the editable profile fields of the user with the
// given phone.  Returns ErrNotFound when no such user exists.
func (r *UserRepo) UpdateProfile(ctx context.Context, phone, name, dob, gender, address string) error {
	if _, err := r.GetByPhone(ctx, phone); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name=?, dob=?, gender=?, address=? WHERE phone=?",
		name, dob, gender, address, phone)
	return err
}

// SetPassword replaces the stored password hash.  Returns ErrNotFound when
// no such user exists.
func (r *UserRepo) SetPassword(ctx context.Context, phone, hash string) error {
	if _, err := r.GetByPhone(ctx, phone); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET password=? WHERE phone=?", hash, phone)
	return err
}

// List returns every user, newest first.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userCols+" FROM users ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
