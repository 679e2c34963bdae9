package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ChallengeRepo stores one-time codes in the otps table.
type ChallengeRepo struct {
	db *sql.DB
}

func NewChallengeRepo(db *sql.DB) *ChallengeRepo { return &ChallengeRepo{db: db} }

// Replace invalidates every unused code for phone and stores the new one,
// in one transaction.
func (r *ChallengeRepo) Replace(ctx context.Context, phone, code string, expiresAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `UPDATE otps SET used = TRUE WHERE phone = ? AND used = FALSE`, phone); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO otps (phone, otp_code, expires_at) VALUES (?, ?, ?)`, phone, code, expiresAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Consume marks the newest matching unused, unexpired code as used and
// reports whether one was found.
func (r *ChallengeRepo) Consume(ctx context.Context, phone, code string, now time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var id uint64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM otps WHERE phone = ? AND otp_code = ? AND used = FALSE AND expires_at > ?
		 ORDER BY created_at DESC, id DESC LIMIT 1 FOR UPDATE`, phone, code, now).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE otps SET used = TRUE WHERE id = ?`, id); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}
