package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Tables lists every table the service owns, parents before children.
var Tables = []string{"users", "refresh_tokens", "otps", "bookings", "persons", "notifications"}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_ref VARCHAR(50) NOT NULL UNIQUE,
		phone VARCHAR(20) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL,
		dob DATE NOT NULL,
		gender ENUM('Male','Female','Other') NOT NULL,
		address TEXT NOT NULL,
		password VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_users_phone (phone)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS otps (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		phone VARCHAR(20) NOT NULL,
		otp_code VARCHAR(10) NOT NULL,
		expires_at DATETIME NOT NULL,
		used BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_otps_phone (phone),
		INDEX idx_otps_expires (expires_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		booking_ref VARCHAR(50) NOT NULL UNIQUE,
		title VARCHAR(255) NOT NULL,
		booking_date DATE NOT NULL,
		time_slot VARCHAR(100) NOT NULL,
		persons INT NOT NULL,
		amount INT DEFAULT 0,
		paid BOOLEAN DEFAULT FALSE,
		payment_ref VARCHAR(255) NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_bookings_date (booking_date),
		INDEX idx_bookings_created (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS persons (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		booking_id BIGINT UNSIGNED NOT NULL,
		name VARCHAR(255) NULL,
		phone VARCHAR(20) NULL,
		gender VARCHAR(20) NULL,
		age VARCHAR(50) NULL,
		is_elder_disabled BOOLEAN DEFAULT FALSE,
		elder_age VARCHAR(50) NULL,
		wheelchair_required BOOLEAN NULL,
		FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE,
		INDEX idx_persons_booking (booking_id),
		INDEX idx_persons_phone (phone)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		message TEXT NOT NULL,
		type VARCHAR(50) DEFAULT 'general',
		booking_id BIGINT UNSIGNED NULL,
		is_read BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE SET NULL,
		INDEX idx_notifications_created (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates any missing tables.  Statements are idempotent so it
// is safe to run on every start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", Tables[i], err)
		}
	}
	return nil
}

// TableStatus reports, per owned table, whether it exists in the current
// database.
func TableStatus(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE()")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	present := make(map[string]bool, len(Tables))
	for _, t := range Tables {
		present[t] = false
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if _, ok := present[name]; ok {
			present[name] = true
		}
	}
	return present, rows.Err()
}
