package model

import "time"

// User represents an account record as stored in the `users` table.
// Accounts are keyed by phone number; Ref is the public USR-xxxxxxxx
// identifier handed to clients.  The password is stored as a bcrypt hash.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Ref          – unique public reference.
//  Phone        – unique 10 digit phone number.
//  Name         – display name.
//  DOB          – date of birth, YYYY-MM-DD.
//  Gender       – Male, Female or Other.
//  Address      – postal address.
//  PasswordHash – bcrypt hashed password.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last modification.
type User struct {
	ID           uint64    // users.id
	Ref          string    // users.user_ref
	Phone        string    // users.phone
	Name         string    // users.name
	DOB          string    // users.dob
	Gender       string    // users.gender
	Address      string    // users.address
	PasswordHash string    // users.password
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// Challenge is a one-time code issued to a phone.  At most one unused,
// unexpired challenge per phone is honoured.
type Challenge struct {
	ID        uint64
	Phone     string
	Code      string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}
