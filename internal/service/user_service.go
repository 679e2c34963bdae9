package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/iliyamo/visitor-slot-booking/internal/model"
	"github.com/iliyamo/visitor-slot-booking/internal/repository"
	"github.com/iliyamo/visitor-slot-booking/internal/utils"
)

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

var genders = map[string]bool{"Male": true, "Female": true, "Other": true}

// ValidPhone reports whether s is a 10 digit phone number.
func ValidPhone(s string) bool { return phonePattern.MatchString(s) }

// TokenSettings configures issued sessions.
type TokenSettings struct {
	Secret         string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// Session is an access/refresh token pair issued to a user.
type Session struct {
	User    model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

type RegisterInput struct {
	Name     string
	Phone    string
	DOB      string
	Gender   string
	Address  string
	Password string
}

type ProfileInput struct {
	Phone   string
	Name    string
	DOB     string
	Gender  string
	Address string
}

// UserService is the user directory: phone-keyed accounts with bcrypt
// passwords and JWT sessions.
type UserService struct {
	users  *repository.UserRepo
	tokens *repository.TokenRepo
	refs   *RefAllocator
	cfg    TokenSettings
}

func NewUserService(users *repository.UserRepo, tokens *repository.TokenRepo, cfg TokenSettings) *UserService {
	return &UserService{users: users, tokens: tokens, refs: UserRefs(), cfg: cfg}
}

func validateProfile(name, phone, dob, gender, address string) error {
	if name == "" || phone == "" || dob == "" || gender == "" || address == "" {
		return invalid("", "All fields are required")
	}
	if !ValidPhone(phone) {
		return invalid("phone", "Phone number must be 10 digits")
	}
	if _, err := time.Parse(dateLayout, dob); err != nil {
		return ValidationError{Field: "dob", Msg: "DOB must be in YYYY-MM-DD format", Err: err}
	}
	if !genders[gender] {
		return invalid("gender", "gender must be Male, Female or Other")
	}
	return nil
}

// Register creates an account.  A phone that is already registered is a
// validation failure.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	u := model.User{
		Name:    strings.TrimSpace(in.Name),
		Phone:   strings.TrimSpace(in.Phone),
		DOB:     strings.TrimSpace(in.DOB),
		Gender:  strings.TrimSpace(in.Gender),
		Address: strings.TrimSpace(in.Address),
	}
	if in.Password == "" {
		return model.User{}, invalid("", "All fields are required")
	}
	if err := validateProfile(u.Name, u.Phone, u.DOB, u.Gender, u.Address); err != nil {
		return model.User{}, err
	}
	if len(in.Password) < utils.MinPasswordLen {
		return model.User{}, invalid("password", "Password must be at least 6 characters")
	}
	if _, err := s.users.GetByPhone(ctx, u.Phone); err == nil {
		return model.User{}, invalid("phone", "Phone number already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, StorageError{Op: "lookup user", Err: err}
	}

	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, StorageError{Op: "hash password", Err: err}
	}
	u.PasswordHash = hash

	for attempt := 1; ; attempt++ {
		ref, err := s.refs.Allocate(ctx, s.users.RefExists)
		if err != nil {
			return model.User{}, err
		}
		u.Ref = ref
		err = s.users.Create(ctx, &u)
		switch {
		case err == nil:
			return u, nil
		case errors.Is(err, repository.ErrPhoneExists):
			return model.User{}, invalid("phone", "Phone number already registered")
		case repository.IsDuplicateKey(err) && attempt < maxWriteAttempts:
			continue
		default:
			return model.User{}, StorageError{Op: "create user", Err: err}
		}
	}
}

// Login checks the password and opens a new session.
func (s *UserService) Login(ctx context.Context, phone, password string) (Session, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || password == "" {
		return Session{}, invalid("", "Phone and password required")
	}
	u, err := s.users.GetByPhone(ctx, phone)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, UnauthorizedError{Msg: "Invalid phone number or password"}
	}
	if err != nil {
		return Session{}, StorageError{Op: "lookup user", Err: err}
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return Session{}, UnauthorizedError{Msg: "Invalid phone number or password"}
	}
	return s.issue(ctx, u)
}

func (s *UserService) issue(ctx context.Context, u model.User) (Session, error) {
	access, err := utils.NewAccessToken(s.cfg.Secret, u.ID, u.Phone, s.cfg.AccessTTLMin)
	if err != nil {
		return Session{}, StorageError{Op: "issue access token", Err: err}
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return Session{}, StorageError{Op: "issue refresh token", Err: err}
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, StorageError{Op: "save refresh token", Err: err}
	}
	return Session{User: u, Access: access, Refresh: refresh}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is returned.
func (s *UserService) Refresh(ctx context.Context, raw string) (Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, invalid("refresh_token", "refresh_token required")
	}
	next, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return Session{}, StorageError{Op: "issue refresh token", Err: err}
	}
	userID, err := s.tokens.Rotate(ctx, utils.HashRefreshRaw(raw), utils.HashRefreshRaw(next.Raw), next.Exp)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, UnauthorizedError{Msg: "invalid refresh"}
	}
	if err != nil {
		return Session{}, StorageError{Op: "rotate refresh token", Err: err}
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, UnauthorizedError{Msg: "invalid refresh"}
		}
		return Session{}, StorageError{Op: "load user", Err: err}
	}
	access, err := utils.NewAccessToken(s.cfg.Secret, u.ID, u.Phone, s.cfg.AccessTTLMin)
	if err != nil {
		return Session{}, StorageError{Op: "issue access token", Err: err}
	}
	return Session{User: u, Access: access, Refresh: next}, nil
}

// Logout revokes the given refresh token, or every token of userID when no
// token is supplied.
func (s *UserService) Logout(ctx context.Context, raw string, userID uint64) error {
	raw = strings.TrimSpace(raw)
	switch {
	case raw != "":
		hash := utils.HashRefreshRaw(raw)
		if _, err := s.tokens.ValidateRefresh(ctx, hash); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return UnauthorizedError{Msg: "invalid refresh token"}
			}
			return StorageError{Op: "validate refresh token", Err: err}
		}
		if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
			return StorageError{Op: "logout", Err: err}
		}
		return nil
	case userID != 0:
		if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
			return StorageError{Op: "logout", Err: err}
		}
		return nil
	default:
		return invalid("", "provide Authorization header or refresh_token")
	}
}

// Profile returns the account registered under phone.
func (s *UserService) Profile(ctx context.Context, phone string) (model.User, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return model.User{}, invalid("phone", "Phone number is required")
	}
	u, err := s.users.GetByPhone(ctx, phone)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, NotFoundError{Resource: "User", Err: err}
	}
	if err != nil {
		return model.User{}, StorageError{Op: "lookup user", Err: err}
	}
	return u, nil
}

// UpdateProfile rewrites name, date of birth, gender and address.
func (s *UserService) UpdateProfile(ctx context.Context, in ProfileInput) (model.User, error) {
	in.Phone = strings.TrimSpace(in.Phone)
	in.Name = strings.TrimSpace(in.Name)
	in.DOB = strings.TrimSpace(in.DOB)
	in.Gender = strings.TrimSpace(in.Gender)
	in.Address = strings.TrimSpace(in.Address)
	if err := validateProfile(in.Name, in.Phone, in.DOB, in.Gender, in.Address); err != nil {
		return model.User{}, err
	}
	err := s.users.UpdateProfile(ctx, in.Phone, in.Name, in.DOB, in.Gender, in.Address)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, NotFoundError{Resource: "User", Err: err}
	}
	if err != nil {
		return model.User{}, StorageError{Op: "update profile", Err: err}
	}
	return s.Profile(ctx, in.Phone)
}

// ResetPassword replaces the password of the account registered under phone.
func (s *UserService) ResetPassword(ctx context.Context, phone, password string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" || password == "" {
		return invalid("", "Phone and new password are required")
	}
	if len(password) < utils.MinPasswordLen {
		return invalid("new_password", "Password must be at least 6 characters")
	}
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return StorageError{Op: "hash password", Err: err}
	}
	err = s.users.SetPassword(ctx, phone, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return NotFoundError{Resource: "User", Err: err}
	}
	if err != nil {
		return StorageError{Op: "reset password", Err: err}
	}
	return nil
}

// ListUsers returns every account.  Development use only.
func (s *UserService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, StorageError{Op: "list users", Err: err}
	}
	return users, nil
}
