package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/iliyamo/visitor-slot-booking/internal/otp"
)

var codePattern = regexp.MustCompile(`^[0-9]{4}$`)

// ChallengeService issues and checks phone verification codes.
type ChallengeService struct {
	store otp.Store
}

func NewChallengeService(store otp.Store) *ChallengeService {
	return &ChallengeService{store: store}
}

// Issue creates a new code for phone, invalidating earlier ones.
func (s *ChallengeService) Issue(ctx context.Context, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", invalid("phone", "Phone number is required")
	}
	code, err := s.store.Issue(ctx, phone)
	if err != nil {
		return "", StorageError{Op: "issue code", Err: err}
	}
	return code, nil
}

// Verify consumes code if it is the current one for phone.  A malformed
// code is a validation error; a wrong or expired one is (false, nil).
func (s *ChallengeService) Verify(ctx context.Context, phone, code string) (bool, error) {
	phone = strings.TrimSpace(phone)
	code = strings.TrimSpace(code)
	if phone == "" || code == "" {
		return false, invalid("", "Phone and OTP are required")
	}
	if !codePattern.MatchString(code) {
		return false, invalid("otp", "Invalid OTP format")
	}
	ok, err := s.store.Verify(ctx, phone, code)
	if err != nil {
		return false, StorageError{Op: "verify code", Err: err}
	}
	return ok, nil
}
