package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/visitor-slot-booking/internal/utils"
)

const (
	// DefaultMaxAttempts bounds the collision loop.  Hitting it means the
	// entropy is exhausted or the existence check is broken.
	DefaultMaxAttempts = 50
	// backoffAfter consecutive collisions trigger backoffDelay between tries.
	backoffAfter = 5
	backoffDelay = 50 * time.Millisecond
)

// ExistsFunc reports whether ref is already taken in the target scope.
type ExistsFunc func(ctx context.Context, ref string) (bool, error)

// RefAllocator generates "<prefix>-<hex>" references that are absent from
// the target scope at the time of the check.  The store's unique
// constraint remains the authority; callers retry the whole insert when it
// reports a duplicate.
type RefAllocator struct {
	Prefix      string
	HexLen      int
	MaxAttempts int

	generate func(prefix string, n int) string
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewRefAllocator(prefix string, hexLen int) *RefAllocator {
	return &RefAllocator{
		Prefix:      prefix,
		HexLen:      hexLen,
		MaxAttempts: DefaultMaxAttempts,
		generate:    utils.ShortRef,
		sleep:       sleepCtx,
	}
}

// BookingRefs allocates BK-xxxxxxxxxx references.
func BookingRefs() *RefAllocator { return NewRefAllocator("BK", 10) }

// UserRefs allocates USR-xxxxxxxx references.
func UserRefs() *RefAllocator { return NewRefAllocator("USR", 8) }

// Allocate returns a fresh reference.  Errors from exists are returned as
// StorageError; running out of attempts yields ConflictError.
func (a *RefAllocator) Allocate(ctx context.Context, exists ExistsFunc) (string, error) {
	limit := a.MaxAttempts
	if limit <= 0 {
		limit = DefaultMaxAttempts
	}
	for attempt := 1; attempt <= limit; attempt++ {
		ref := a.generate(a.Prefix, a.HexLen)
		taken, err := exists(ctx, ref)
		if err != nil {
			return "", StorageError{Op: "check reference", Err: err}
		}
		if !taken {
			return ref, nil
		}
		if attempt >= backoffAfter && attempt < limit {
			if err := a.sleep(ctx, backoffDelay); err != nil {
				return "", err
			}
		}
	}
	return "", ConflictError{
		Resource: "reference",
		Msg:      fmt.Sprintf("no free %s reference after %d attempts", a.Prefix, limit),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
