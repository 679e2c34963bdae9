// Package otp issues and verifies single-use phone verification codes.
// Two stores are provided: Redis (default) and the otps SQL table.
package otp

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/visitor-slot-booking/internal/repository"
	"github.com/iliyamo/visitor-slot-booking/internal/utils"
)

const (
	CodeLength = 4
	TTL        = 10 * time.Minute
)

// Store is the challenge store contract.  Issue invalidates any earlier
// unused code for the phone; Verify succeeds at most once per code.
type Store interface {
	Issue(ctx context.Context, phone string) (string, error)
	Verify(ctx context.Context, phone, code string) (bool, error)
}

// RedisStore keeps the current code under otp:<phone> with a TTL.
// Overwriting the key is what invalidates older codes.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "otp", ttl: TTL}
}

// compare-and-delete so a code cannot be used twice under concurrency
var consumeScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		redis.call('DEL', KEYS[1])
		return 1
	end
	return 0
`)

func (s *RedisStore) key(phone string) string { return s.prefix + ":" + phone }

func (s *RedisStore) Issue(ctx context.Context, phone string) (string, error) {
	code := utils.NumericCode(CodeLength)
	if err := s.rdb.Set(ctx, s.key(phone), code, s.ttl).Err(); err != nil {
		return "", err
	}
	return code, nil
}

func (s *RedisStore) Verify(ctx context.Context, phone, code string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.rdb, []string{s.key(phone)}, code).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SQLStore keeps codes in the otps table.
type SQLStore struct {
	repo *repository.ChallengeRepo
	ttl  time.Duration
	now  func() time.Time
}

func NewSQLStore(repo *repository.ChallengeRepo) *SQLStore {
	return &SQLStore{repo: repo, ttl: TTL, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SQLStore) Issue(ctx context.Context, phone string) (string, error) {
	code := utils.NumericCode(CodeLength)
	if err := s.repo.Replace(ctx, phone, code, s.now().Add(s.ttl)); err != nil {
		return "", err
	}
	return code, nil
}

func (s *SQLStore) Verify(ctx context.Context, phone, code string) (bool, error) {
	return s.repo.Consume(ctx, phone, code, s.now())
}
