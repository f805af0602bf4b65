package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tokengate/tokengate/internal/keys"
)

var (
	ErrVerificationNotFound    = errors.New("verification record not found")
	ErrVerificationUnavailable = errors.New("verification store unavailable")
)

// VerificationStore persists single-use verification tokens. The record value
// is the bound subject identity; expiry is the key's TTL, and deletion of the
// key is the sole mechanism of consumption.
type VerificationStore struct {
	redis redis.UniversalClient
}

func NewVerificationStore(redisClient redis.UniversalClient) *VerificationStore {
	return &VerificationStore{redis: redisClient}
}

// Save binds token to subject for the given TTL. Multiple outstanding tokens
// for the same subject are allowed; each lives under its own key.
func (s *VerificationStore) Save(ctx context.Context, token, subject string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, keys.Verification(token), subject, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	return nil
}

// Consume atomically reads and removes the record in a single GETDEL, so two
// concurrent consumers racing on the same token cannot both succeed: Redis
// serializes the command and the loser observes an absent key.
func (s *VerificationStore) Consume(ctx context.Context, token string) (string, error) {
	subject, err := s.redis.GetDel(ctx, keys.Verification(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrVerificationNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	return subject, nil
}
