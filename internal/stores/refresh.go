package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tokengate/tokengate/internal/keys"
)

const refreshRecordVersionV1 = 1

// Refresh token status values persisted inside the record.
const (
	RefreshStatusValid   uint8 = 1
	RefreshStatusRevoked uint8 = 2
)

var (
	ErrRefreshNotFound    = errors.New("refresh record not found")
	ErrRefreshCorrupt     = errors.New("refresh record corrupt")
	ErrRefreshUnavailable = errors.New("refresh store unavailable")
)

// RefreshRecord is the persisted state of one issued refresh token.
// The token value itself is the key, never part of the record.
type RefreshRecord struct {
	Subject   string
	Status    uint8
	ExpiresAt int64
}

// RefreshStore persists refresh-token records in Redis, one key per token.
// All coordination happens through single-key Redis operations; the store
// holds no in-process state.
type RefreshStore struct {
	redis redis.UniversalClient
}

func NewRefreshStore(redisClient redis.UniversalClient) *RefreshStore {
	return &RefreshStore{redis: redisClient}
}

// Save writes the record under the token's key with the given TTL.
func (s *RefreshStore) Save(ctx context.Context, token string, record *RefreshRecord, ttl time.Duration) error {
	encoded, err := encodeRefreshRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, keys.Refresh(token), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshUnavailable, err)
	}

	return nil
}

// Get loads the record for a token. A missing key maps to ErrRefreshNotFound;
// any transport failure maps to ErrRefreshUnavailable so callers can
// fail closed.
func (s *RefreshStore) Get(ctx context.Context, token string) (*RefreshRecord, error) {
	data, err := s.redis.Get(ctx, keys.Refresh(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRefreshNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRefreshUnavailable, err)
	}

	return decodeRefreshRecord(data)
}

// Delete removes the record and reports whether it was present.
// Deleting an absent token is not an error, which makes revocation idempotent.
func (s *RefreshStore) Delete(ctx context.Context, token string) (bool, error) {
	removed, err := s.redis.Del(ctx, keys.Refresh(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRefreshUnavailable, err)
	}
	return removed > 0, nil
}

func encodeRefreshRecord(record *RefreshRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(refreshRecordVersionV1)
	buf.WriteByte(record.Status)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.Subject) > 65535 {
		return nil, errors.New("refresh record subject too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Subject))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Subject)

	return buf.Bytes(), nil
}

func decodeRefreshRecord(data []byte) (*RefreshRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrRefreshCorrupt
	}
	if version != refreshRecordVersionV1 {
		return nil, ErrRefreshCorrupt
	}

	status, err := reader.ReadByte()
	if err != nil {
		return nil, ErrRefreshCorrupt
	}

	record := &RefreshRecord{Status: status}

	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, ErrRefreshCorrupt
	}

	var subjectLen uint16
	if err := binary.Read(reader, binary.BigEndian, &subjectLen); err != nil {
		return nil, ErrRefreshCorrupt
	}

	subject := make([]byte, subjectLen)
	if _, err := io.ReadFull(reader, subject); err != nil {
		return nil, ErrRefreshCorrupt
	}
	record.Subject = string(subject)

	return record, nil
}
