package tokengate

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tokengate/tokengate/password"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func testConfig() Config {
	return Config{
		Refresh:      RefreshConfig{TTL: 7 * 24 * time.Hour},
		Verification: VerificationConfig{TTL: 24 * time.Hour},
		RateLimit:    RateLimitConfig{Quota: 100, Window: time.Minute},
		JWT: JWTConfig{
			Secret:    []byte("0123456789abcdef0123456789abcdef"),
			AccessTTL: 30 * time.Minute,
			Issuer:    "tokengate-test",
		},
		Mail: MailConfig{
			BaseURL:      "https://app.example.com",
			From:         "no-reply@example.com",
			QueueSize:    16,
			MaxAttempts:  2,
			RetryBackoff: time.Millisecond,
		},
	}
}

type mockUserProvider struct {
	mu       sync.Mutex
	users    map[string]UserRecord // keyed by email
	verified map[string]bool       // keyed by user ID
}

func newMockUserProvider() *mockUserProvider {
	return &mockUserProvider{
		users:    map[string]UserRecord{},
		verified: map[string]bool{},
	}
}

func (m *mockUserProvider) add(user UserRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.Email] = user
}

func (m *mockUserProvider) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[email]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserProvider) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, user := range m.users {
		if user.UserID == userID {
			user.PasswordHash = newHash
			m.users[email] = user
			return nil
		}
	}
	return ErrUserNotFound
}

func (m *mockUserProvider) MarkEmailVerified(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verified[userID] = true
	return nil
}

func (m *mockUserProvider) passwordHashFor(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[email].PasswordHash
}

func (m *mockUserProvider) isVerified(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verified[userID]
}

type captureMailSender struct {
	mu   sync.Mutex
	sent []MailMessage
	fail int // fail this many deliveries before succeeding
}

func (c *captureMailSender) Send(_ context.Context, msg MailMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail > 0 {
		c.fail--
		return io.ErrUnexpectedEOF
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureMailSender) messages() []MailMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]MailMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

func newTestEngine(t *testing.T, rdb *redis.Client) *Engine {
	t.Helper()
	return newTestEngineWith(t, rdb, newMockUserProvider(), &captureMailSender{})
}

func newTestEngineWith(t *testing.T, rdb *redis.Client, up UserProvider, sender MailSender) *Engine {
	t.Helper()

	engine, err := NewBuilder().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithUserProvider(up).
		WithMailSender(sender).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine
}

func testPasswordHash(t *testing.T, plain string) string {
	t.Helper()

	hasher, err := password.NewHasher(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	hash, err := hasher.Hash(plain)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	return hash
}
