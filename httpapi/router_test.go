package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	tokengate "github.com/tokengate/tokengate"
	"github.com/tokengate/tokengate/password"
)

type mockUsers struct {
	mu    sync.Mutex
	users map[string]tokengate.UserRecord
}

func (m *mockUsers) GetUserByEmail(_ context.Context, email string) (tokengate.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[email]
	if !ok {
		return tokengate.UserRecord{}, tokengate.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUsers) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, user := range m.users {
		if user.UserID == userID {
			user.PasswordHash = newHash
			m.users[email] = user
			return nil
		}
	}
	return tokengate.ErrUserNotFound
}

func (m *mockUsers) MarkEmailVerified(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, user := range m.users {
		if user.UserID == userID {
			user.Verified = true
			m.users[email] = user
			return nil
		}
	}
	return tokengate.ErrUserNotFound
}

type discardMail struct{}

func (discardMail) Send(context.Context, tokengate.MailMessage) error { return nil }

func hashPassword(t *testing.T, plain string) string {
	t.Helper()
	hasher, err := password.NewHasher(password.Config{
		Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
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

func newTestServer(t *testing.T, quota int) (*httptest.Server, *mockUsers, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	users := &mockUsers{users: map[string]tokengate.UserRecord{}}

	cfg := tokengate.Config{
		Refresh:      tokengate.RefreshConfig{TTL: 7 * 24 * time.Hour},
		Verification: tokengate.VerificationConfig{TTL: 24 * time.Hour},
		RateLimit:    tokengate.RateLimitConfig{Quota: quota, Window: time.Minute},
		JWT: tokengate.JWTConfig{
			Secret:    []byte("0123456789abcdef0123456789abcdef"),
			AccessTTL: 30 * time.Minute,
			Issuer:    "tokengate-test",
		},
		Mail: tokengate.MailConfig{
			BaseURL:   "https://app.example.com",
			From:      "no-reply@example.com",
			QueueSize: 16,
		},
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := tokengate.NewBuilder().
		WithConfig(cfg).
		WithRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()})).
		WithUserProvider(users).
		WithMailSender(discardMail{}).
		WithLogger(log).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	srv := httptest.NewServer(NewRouter(engine, log, 5*time.Second))
	t.Cleanup(srv.Close)
	return srv, users, mr
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestLoginIssuesTokenPair(t *testing.T) {
	srv, users, _ := newTestServer(t, 100)
	users.users["alice@example.com"] = tokengate.UserRecord{
		UserID:       "user-1",
		Email:        "alice@example.com",
		PasswordHash: hashPassword(t, "correct horse"),
	}

	resp := postJSON(t, srv.URL+"/api/auth/token", map[string]string{
		"email":    "alice@example.com",
		"password": "correct horse",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var pair tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("empty token in response: %+v", pair)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	srv, users, _ := newTestServer(t, 100)
	users.users["alice@example.com"] = tokengate.UserRecord{
		UserID:       "user-1",
		Email:        "alice@example.com",
		PasswordHash: hashPassword(t, "correct horse"),
	}

	resp := postJSON(t, srv.URL+"/api/auth/token", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong horse",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestLoginValidatesPayload(t *testing.T) {
	srv, _, _ := newTestServer(t, 100)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"missing email", map[string]string{"password": "long enough"}},
		{"bad email", map[string]string{"email": "not-an-email", "password": "long enough"}},
		{"short password", map[string]string{"email": "a@example.com", "password": "short"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/auth/token", tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	srv, users, _ := newTestServer(t, 100)
	users.users["alice@example.com"] = tokengate.UserRecord{
		UserID:       "user-1",
		Email:        "alice@example.com",
		PasswordHash: hashPassword(t, "correct horse"),
	}

	login := postJSON(t, srv.URL+"/api/auth/token", map[string]string{
		"email":    "alice@example.com",
		"password": "correct horse",
	})
	var pair tokenResponse
	if err := json.NewDecoder(login.Body).Decode(&pair); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	refresh := postJSON(t, srv.URL+"/api/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	if refresh.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200", refresh.StatusCode)
	}
	var next tokenResponse
	if err := json.NewDecoder(refresh.Body).Decode(&next); err != nil {
		t.Fatalf("decode refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	// The old token must be dead after rotation.
	replay := postJSON(t, srv.URL+"/api/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	if replay.StatusCode == http.StatusOK {
		t.Error("replayed old refresh token was accepted")
	}
}

func TestRevokeEndsSession(t *testing.T) {
	srv, users, _ := newTestServer(t, 100)
	users.users["alice@example.com"] = tokengate.UserRecord{
		UserID:       "user-1",
		Email:        "alice@example.com",
		PasswordHash: hashPassword(t, "correct horse"),
	}

	login := postJSON(t, srv.URL+"/api/auth/token", map[string]string{
		"email":    "alice@example.com",
		"password": "correct horse",
	})
	var pair tokenResponse
	if err := json.NewDecoder(login.Body).Decode(&pair); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	revoke := postJSON(t, srv.URL+"/api/auth/revoke", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	if revoke.StatusCode != http.StatusNoContent {
		t.Fatalf("revoke status = %d, want 204", revoke.StatusCode)
	}

	after := postJSON(t, srv.URL+"/api/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	if after.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after revoke status = %d, want 401", after.StatusCode)
	}
}

func TestForgotPasswordUniformResponse(t *testing.T) {
	srv, users, _ := newTestServer(t, 100)
	users.users["alice@example.com"] = tokengate.UserRecord{
		UserID:       "user-1",
		Email:        "alice@example.com",
		PasswordHash: hashPassword(t, "correct horse"),
	}

	known := postJSON(t, srv.URL+"/api/auth/forgot-password", map[string]string{
		"email": "alice@example.com",
	})
	unknown := postJSON(t, srv.URL+"/api/auth/forgot-password", map[string]string{
		"email": "nobody@example.com",
	})
	if known.StatusCode != http.StatusAccepted || unknown.StatusCode != http.StatusAccepted {
		t.Fatalf("statuses = %d/%d, want 202/202", known.StatusCode, unknown.StatusCode)
	}
}

func TestResetPasswordWithBadToken(t *testing.T) {
	srv, _, _ := newTestServer(t, 100)

	resp := postJSON(t, srv.URL+"/api/auth/reset-password", map[string]string{
		"token":        "not-a-real-token",
		"new_password": "a new password",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestRateLimitAppliesToAuthRoutes(t *testing.T) {
	srv, _, _ := newTestServer(t, 2)

	var last *http.Response
	for i := 0; i < 3; i++ {
		last = postJSON(t, srv.URL+"/api/auth/forgot-password", map[string]string{
			"email": "alice@example.com",
		})
	}
	if last.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", last.StatusCode)
	}
	if last.Header.Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}

	// Health endpoint is outside the limited tree.
	health, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", health.StatusCode)
	}
}

func TestStoreOutageReturns503(t *testing.T) {
	srv, _, mr := newTestServer(t, 100)
	mr.Close()

	resp := postJSON(t, srv.URL+"/api/auth/refresh", map[string]string{
		"refresh_token": "whatever-token",
	})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	srv, _, _ := newTestServer(t, 100)

	resp := postJSON(t, srv.URL+"/api/auth/revoke", map[string]string{
		"refresh_token": "tok",
		"extra":         "field",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
