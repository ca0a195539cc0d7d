package inventory

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTokenServer(t *testing.T, exchanges *int32, delay time.Duration) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(exchanges, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"Client credentials are invalid"}`))
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type":"amadeusOAuth2Token","access_token":"tok-abc","token_type":"Bearer","expires_in":1799}`))
	}))
}

func newTestTokenManager(url, id, secret string, clock *fakeClock) *TokenManager {
	m := NewTokenManager(TokenManagerConfig{
		TokenURL:     url,
		ClientID:     id,
		ClientSecret: secret,
		SafetyMargin: time.Minute,
		Timeout:      2 * time.Second,
	}, nil, quietLogger())
	if clock != nil {
		m.SetClock(clock.Now)
	}
	return m
}

func TestTokenManager_CachesUntilSafetyMargin(t *testing.T) {
	var exchanges int32
	server := newTokenServer(t, &exchanges, 0)
	defer server.Close()

	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestTokenManager(server.URL, "client", "secret", clock)

	tok, err := m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", tok.Value)
	assert.Equal(t, clock.Now().Add(1799*time.Second-time.Minute), tok.ExpiresAt)

	_, err = m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges))

	// one second before the margin kicks in
	clock.Advance(1799*time.Second - time.Minute - time.Second)
	_, err = m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges))

	clock.Advance(time.Second)
	_, err = m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&exchanges))
}

func TestTokenManager_ConcurrentCallersShareOneExchange(t *testing.T) {
	var exchanges int32
	server := newTokenServer(t, &exchanges, 100*time.Millisecond)
	defer server.Close()

	m := newTestTokenManager(server.URL, "client", "secret", nil)

	const callers = 25
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := m.GetToken(context.Background())
			if err == nil && tok.Value != "tok-abc" {
				err = errors.New("unexpected token " + tok.Value)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges))
}

func TestTokenManager_Errors(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		secret    string
		wantErr   error
		wantCalls int32
	}{
		{name: "missing client id", id: "", secret: "secret", wantErr: ErrCredentialsMissing, wantCalls: 0},
		{name: "missing secret", id: "client", secret: "", wantErr: ErrCredentialsMissing, wantCalls: 0},
		{name: "rejected credentials", id: "client", secret: "wrong", wantErr: ErrAuthRejected, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var exchanges int32
			server := newTokenServer(t, &exchanges, 0)
			defer server.Close()

			m := newTestTokenManager(server.URL, tt.id, tt.secret, nil)
			_, err := m.GetToken(context.Background())

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&exchanges))
		})
	}
}

func TestTokenManager_RejectedCarriesProviderDetail(t *testing.T) {
	var exchanges int32
	server := newTokenServer(t, &exchanges, 0)
	defer server.Close()

	m := newTestTokenManager(server.URL, "client", "wrong", nil)
	_, err := m.GetToken(context.Background())

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	assert.Equal(t, "invalid_client", pe.Code)
	assert.Equal(t, "Client credentials are invalid", pe.Detail)
}

func TestTokenManager_InvalidateForcesExchange(t *testing.T) {
	var exchanges int32
	server := newTokenServer(t, &exchanges, 0)
	defer server.Close()

	m := newTestTokenManager(server.URL, "client", "secret", nil)

	_, err := m.GetToken(context.Background())
	require.NoError(t, err)
	m.Invalidate()
	_, err = m.GetToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&exchanges))
}

func TestTokenManager_Timeout(t *testing.T) {
	var exchanges int32
	server := newTokenServer(t, &exchanges, 300*time.Millisecond)
	defer server.Close()

	m := NewTokenManager(TokenManagerConfig{
		TokenURL:     server.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		Timeout:      50 * time.Millisecond,
	}, nil, quietLogger())

	_, err := m.GetToken(context.Background())
	assert.ErrorIs(t, err, ErrProviderTimeout)
}
