package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTokenLifetime = 1799 * time.Second
	defaultSafetyMargin  = time.Minute
	maxTokenBodyBytes    = 64 << 10
)

// AccessToken is a bearer credential with its effective expiry. ExpiresAt
// already has the safety margin subtracted.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenManagerConfig holds the client-credentials settings for the provider
type TokenManagerConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	SafetyMargin time.Duration
	Timeout      time.Duration
}

// TokenManager obtains and caches the provider access token. Concurrent
// callers that find the cache empty share a single exchange.
type TokenManager struct {
	config     TokenManagerConfig
	httpClient *http.Client
	logger     *logrus.Logger
	now        func() time.Time

	mu    sync.RWMutex
	token AccessToken

	group singleflight.Group
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// NewTokenManager creates a token manager. A nil httpClient gets a client
// bounded by config.Timeout.
func NewTokenManager(config TokenManagerConfig, httpClient *http.Client, logger *logrus.Logger) *TokenManager {
	if config.SafetyMargin <= 0 {
		config.SafetyMargin = defaultSafetyMargin
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &TokenManager{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock replaces the time source used for expiry decisions.
func (m *TokenManager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// GetToken returns a valid token, exchanging credentials only when the cached
// one is missing or inside the safety margin. A caller that gives up waiting
// does not cancel the shared exchange.
func (m *TokenManager) GetToken(ctx context.Context) (AccessToken, error) {
	if m.config.ClientID == "" || m.config.ClientSecret == "" {
		return AccessToken{}, ErrCredentialsMissing
	}

	if tok, ok := m.cached(); ok {
		return tok, nil
	}

	ch := m.group.DoChan("token", func() (interface{}, error) {
		if tok, ok := m.cached(); ok {
			return tok, nil
		}
		return m.exchange(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return AccessToken{}, res.Err
		}
		return res.Val.(AccessToken), nil
	case <-ctx.Done():
		return AccessToken{}, newTransportError("token", ctx.Err())
	}
}

// Invalidate drops the cached token so the next call re-authenticates.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = AccessToken{}
}

func (m *TokenManager) cached() (AccessToken, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token.Value == "" || !m.now().Before(m.token.ExpiresAt) {
		return AccessToken{}, false
	}
	return m.token, true
}

func (m *TokenManager) exchange(ctx context.Context) (AccessToken, error) {
	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return AccessToken{}, &ProviderError{Kind: ErrProviderUnavailable, Operation: "token", Err: err}
	}
	req.SetBasicAuth(m.config.ClientID, m.config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	m.logger.WithField("token_url", m.config.TokenURL).Debug("Exchanging client credentials for access token")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return AccessToken{}, newTransportError("token", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBodyBytes))
	if err != nil {
		return AccessToken{}, newTransportError("token", err)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		m.logger.WithField("status", resp.StatusCode).Warn("Inventory provider rejected client credentials")
		return AccessToken{}, newStatusError(ErrAuthRejected, "token", resp.StatusCode, body)
	case resp.StatusCode >= 300:
		return AccessToken{}, newStatusError(ErrProviderRejected, "token", resp.StatusCode, body)
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return AccessToken{}, &ProviderError{Kind: ErrAuthRejected, Operation: "token", StatusCode: resp.StatusCode, Err: fmt.Errorf("decode token response: %w", err)}
	}
	if parsed.AccessToken == "" {
		return AccessToken{}, &ProviderError{Kind: ErrAuthRejected, Operation: "token", StatusCode: resp.StatusCode, Detail: "token response has no access_token"}
	}

	lifetime := time.Duration(parsed.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = defaultTokenLifetime
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = AccessToken{
		Value:     parsed.AccessToken,
		ExpiresAt: m.now().Add(lifetime - m.config.SafetyMargin),
	}

	m.logger.WithFields(logrus.Fields{
		"expires_in": parsed.ExpiresIn,
		"expires_at": m.token.ExpiresAt,
	}).Info("Inventory access token refreshed")

	return m.token, nil
}
