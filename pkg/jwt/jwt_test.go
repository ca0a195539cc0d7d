package jwt

import (
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-access-secret-key-for-testing-purposes"
	testIssuer = "tripnest"
)

func TestNewService(t *testing.T) {
	service := NewService(testSecret, testIssuer, time.Hour)

	assert.NotNil(t, service)
	assert.Equal(t, testSecret, service.secret)
	assert.Equal(t, testIssuer, service.issuer)
	assert.Equal(t, time.Hour, service.accessTokenExpiry)
}

func TestGenerateAccessToken(t *testing.T) {
	service := NewService(testSecret, testIssuer, time.Hour)

	token, err := service.GenerateAccessToken("cust_42", "asha@example.com", []string{"customer"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "cust_42", claims.Subject)
	assert.Equal(t, "asha@example.com", claims.Email)
	assert.Equal(t, []string{"customer"}, claims.Roles)
	assert.Equal(t, AccessToken, claims.TokenType)
	assert.Equal(t, testIssuer, claims.Issuer)
}

func TestGenerateAccessToken_RequiresSubject(t *testing.T) {
	service := NewService(testSecret, testIssuer, time.Hour)

	_, err := service.GenerateAccessToken("", "asha@example.com", nil)
	assert.Error(t, err)
}

func TestValidateAccessToken_Rejections(t *testing.T) {
	service := NewService(testSecret, testIssuer, time.Hour)
	token, err := service.GenerateAccessToken("cust_42", "", []string{"customer"})
	require.NoError(t, err)

	foreignIssuer, err := NewService(testSecret, "someone-else", time.Hour).GenerateAccessToken("cust_42", "", nil)
	require.NoError(t, err)

	wrongType := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		TokenType:        "refresh",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "cust_42", Issuer: testIssuer},
	})
	wrongTypeToken, err := wrongType.SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name    string
		service *Service
		token   string
	}{
		{"garbage", service, "invalid.token.here"},
		{"wrong secret", NewService("wrong-secret", testIssuer, time.Hour), token},
		{"wrong issuer", service, foreignIssuer},
		{"wrong token type", service, wrongTypeToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.service.ValidateAccessToken(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestValidateAccessToken_RejectsNoneAlgorithm(t *testing.T) {
	service := NewService(testSecret, testIssuer, time.Hour)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		TokenType:        AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "cust_42", Issuer: testIssuer},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	service := NewService(testSecret, testIssuer, -time.Hour)

	token, err := service.GenerateAccessToken("cust_42", "", nil)
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	assert.True(t, service.IsTokenExpired(token))
}

func TestIsTokenExpired(t *testing.T) {
	service := NewService(testSecret, testIssuer, time.Hour)

	token, err := service.GenerateAccessToken("cust_42", "", nil)
	require.NoError(t, err)

	assert.False(t, service.IsTokenExpired(token))
	assert.True(t, service.IsTokenExpired("invalid.token.here"))
}

func TestExtractClaims(t *testing.T) {
	service := NewService(testSecret, testIssuer, time.Hour)

	token, err := service.GenerateAccessToken("cust_42", "asha@example.com", []string{"customer", "agent"})
	require.NoError(t, err)

	claims, err := NewService("other-secret", "", time.Hour).ExtractClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "cust_42", claims.Subject)
	assert.Len(t, claims.Roles, 2)
}

func TestConcurrentTokenGeneration(t *testing.T) {
	service := NewService(testSecret, testIssuer, time.Hour)

	var wg sync.WaitGroup
	errs := make(chan error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := service.GenerateAccessToken("cust_42", "", []string{"customer"})
			if err != nil {
				errs <- err
				return
			}
			if _, err := service.ValidateAccessToken(token); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)
	assert.Empty(t, errs)
}

func TestQuoteToken_RoundTrip(t *testing.T) {
	service := NewService(testSecret, testIssuer, time.Hour)

	token, err := service.GenerateQuoteToken("digest-a", true, "pricing_unavailable", 30*time.Minute)
	require.NoError(t, err)

	claims, err := service.ValidateQuoteToken(token, "digest-a")
	require.NoError(t, err)
	assert.Equal(t, QuoteToken, claims.TokenType)
	assert.True(t, claims.Degraded)
	assert.Equal(t, "pricing_unavailable", claims.DegradationReason)

	_, err = service.GenerateQuoteToken("", false, "", time.Minute)
	assert.Error(t, err)
}

func TestValidateQuoteToken_Rejections(t *testing.T) {
	service := NewService(testSecret, testIssuer, time.Hour)

	quote, err := service.GenerateQuoteToken("digest-a", false, "", 30*time.Minute)
	require.NoError(t, err)
	expired, err := service.GenerateQuoteToken("digest-a", false, "", -time.Minute)
	require.NoError(t, err)
	access, err := service.GenerateAccessToken("cust_42", "", nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		service *Service
		token   string
		digest  string
	}{
		{"empty", service, "", "digest-a"},
		{"other offer", service, quote, "digest-b"},
		{"expired", service, expired, "digest-a"},
		{"wrong secret", NewService("wrong-secret", testIssuer, time.Hour), quote, "digest-a"},
		{"access token", service, access, "digest-a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.service.ValidateQuoteToken(tt.token, tt.digest)
			assert.Error(t, err)
		})
	}

	_, err = service.ValidateAccessToken(quote)
	assert.Error(t, err, "a quote must not authenticate a customer")
}
