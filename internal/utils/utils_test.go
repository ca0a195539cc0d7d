package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	now := time.UnixMilli(1746891000123)
	id := NewID("TXN", now)

	assert.Regexp(t, regexp.MustCompile(`^TXN_1746891000123_[0-9A-F]{8}$`), id)
	assert.NotEqual(t, id, NewID("TXN", now))
}

func TestRequestMeta(t *testing.T) {
	_, ok := RequestMetaFrom(context.Background())
	assert.False(t, ok)

	ctx := WithRequestMeta(context.Background(), RequestMeta{IPAddress: "203.0.113.7", CorrelationID: "abc"})
	meta, ok := RequestMetaFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "203.0.113.7", meta.IPAddress)
	assert.Equal(t, "abc", meta.CorrelationID)
}

func TestGetRealIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{name: "x-real-ip public", headers: map[string]string{"X-Real-IP": "203.0.113.7"}, want: "203.0.113.7"},
		{name: "forwarded skips private", headers: map[string]string{"X-Forwarded-For": "10.0.0.3, 198.51.100.4"}, want: "198.51.100.4"},
		{name: "forwarded all private", headers: map[string]string{"X-Forwarded-For": "10.0.0.3, 192.168.1.1"}, want: "10.0.0.3"},
		{name: "no headers", want: "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, GetRealIP(c))
		})
	}
}

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name       string
		ua         string
		wantDevice string
		wantBot    bool
	}{
		{name: "empty", ua: "", wantDevice: "unknown"},
		{
			name:       "desktop chrome",
			ua:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			wantDevice: "desktop",
		},
		{
			name:       "android phone",
			ua:         "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
			wantDevice: "mobile",
		},
		{
			name:       "ipad",
			ua:         "Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
			wantDevice: "tablet",
		},
		{
			name:       "crawler",
			ua:         "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			wantDevice: "desktop",
			wantBot:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseUserAgent(tt.ua)
			assert.Equal(t, tt.wantDevice, info.DeviceType)
			assert.Equal(t, tt.wantBot, info.IsBot)
		})
	}
}

func TestDeviceInfoAsMetadata(t *testing.T) {
	meta := DeviceInfo{DeviceType: "mobile", OS: "Android 13", Browser: "Chrome"}.AsMetadata()
	assert.Equal(t, "mobile", meta["device_type"])
	assert.Equal(t, "Chrome", meta["browser"])
}
