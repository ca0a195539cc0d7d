package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// WebhookSecretHeader carries the shared secret on provider callbacks
const WebhookSecretHeader = "X-Webhook-Secret"

// ProviderWebhookAuth admits requests that present the configured provider
// secret. An empty secret rejects everything.
func ProviderWebhookAuth(secret string, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(WebhookSecretHeader)
		if secret == "" || presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			logger.WithFields(logrus.Fields{
				"path": c.Request.URL.Path,
				"ip":   c.ClientIP(),
			}).Warn("Webhook auth failed: missing or wrong secret")
			abortWithError(c, http.StatusUnauthorized, "INVALID_WEBHOOK_SECRET", "Webhook secret is missing or invalid")
			return
		}
		c.Next()
	}
}
