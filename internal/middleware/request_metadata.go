package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tripnest/booking-backend/internal/utils"
)

// CorrelationIDHeader carries the request correlation id in both directions
const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationIDKey is the Gin context key holding the correlation id
const CorrelationIDKey = "correlation_id"

// RequestMetadata tags every request with a correlation id and attaches the
// caller's IP and user agent to the request context for audit records.
func RequestMetadata() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" || len(correlationID) > 128 {
			correlationID = uuid.NewString()
		}

		c.Set(CorrelationIDKey, correlationID)
		c.Header(CorrelationIDHeader, correlationID)

		ctx := utils.WithRequestMeta(c.Request.Context(), utils.RequestMeta{
			IPAddress:     utils.GetRealIP(c),
			UserAgent:     utils.GetUserAgent(c),
			CorrelationID: correlationID,
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
