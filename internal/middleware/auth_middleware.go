package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/pkg/jwt"
)

// CustomerContextKey is the key used to store the caller in the Gin context
const CustomerContextKey = "customer"

// CustomerContext represents the authenticated caller
type CustomerContext struct {
	CustomerID string   `json:"customer_id"`
	Email      string   `json:"email,omitempty"`
	Roles      []string `json:"roles"`
}

// AuthMiddleware validates bearer access tokens
func AuthMiddleware(jwtService *jwt.Service, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry := logger.WithFields(logrus.Fields{
			"path": c.Request.URL.Path,
			"ip":   c.ClientIP(),
		})

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			entry.Warn("Auth failed: missing authorization header")
			abortWithError(c, http.StatusUnauthorized, "MISSING_AUTH_HEADER", "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			entry.Warn("Auth failed: invalid authorization format")
			abortWithError(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Invalid authorization header format. Expected: Bearer <token>")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			entry.Warn("Auth failed: empty token")
			abortWithError(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Token cannot be empty")
			return
		}

		claims, err := jwtService.ValidateAccessToken(tokenString)
		if err != nil {
			if jwtService.IsTokenExpired(tokenString) {
				entry.WithError(err).Warn("Auth failed: token expired")
				abortWithError(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Access token has expired")
			} else {
				entry.WithError(err).Warn("Auth failed: invalid token")
				abortWithError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid access token")
			}
			return
		}

		c.Set(CustomerContextKey, CustomerContext{
			CustomerID: claims.Subject,
			Email:      claims.Email,
			Roles:      claims.Roles,
		})

		c.Next()
	}
}

// GetCustomerContext retrieves the caller from the Gin context
func GetCustomerContext(c *gin.Context) (CustomerContext, bool) {
	value, exists := c.Get(CustomerContextKey)
	if !exists {
		return CustomerContext{}, false
	}

	customer, ok := value.(CustomerContext)
	return customer, ok
}
