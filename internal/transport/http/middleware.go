package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	lkauth "github.com/livekit/protocol/auth"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet-warden/internal/auth"
)

const (
	// ContextKeyOperator is the context key for storing the operator name.
	ContextKeyOperator = "operator"
)

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// AdminAuthMiddleware creates a middleware that validates operator JWT tokens.
func AdminAuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			logger.Debug().Msg("missing or malformed authorization header")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing authorization header"})
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			logger.Debug().Err(err).Msg("invalid operator token")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			c.Abort()
			return
		}

		c.Set(ContextKeyOperator, claims.Name)

		c.Next()
	}
}

// HookAuthMiddleware creates a middleware that verifies webhook deliveries
// were signed with the room server's API key pair.
func HookAuthMiddleware(apiKey, apiSecret string, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			logger.Debug().Msg("hook delivery without bearer token")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing authorization header"})
			c.Abort()
			return
		}

		verifier, err := lkauth.ParseAPIToken(token)
		if err != nil {
			logger.Debug().Err(err).Msg("unparsable hook token")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			c.Abort()
			return
		}
		if verifier.APIKey() != apiKey {
			logger.Debug().Str("api_key", verifier.APIKey()).Msg("hook token signed with unknown api key")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unknown api key"})
			c.Abort()
			return
		}
		if _, err := verifier.Verify(apiSecret); err != nil {
			logger.Debug().Err(err).Msg("hook token failed verification")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request
		c.Next()

		// Log after request
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
