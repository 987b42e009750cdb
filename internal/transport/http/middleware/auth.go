package middleware

import (
	"net/http"
	"strings"

	"github.com/ErlanBelekov/authflow/internal/reqctx"
	"github.com/ErlanBelekov/authflow/internal/session"
	"github.com/gin-gonic/gin"
)

const errUnauthorized = "Unauthorized"

// Context keys set by Auth.
const (
	UserIDKey = "userID"
	RoleKey   = "role"
)

// TokenParser validates a raw session token.
type TokenParser interface {
	Parse(raw string) (*session.Claims, error)
}

// Auth validates a bearer session token and sets UserIDKey and RoleKey in the
// gin context. The scheme is matched case-insensitively.
func Auth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": errUnauthorized})
			return
		}

		claims, err := parser.Parse(rawToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": errUnauthorized})
			return
		}

		c.Set(UserIDKey, claims.Subject)
		c.Set(RoleKey, string(claims.Role))
		c.Request = c.Request.WithContext(reqctx.WithUserID(c.Request.Context(), claims.Subject))
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, rawToken, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	rawToken = strings.TrimSpace(rawToken)
	return rawToken, rawToken != ""
}
