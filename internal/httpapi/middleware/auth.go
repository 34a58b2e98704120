package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/prompt-history/internal/auth"
	"github.com/suPer8Hu/prompt-history/internal/common"
)

const AccessCookie = "accessToken"

type AccessVerifier interface {
	VerifyAccess(token string) (auth.Identity, error)
}

// AuthRequired resolves the request to an identity or rejects it with 401.
// Every verification failure gets the same response. It never refreshes.
func AuthRequired(v AccessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := AccessToken(c)
		if token == "" {
			common.Abort(c, common.Unauthenticated())
			return
		}
		id, err := v.VerifyAccess(token)
		if err != nil {
			common.Abort(c, common.Unauthenticated())
			return
		}
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// AccessToken prefers "Authorization: Bearer <token>" and falls back to the
// access cookie.
func AccessToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		if tok := strings.TrimSpace(h[7:]); tok != "" {
			return tok
		}
	}
	if v, err := c.Cookie(AccessCookie); err == nil {
		return v
	}
	return ""
}
