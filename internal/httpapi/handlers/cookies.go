package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/prompt-history/internal/auth"
	"github.com/suPer8Hu/prompt-history/internal/httpapi/middleware"
)

const refreshCookie = "refreshToken"

func (h *Handler) setAuthCookies(c *gin.Context, p auth.Pair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessCookie, p.Access, int(p.AccessTTL.Seconds()), "/", "", h.SecureCookies, true)
	c.SetCookie(refreshCookie, p.Refresh, int(p.RefreshTTL.Seconds()), "/", "", h.SecureCookies, true)
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessCookie, "", -1, "/", "", h.SecureCookies, true)
	c.SetCookie(refreshCookie, "", -1, "/", "", h.SecureCookies, true)
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

// refreshToken reads the refresh cookie, falling back to a JSON body for
// clients without a cookie jar.
func refreshToken(c *gin.Context) string {
	if v, err := c.Cookie(refreshCookie); err == nil && v != "" {
		return v
	}
	var req refreshReq
	if c.Request.ContentLength != 0 {
		_ = c.ShouldBindJSON(&req)
	}
	return req.RefreshToken
}
