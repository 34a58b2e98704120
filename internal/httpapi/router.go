package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/prompt-history/internal/common"
	"github.com/suPer8Hu/prompt-history/internal/httpapi/handlers"
	"github.com/suPer8Hu/prompt-history/internal/httpapi/middleware"
)

type RouterConfig struct {
	CORSOrigin string
	// AccessLog enables gin.Logger; tests turn it off.
	AccessLog bool
}

func NewRouter(h *handlers.Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	if cfg.AccessLog {
		r.Use(gin.Logger())
	}
	r.Use(middleware.Recovery())
	if cors := middleware.CORS(cfg.CORSOrigin); cors != nil {
		r.Use(cors)
	}

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/refresh", h.Refresh)
	authGroup.POST("/logout", h.Logout)
	authGroup.GET("/me", middleware.AuthRequired(h.Tokens), h.Me)

	// prompts (access token required)
	prompts := api.Group("/prompts")
	prompts.Use(middleware.AuthRequired(h.Tokens))
	prompts.GET("", h.ListHistory)
	prompts.POST("", h.SubmitPrompt)
	prompts.DELETE("", h.ClearHistory)

	api.GET("/audit", middleware.AuthRequired(h.Tokens), h.ListAudit)

	return r
}
