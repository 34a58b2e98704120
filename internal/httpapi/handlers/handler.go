package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/prompt-history/internal/audit"
	"github.com/suPer8Hu/prompt-history/internal/auth"
	"github.com/suPer8Hu/prompt-history/internal/history"
	"gorm.io/gorm"
)

// LoginGuard throttles repeated failed logins. Implemented by redisstore.LoginThrottle.
type LoginGuard interface {
	Blocked(ctx context.Context, email string) (bool, error)
	RecordFailure(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}

type Handler struct {
	DB      *gorm.DB
	Tokens  *auth.TokenService
	History *history.Service
	Audit   *audit.Repo
	// optional
	Guard  LoginGuard
	Events history.Publisher

	SecureCookies bool
}

func NewHandler(db *gorm.DB, tokens *auth.TokenService, hist *history.Service, secureCookies bool) *Handler {
	return &Handler{
		DB:            db,
		Tokens:        tokens,
		History:       hist,
		Audit:         audit.NewRepo(db),
		SecureCookies: secureCookies,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
}

type userDTO struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
}

func userBody(id uint64, email string) gin.H {
	return gin.H{"user": userDTO{ID: id, Email: email}}
}
