package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/prompt-history/internal/audit"
	"github.com/suPer8Hu/prompt-history/internal/auth"
	"github.com/suPer8Hu/prompt-history/internal/common"
	"github.com/suPer8Hu/prompt-history/internal/models"
	"gorm.io/gorm"
)

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (h *Handler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, "email and password are required")
		return
	}
	ctx := c.Request.Context()

	var cnt int64
	if err := h.DB.WithContext(ctx).Model(&models.User{}).Where("email = ?", req.Email).Count(&cnt).Error; err != nil {
		common.Abort(c, common.Storage(err))
		return
	}
	if cnt > 0 {
		common.Abort(c, common.Conflict("user already exists"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		common.Abort(c, err)
		return
	}

	user := models.User{
		Email:        req.Email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
	}
	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		// lost a race with a concurrent register after the pre-check
		if isUniqueConstraintError(err) {
			common.Abort(c, common.Conflict("user already exists"))
			return
		}
		common.Abort(c, common.Storage(err))
		return
	}

	pair, err := h.Tokens.IssuePair(ctx, auth.Identity{UserID: user.ID, Email: user.Email})
	if err != nil {
		common.Abort(c, err)
		return
	}
	h.setAuthCookies(c, pair)
	c.JSON(http.StatusCreated, userBody(user.ID, user.Email))
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, "email and password are required")
		return
	}
	ctx := c.Request.Context()

	if h.Guard != nil {
		blocked, err := h.Guard.Blocked(ctx, req.Email)
		if err != nil {
			// throttling is best-effort; a redis outage must not lock everyone out
			log.Printf("[auth] login guard unavailable: %v", err)
		} else if blocked {
			common.Abort(c, common.TooManyRequests("too many login attempts"))
			return
		}
	}

	var user models.User
	err := h.DB.WithContext(ctx).Where("email = ?", req.Email).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		common.Abort(c, common.Storage(err))
		return
	}
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		h.recordLoginFailure(c, req.Email)
		common.Fail(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if h.Guard != nil {
		_ = h.Guard.Reset(ctx, req.Email)
	}
	pair, err := h.Tokens.IssuePair(ctx, auth.Identity{UserID: user.ID, Email: user.Email})
	if err != nil {
		common.Abort(c, err)
		return
	}
	h.setAuthCookies(c, pair)
	c.JSON(http.StatusOK, userBody(user.ID, user.Email))
}

func (h *Handler) recordLoginFailure(c *gin.Context, email string) {
	if h.Guard == nil {
		return
	}
	if err := h.Guard.RecordFailure(c.Request.Context(), email); err != nil {
		log.Printf("[auth] record login failure: %v", err)
	}
}

func (h *Handler) Refresh(c *gin.Context) {
	id, pair, err := h.Tokens.Refresh(c.Request.Context(), refreshToken(c))
	if err != nil {
		common.Abort(c, err)
		return
	}
	h.setAuthCookies(c, pair)
	c.JSON(http.StatusOK, userBody(id.UserID, id.Email))
}

// Logout always answers {ok:true}, whatever state the presented credential is in.
func (h *Handler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	if uid, revoked := h.Tokens.Logout(ctx, refreshToken(c)); revoked && h.Events != nil {
		if err := h.Events.Publish(ctx, audit.NewEvent(audit.SessionRevoked, uid, "")); err != nil {
			log.Printf("[auth] publish session.revoked failed user=%d err=%v", uid, err)
		}
	}
	h.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) Me(c *gin.Context) {
	id, ok := auth.IdentityFrom(c.Request.Context())
	if !ok {
		common.Abort(c, common.Unauthenticated())
		return
	}
	c.JSON(http.StatusOK, userBody(id.UserID, id.Email))
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "duplicate") || strings.Contains(s, "unique constraint")
}
