package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/prompt-history/internal/auth"
	"github.com/suPer8Hu/prompt-history/internal/common"
)

type submitPromptReq struct {
	Prompt string `json:"prompt"`
}

func (h *Handler) ListHistory(c *gin.Context) {
	id, ok := auth.IdentityFrom(c.Request.Context())
	if !ok {
		common.Abort(c, common.Unauthenticated())
		return
	}
	msgs, err := h.History.List(c.Request.Context(), id.UserID)
	if err != nil {
		common.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) SubmitPrompt(c *gin.Context) {
	id, ok := auth.IdentityFrom(c.Request.Context())
	if !ok {
		common.Abort(c, common.Unauthenticated())
		return
	}
	var req submitPromptReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	msg, err := h.History.Submit(c.Request.Context(), id.UserID, req.Prompt)
	if err != nil {
		common.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) ClearHistory(c *gin.Context) {
	id, ok := auth.IdentityFrom(c.Request.Context())
	if !ok {
		common.Abort(c, common.Unauthenticated())
		return
	}
	if err := h.History.Clear(c.Request.Context(), id.UserID); err != nil {
		common.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
