package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/prompt-history/internal/audit"
	"github.com/suPer8Hu/prompt-history/internal/auth"
	"github.com/suPer8Hu/prompt-history/internal/common"
)

// ListAudit returns the caller's recorded events, oldest first.
// ?limit= is capped by the repo.
func (h *Handler) ListAudit(c *gin.Context) {
	id, ok := auth.IdentityFrom(c.Request.Context())
	if !ok {
		common.Abort(c, common.Unauthenticated())
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			common.Fail(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	events, err := h.Audit.ListByUser(c.Request.Context(), id.UserID, limit)
	if err != nil {
		common.Abort(c, common.Storage(err))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	c.JSON(http.StatusOK, events)
}
