package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/prompt-history/internal/common"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[panic] %s %s request_id=%s err=%v\n%s",
					c.Request.Method, c.Request.URL.Path, c.GetString(common.RequestIDKey), r, debug.Stack())
				common.Fail(c, http.StatusInternalServerError, "internal error")
			}
		}()
		c.Next()
	}
}
