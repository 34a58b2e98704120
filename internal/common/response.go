package common

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// Fail writes the error body shape shared by every endpoint.
func Fail(c *gin.Context, httpStatus int, msg string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{"error": msg})
}

// Abort classifies err, logs server-side detail for 5xx and writes {error}.
func Abort(c *gin.Context, err error) {
	status, msg := Status(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[http] %s %s request_id=%s status=%d err=%v",
			c.Request.Method, c.FullPath(), c.GetString(RequestIDKey), status, err)
	}
	Fail(c, status, msg)
}
