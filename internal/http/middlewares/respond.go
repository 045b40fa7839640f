package middlewares

import (
	"github.com/gin-gonic/gin"
)

// abort writes the same flat error envelope the handlers use.
func abort(c *gin.Context, status int, code, message string) {
	reqID, _ := c.Get(CtxRequestID)
	id, _ := reqID.(string)

	body := gin.H{"message": message, "code": code}
	if id != "" {
		body["requestId"] = id
	}

	c.AbortWithStatusJSON(status, body)
}
