package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"autobook/pkg/log"
	"autobook/pkg/utils"
)

// Recovery converts panics into a 500 response. A panic mid-charge must
// not take the process down with other charges in flight.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		fields := map[string]interface{}{
			"error":  recovered,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"ip":     c.ClientIP(),
			"stack":  string(debug.Stack()),
		}
		if uid, ok := GetUserID(c); ok {
			fields["user_id"] = uid
		}
		log.WithFields(fields).Error("Panic recovered")

		utils.Error(c, utils.CodeInternalError, "Internal server error")
	})
}
