package server

import (
	"gift-auction/utils"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware emits one structured log line per request,
// including the handler latency
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // run the matched handler chain

	utils.Info("HTTP Request", map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	})
}
