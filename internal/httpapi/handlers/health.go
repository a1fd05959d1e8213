package handlers

import "github.com/gin-gonic/gin"

// Health answers the liveness probe at GET /healthz.
func Health(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "ok",
		"service": "labreport-extract",
	})
}
