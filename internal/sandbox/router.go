package sandbox

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))

	// Health check endpoint, exempt from rate limiting
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "apiprobe-sandbox",
		})
	})

	h := NewHandler(deps)

	// API v1 routes, all behind the rate limiter
	v1 := r.Group("/v1")
	v1.Use(RateLimitMiddleware(deps.Limiter, deps.Clock, deps.RetryAfter))
	{
		// GET /v1/status - Health payload for the status check
		v1.GET("/status", h.Status)

		// POST /v1/echo - Round-trip payload for the echo check
		v1.POST("/echo", h.Echo)

		// GET /v1/work - Simulated slow work for the burst check
		v1.GET("/work", h.Work)
	}

	return r
}
