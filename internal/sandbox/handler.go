// Package sandbox is a small mock upstream for apiprobe runs. It serves the
// endpoints the built-in checks expect and enforces a server-side rate
// limit whose 429 responses carry an absolute Retry-After date, the same
// contract the real targets use.
package sandbox

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/apiprobe/apiprobe/shared/clock"
)

// Dependencies holds all dependencies needed by handlers and middleware
type Dependencies struct {
	Logger     *slog.Logger
	Clock      clock.Clock
	Limiter    *rate.Limiter
	RetryAfter time.Duration
	WorkDelay  time.Duration
}

// Handler serves the sandbox API endpoints
type Handler struct {
	logger    *slog.Logger
	clock     clock.Clock
	workDelay time.Duration
}

// NewHandler creates a new Handler instance
func NewHandler(deps *Dependencies) *Handler {
	return &Handler{
		logger:    deps.Logger,
		clock:     deps.Clock,
		workDelay: deps.WorkDelay,
	}
}

// EchoRequest is the payload for POST /v1/echo
type EchoRequest struct {
	Message string `json:"message" binding:"required"`
}

// Status handles GET /v1/status
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   h.clock.Now().Format(time.RFC3339),
	})
}

// Echo handles POST /v1/echo
// Returns the request message unchanged so clients can verify a round trip
func (h *Handler) Echo(c *gin.Context) {
	var req EchoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": req.Message,
	})
}

// Work handles GET /v1/work
// Simulates a slow operation; gives up silently if the client goes away
func (h *Handler) Work(c *gin.Context) {
	if h.workDelay > 0 {
		select {
		case <-c.Request.Context().Done():
			h.logger.Debug("Work request abandoned by client")
			return
		case <-time.After(h.workDelay):
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"result":      "done",
		"duration_ms": h.workDelay.Milliseconds(),
	})
}
