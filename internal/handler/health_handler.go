package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const serviceName = "presence-service"

// ConnectionCounter reports live sockets.
type ConnectionCounter interface {
	Count() int
}

// HealthHandler answers liveness and readiness probes. The in-memory core is
// always ready; database and redis outages only degrade durable features.
type HealthHandler struct {
	dbConnected func() bool
	redis       redis.UniversalClient
	sockets     ConnectionCounter
}

func NewHealthHandler(dbConnected func() bool, redisClient redis.UniversalClient, sockets ConnectionCounter) *HealthHandler {
	return &HealthHandler{dbConnected: dbConnected, redis: redisClient, sockets: sockets}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	checks := gin.H{}
	status := "ready"

	if h.dbConnected != nil {
		if h.dbConnected() {
			checks["database"] = "up"
		} else {
			checks["database"] = "down"
			status = "degraded"
		}
	}

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "down"
			status = "degraded"
		} else {
			checks["redis"] = "up"
		}
	}

	body := gin.H{
		"status":  status,
		"service": serviceName,
		"checks":  checks,
	}
	if h.sockets != nil {
		body["connections"] = h.sockets.Count()
	}
	c.JSON(http.StatusOK, body)
}
