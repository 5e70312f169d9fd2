package handlers

import (
	"net/http"
	"time"

	"race-registration/internal/config"
	"race-registration/internal/infrastructure/cache"
	"race-registration/internal/infrastructure/database"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db           *gorm.DB
	cacheService *cache.RedisCache
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *gorm.DB, cacheService *cache.RedisCache) *HealthHandler {
	return &HealthHandler{
		db:           db,
		cacheService: cacheService,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	cfg := config.Get()

	status := "healthy"
	services := make(map[string]string)

	if h.db != nil {
		if err := database.HealthCheck(h.db); err != nil {
			services["database"] = "unhealthy: " + err.Error()
			status = "degraded"
		} else {
			services["database"] = "healthy"
		}
	}

	if h.cacheService != nil {
		if err := h.cacheService.Health(c.Request.Context()); err != nil {
			services["cache"] = "unhealthy: " + err.Error()
			status = "degraded"
		} else {
			services["cache"] = "healthy"
		}
	}

	httpStatus := http.StatusOK
	if status != "healthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Version:   cfg.App.Version,
		Services:  services,
	})
}

// ReadinessCheck handles GET /ready
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if h.db != nil {
		if err := database.HealthCheck(h.db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":     false,
				"timestamp": time.Now().UTC(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"ready":     true,
		"timestamp": time.Now().UTC(),
	})
}

// LivenessCheck handles GET /live
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"alive":     true,
		"timestamp": time.Now().UTC(),
	})
}
