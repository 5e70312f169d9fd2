package router

import (
	"time"

	"race-registration/internal/api/handlers"
	"race-registration/internal/api/middleware"
	"race-registration/internal/config"
	"race-registration/internal/infrastructure/cache"
	"race-registration/internal/infrastructure/repository"
	"race-registration/internal/service"
	"race-registration/pkg/clock"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// NewRouter wires the registration core behind the HTTP surface: the GORM
// store for the ledger, redis for the availability read model and idempotency
// replay, and the system clock for every time-dependent decision.
func NewRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(middleware.Logger())
	r.Use(cors.Default())
	r.Use(gin.Recovery())

	cfg := config.Get()

	store := repository.NewRegistrationStore(db)
	cacheService := cache.NewRedisCacheWithConfig(&cfg.Cache)
	idempotencyRepo := repository.NewRedisIdempotencyRepository(cacheService.GetClient())

	clk := clock.System{}
	holdTTL := time.Duration(cfg.Registration.HoldTTLMinutes) * time.Minute
	availabilityTTL := time.Duration(cfg.Registration.AvailabilityCacheTTLSeconds) * time.Second

	registrationService := service.NewRegistrationService(store, clk, holdTTL)
	registrationHandler := handlers.NewRegistrationHandler(
		registrationService,
		store,
		cacheService,
		idempotencyRepo,
		clk,
		availabilityTTL,
	)
	healthHandler := handlers.NewHealthHandler(db, cacheService)

	r.Use(middleware.IdempotencyMiddleware())

	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/ready", healthHandler.ReadinessCheck)
	r.GET("/live", healthHandler.LivenessCheck)

	v1 := r.Group("/api/v1")
	{
		registrations := v1.Group("/registrations")
		{
			registrations.POST("", registrationHandler.StartRegistration)
			registrations.POST("/:id/discounts/sync", registrationHandler.SyncDiscount)
		}

		distances := v1.Group("/distances")
		{
			distances.GET("/:id", registrationHandler.GetDistance)
		}

		internal := v1.Group("/internal")
		{
			internal.POST("/registrations/cleanup", registrationHandler.CleanupExpired)
		}
	}

	return r
}
