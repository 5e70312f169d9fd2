package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	domain "race-registration/internal/domain/registration"
	"race-registration/internal/infrastructure/cache"
	"race-registration/internal/infrastructure/repository"
	"race-registration/internal/service"
	"race-registration/pkg/clock"
	"race-registration/pkg/logger"
	"race-registration/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// RegistrationHandler handles registration-related HTTP requests
type RegistrationHandler struct {
	registrationService *service.RegistrationService
	store               domain.RegistrationStore
	cacheService        *cache.RedisCache
	idempotencyRepo     *repository.RedisIdempotencyRepository
	clock               clock.Clock
	availabilityTTL     time.Duration
}

// NewRegistrationHandler creates a new registration handler
func NewRegistrationHandler(
	registrationService *service.RegistrationService,
	store domain.RegistrationStore,
	cacheService *cache.RedisCache,
	idempotencyRepo *repository.RedisIdempotencyRepository,
	clk clock.Clock,
	availabilityTTL time.Duration,
) *RegistrationHandler {
	if clk == nil {
		clk = clock.System{}
	}
	return &RegistrationHandler{
		registrationService: registrationService,
		store:               store,
		cacheService:        cacheService,
		idempotencyRepo:     idempotencyRepo,
		clock:               clk,
		availabilityTTL:     availabilityTTL,
	}
}

// StartRegistrationRequest is the body of POST /api/v1/registrations.
type StartRegistrationRequest struct {
	UserID     uuid.UUID `json:"user_id" validate:"required"`
	DistanceID uuid.UUID `json:"distance_id" validate:"required"`
}

// StartRegistration handles POST /api/v1/registrations
func (h *RegistrationHandler) StartRegistration(c *gin.Context) {
	var req StartRegistrationRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Invalid request format",
			Errors:  err.Error(),
		})
		return
	}

	if err := validator.ValidateStruct(&req); err != nil {
		validationErrors := validator.FormatValidationError(err)
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Validation failed",
			Errors:  validationErrors,
		})
		return
	}

	idempotencyKey := c.GetString("idempotency_key")
	reqHash := requestHash(req)
	if idempotencyKey != "" {
		record, err := h.idempotencyRepo.GetByKey(c.Request.Context(), idempotencyKey)
		if err == nil && record != nil {
			if record.RequestHash != reqHash {
				c.JSON(http.StatusConflict, APIResponse{
					Success: false,
					Message: "Idempotency key already used with different request data",
				})
				return
			}
			c.Data(record.StatusCode, "application/json", []byte(record.ResponseBody))
			return
		}
		if err != nil && !errors.Is(err, repository.ErrIdempotencyKeyNotFound) {
			logger.Warn("Idempotency lookup failed for key %s: %v", idempotencyKey, err)
		}
	}

	registration, err := h.registrationService.StartRegistration(c.Request.Context(), req.UserID, req.DistanceID)
	if err != nil {
		h.renderRegistrationError(c, err)
		return
	}

	response := APIResponse{
		Success: true,
		Message: "Registration started",
		Data:    registration,
	}
	c.JSON(http.StatusCreated, response)

	if cacheErr := h.cacheService.InvalidateDistanceAvailability(c.Request.Context(), req.DistanceID); cacheErr != nil {
		logger.Warn("Failed to invalidate availability cache for distance %s: %v", req.DistanceID, cacheErr)
	}

	if idempotencyKey != "" {
		h.storeIdempotencyResult(c, idempotencyKey, req.UserID, reqHash, response, http.StatusCreated)
	}
}

// SyncDiscount handles POST /api/v1/registrations/:id/discounts/sync
func (h *RegistrationHandler) SyncDiscount(c *gin.Context) {
	registrationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Invalid registration id",
			Errors:  err.Error(),
		})
		return
	}

	snapshot, err := h.registrationService.SyncGroupDiscount(c.Request.Context(), registrationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, APIResponse{
			Success: false,
			Message: "Failed to sync discounts",
			Errors:  err.Error(),
		})
		return
	}
	if snapshot == nil {
		c.JSON(http.StatusNotFound, APIResponse{
			Success: false,
			Message: "Registration not found",
			Code:    string(domain.CodeNotFound),
		})
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Discounts synced",
		Data:    snapshot,
	})
}

// CleanupExpired handles POST /api/v1/internal/registrations/cleanup,
// invoked by an external scheduler.
func (h *RegistrationHandler) CleanupExpired(c *gin.Context) {
	cancelled, err := h.registrationService.CleanupExpiredRegistrations(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, APIResponse{
			Success: false,
			Message: "Cleanup failed",
			Errors:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Cleanup completed",
		Data:    gin.H{"cancelled": cancelled},
	})
}

// GetDistance handles GET /api/v1/distances/:id with a short-lived cached
// availability snapshot.
func (h *RegistrationHandler) GetDistance(c *gin.Context) {
	distanceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Invalid distance id",
			Errors:  err.Error(),
		})
		return
	}

	if cached, err := h.cacheService.GetDistanceAvailability(c.Request.Context(), distanceID); err == nil {
		c.JSON(http.StatusOK, APIResponse{Success: true, Data: cached})
		return
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn("Availability cache read failed for distance %s: %v", distanceID, err)
	}

	availability, err := h.loadAvailability(c, distanceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, APIResponse{
			Success: false,
			Message: "Failed to load distance",
			Errors:  err.Error(),
		})
		return
	}
	if availability == nil {
		c.JSON(http.StatusNotFound, APIResponse{
			Success: false,
			Message: "Distance not found",
			Code:    string(domain.CodeNotFound),
		})
		return
	}

	if cacheErr := h.cacheService.SetDistanceAvailability(c.Request.Context(), availability, h.availabilityTTL); cacheErr != nil {
		logger.Warn("Failed to cache availability for distance %s: %v", distanceID, cacheErr)
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Data: availability})
}

func (h *RegistrationHandler) loadAvailability(c *gin.Context, distanceID uuid.UUID) (*cache.DistanceAvailability, error) {
	now := h.clock.Now()

	distance, err := h.store.GetDistance(c.Request.Context(), distanceID)
	if err != nil {
		return nil, err
	}
	if distance == nil {
		return nil, nil
	}

	var countScope *uuid.UUID
	if distance.CapacityScope != domain.CapacityScopeSharedPool {
		countScope = &distance.DistanceID
	}
	activeCount, err := h.store.ActiveCount(c.Request.Context(), distance.EditionID, countScope, now)
	if err != nil {
		return nil, err
	}

	limit := domain.CapacityLimit(&distance.Edition, distance)
	var remaining *int64
	if limit != nil {
		left := int64(*limit) - activeCount
		if left < 0 {
			left = 0
		}
		remaining = &left
	}

	return &cache.DistanceAvailability{
		DistanceID:     distance.DistanceID,
		Name:           distance.Name,
		Capacity:       limit,
		ActiveCount:    activeCount,
		SpotsRemaining: remaining,
		Open:           domain.ValidateOpen(&distance.Edition, now) == nil,
	}, nil
}

func (h *RegistrationHandler) renderRegistrationError(c *gin.Context, err error) {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		c.JSON(statusForCode(domainErr.Code), APIResponse{
			Success: false,
			Message: domainErr.Message,
			Code:    string(domainErr.Code),
		})
		return
	}

	logger.Error("Registration failed: %v", err)
	c.JSON(http.StatusInternalServerError, APIResponse{
		Success: false,
		Message: "Registration failed",
		Errors:  err.Error(),
	})
}

func (h *RegistrationHandler) storeIdempotencyResult(c *gin.Context, key string, userID uuid.UUID, requestHash string, response APIResponse, statusCode int) {
	body, err := json.Marshal(response)
	if err != nil {
		logger.Warn("Failed to marshal idempotency response: %v", err)
		return
	}

	record := &domain.IdempotencyRecord{
		Key:          key,
		UserID:       userID,
		RequestHash:  requestHash,
		ResponseBody: string(body),
		StatusCode:   statusCode,
		ProcessedAt:  h.clock.Now(),
	}
	if err := h.idempotencyRepo.Create(c.Request.Context(), record); err != nil {
		logger.Warn("Failed to store idempotency record: %v", err)
	}
}

// statusForCode maps the closed error taxonomy to HTTP statuses so each
// rejection stays distinguishable to API clients.
func statusForCode(code domain.ErrorCode) int {
	switch code {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeAlreadyRegistered, domain.CodeSoldOut:
		return http.StatusConflict
	case domain.CodeNotPublished, domain.CodeRegistrationPaused,
		domain.CodeRegistrationNotOpen, domain.CodeRegistrationClosed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func requestHash(req StartRegistrationRequest) string {
	payload, _ := json.Marshal(req)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
