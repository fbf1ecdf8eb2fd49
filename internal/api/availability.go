package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/meetlines/meetlines/internal/availability"
	"github.com/meetlines/meetlines/internal/middleware"
	"go.uber.org/zap"
)

type AvailabilityHandler struct {
	engine *availability.Engine
	logger *zap.Logger
}

func NewAvailabilityHandler(engine *availability.Engine, logger *zap.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{engine: engine, logger: logger}
}

// Get handles GET /api/availability?date=2026-01-31&serviceId=<uuid>
//
// Anonymous callers are allowed; the tenant comes from the host.
func (h *AvailabilityHandler) Get(c *gin.Context) {
	date, err := time.Parse(availability.DateLayout, c.Query("date"))
	if err != nil {
		badRequest(c, "date must be YYYY-MM-DD")
		return
	}

	var serviceID *uuid.UUID
	raw := c.Query("serviceId")
	if raw == "" {
		raw = c.Query("service_id")
	}
	if raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid service id")
			return
		}
		serviceID = &id
	}

	slots, err := h.engine.GetAvailableSlots(c.Request.Context(), middleware.GetProjectID(c), date, serviceID)
	if err != nil {
		if errors.Is(err, availability.ErrServiceNotFound) {
			notFound(c, "service not found")
			return
		}
		respondError(c, h.logger, err, "failed to compute availability")
		return
	}
	c.JSON(http.StatusOK, slots)
}
