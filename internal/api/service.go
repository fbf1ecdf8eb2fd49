package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/meetlines/meetlines/internal/middleware"
	"github.com/meetlines/meetlines/internal/models"
	"github.com/meetlines/meetlines/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ServiceHandler manages the bookable services of a project.
type ServiceHandler struct {
	repo   repository.ServiceRepository
	logger *zap.Logger
}

func NewServiceHandler(repo repository.ServiceRepository, logger *zap.Logger) *ServiceHandler {
	return &ServiceHandler{repo: repo, logger: logger}
}

// Price is decoded by shopspring/decimal, which accepts both "25.50" and
// 25.50 in JSON.
type createServiceRequest struct {
	Name            string          `json:"name" binding:"required"`
	DurationMinutes int             `json:"duration_minutes" binding:"required,gt=0"`
	Price           decimal.Decimal `json:"price"`
	Currency        string          `json:"currency" binding:"required,len=3"`
}

type setServiceEmployeesRequest struct {
	EmployeeIDs []uuid.UUID `json:"employee_ids"`
}

// Create handles POST /api/services
func (h *ServiceHandler) Create(c *gin.Context) {
	var req createServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Price.IsNegative() {
		badRequest(c, "price must not be negative")
		return
	}

	svc, err := h.repo.Create(c.Request.Context(), &models.Service{
		ProjectID:       middleware.GetProjectID(c),
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price.Round(2),
		Currency:        strings.ToUpper(req.Currency),
		Active:          true,
	})
	if err != nil {
		respondError(c, h.logger, err, "failed to create service")
		return
	}
	c.JSON(http.StatusCreated, svc)
}

// List handles GET /api/services
func (h *ServiceHandler) List(c *gin.Context) {
	services, err := h.repo.List(c.Request.Context(), middleware.GetProjectID(c))
	if err != nil {
		respondError(c, h.logger, err, "failed to list services")
		return
	}
	c.JSON(http.StatusOK, services)
}

// SetEmployees handles PUT /api/services/:id/employees
//
// Replaces the set of employees offering the service. An empty set makes
// every active employee eligible again.
func (h *ServiceHandler) SetEmployees(c *gin.Context) {
	serviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid service id")
		return
	}
	var req setServiceEmployeesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	projectID := middleware.GetProjectID(c)
	svc, err := h.repo.GetByID(ctx, projectID, serviceID)
	if err != nil {
		respondError(c, h.logger, err, "failed to update service employees")
		return
	}
	if svc == nil {
		notFound(c, "service not found")
		return
	}

	if err := h.repo.SetEmployees(ctx, projectID, serviceID, req.EmployeeIDs); err != nil {
		respondError(c, h.logger, err, "failed to update service employees")
		return
	}
	c.Status(http.StatusNoContent)
}
