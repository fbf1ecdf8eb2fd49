package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/meetlines/meetlines/internal/middleware"
	"github.com/meetlines/meetlines/internal/models"
	"github.com/meetlines/meetlines/internal/repository"
	"go.uber.org/zap"
)

type EmployeeHandler struct {
	repo   repository.EmployeeRepository
	logger *zap.Logger
}

func NewEmployeeHandler(repo repository.EmployeeRepository, logger *zap.Logger) *EmployeeHandler {
	return &EmployeeHandler{repo: repo, logger: logger}
}

type createEmployeeRequest struct {
	Name      string     `json:"name" binding:"required"`
	Email     string     `json:"email" binding:"omitempty,email"`
	Phone     string     `json:"phone"`
	AvatarURL string     `json:"avatar_url"`
	AreaID    *uuid.UUID `json:"area_id"`
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// Create handles POST /api/employees
func (h *EmployeeHandler) Create(c *gin.Context) {
	var req createEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	e, err := h.repo.Create(c.Request.Context(), &models.Employee{
		ProjectID: middleware.GetProjectID(c),
		AreaID:    req.AreaID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		AvatarURL: req.AvatarURL,
		Active:    true,
	})
	if err != nil {
		respondError(c, h.logger, err, "failed to create employee")
		return
	}
	c.JSON(http.StatusCreated, e)
}

// List handles GET /api/employees
func (h *EmployeeHandler) List(c *gin.Context) {
	employees, err := h.repo.List(c.Request.Context(), middleware.GetProjectID(c))
	if err != nil {
		respondError(c, h.logger, err, "failed to list employees")
		return
	}
	c.JSON(http.StatusOK, employees)
}

// SetActive handles PATCH /api/employees/:id/active
//
// Inactive employees keep their appointments but are no longer offered in
// availability or auto-assignment.
func (h *EmployeeHandler) SetActive(c *gin.Context) {
	employeeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid employee id")
		return
	}
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	e, err := h.repo.SetActive(c.Request.Context(), middleware.GetProjectID(c), employeeID, *req.Active)
	if err != nil {
		respondError(c, h.logger, err, "failed to update employee")
		return
	}
	if e == nil {
		notFound(c, "employee not found")
		return
	}
	c.JSON(http.StatusOK, e)
}
