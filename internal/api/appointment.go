package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/meetlines/meetlines/internal/appointment"
	"github.com/meetlines/meetlines/internal/auth"
	"github.com/meetlines/meetlines/internal/middleware"
	"github.com/meetlines/meetlines/internal/models"
	"github.com/meetlines/meetlines/internal/repository"
	"go.uber.org/zap"
)

type AppointmentHandler struct {
	lifecycle *appointment.Service
	repo      repository.AppointmentRepository
	logger    *zap.Logger
}

func NewAppointmentHandler(lifecycle *appointment.Service, repo repository.AppointmentRepository, logger *zap.Logger) *AppointmentHandler {
	return &AppointmentHandler{lifecycle: lifecycle, repo: repo, logger: logger}
}

type customerRequest struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
	Email string `json:"email" binding:"omitempty,email"`
}

type createAppointmentRequest struct {
	ServiceID  uuid.UUID        `json:"service_id" binding:"required"`
	EmployeeID *uuid.UUID       `json:"employee_id"`
	CustomerID *uuid.UUID       `json:"customer_id"`
	Customer   *customerRequest `json:"customer"`
	StartsAt   time.Time        `json:"starts_at" binding:"required"`
	Notes      string           `json:"notes" binding:"max=1000"`
}

type cancelRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// actor maps the token role onto a lifecycle actor.
func actor(c *gin.Context) appointment.Actor {
	if middleware.GetRole(c) == auth.RoleCustomer {
		return appointment.Customer(middleware.GetUserID(c))
	}
	return appointment.Staff(middleware.GetUserID(c))
}

// Create handles POST /api/appointments
func (h *AppointmentHandler) Create(c *gin.Context) {
	var req createAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	in := appointment.CreateInput{
		ServiceID:  req.ServiceID,
		EmployeeID: req.EmployeeID,
		CustomerID: req.CustomerID,
		StartsAt:   req.StartsAt,
		Notes:      req.Notes,
	}
	if req.Customer != nil {
		in.Customer = &models.Customer{Name: req.Customer.Name, Phone: req.Customer.Phone, Email: req.Customer.Email}
	}

	a, err := h.lifecycle.Create(c.Request.Context(), middleware.GetProjectID(c), actor(c), in)
	if err != nil {
		respondError(c, h.logger, err, "failed to create appointment")
		return
	}
	c.JSON(http.StatusCreated, a)
}

// List handles GET /api/appointments?from=&to=&employeeId=&status=
//
// from and to accept RFC 3339 instants or YYYY-MM-DD dates (UTC midnight).
// employee_id is accepted as an alias of employeeId.
func (h *AppointmentHandler) List(c *gin.Context) {
	var f repository.AppointmentFilter

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		t, err := parseInstant(raw)
		if err != nil {
			badRequest(c, "invalid "+p.name+" parameter")
			return
		}
		*p.dst = &t
	}

	raw := c.Query("employeeId")
	if raw == "" {
		raw = c.Query("employee_id")
	}
	if raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid employeeId parameter")
			return
		}
		f.EmployeeID = &id
	}
	if raw := c.Query("status"); raw != "" {
		status := models.AppointmentStatus(raw)
		if !status.Valid() {
			badRequest(c, "invalid status parameter")
			return
		}
		f.Status = &status
	}

	appointments, err := h.repo.List(c.Request.Context(), middleware.GetProjectID(c), f)
	if err != nil {
		respondError(c, h.logger, err, "failed to list appointments")
		return
	}
	c.JSON(http.StatusOK, appointments)
}

// Get handles GET /api/appointments/:id
func (h *AppointmentHandler) Get(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	a, err := h.lifecycle.Get(c.Request.Context(), middleware.GetProjectID(c), id, actor(c))
	if err != nil {
		respondError(c, h.logger, err, "failed to get appointment")
		return
	}
	c.JSON(http.StatusOK, a)
}

// Confirm handles POST /api/appointments/:id/confirm
func (h *AppointmentHandler) Confirm(c *gin.Context) {
	h.transition(c, "failed to confirm appointment", h.lifecycle.Confirm)
}

// Complete handles POST /api/appointments/:id/complete
func (h *AppointmentHandler) Complete(c *gin.Context) {
	h.transition(c, "failed to complete appointment", h.lifecycle.Complete)
}

// NoShow handles POST /api/appointments/:id/no-show
func (h *AppointmentHandler) NoShow(c *gin.Context) {
	h.transition(c, "failed to mark no-show", h.lifecycle.MarkNoShow)
}

// Cancel handles POST /api/appointments/:id/cancel
//
// Customers and staff share the route; the lifecycle applies the notice
// rule to customers only.
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	var req cancelRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	a, err := h.lifecycle.Cancel(c.Request.Context(), middleware.GetProjectID(c), id, actor(c), req.Reason)
	if err != nil {
		respondError(c, h.logger, err, "failed to cancel appointment")
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *AppointmentHandler) transition(
	c *gin.Context,
	failure string,
	op func(ctx context.Context, projectID, appointmentID uuid.UUID) (*models.Appointment, error),
) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	a, err := op(c.Request.Context(), middleware.GetProjectID(c), id)
	if err != nil {
		respondError(c, h.logger, err, failure)
		return
	}
	c.JSON(http.StatusOK, a)
}

func appointmentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid appointment id")
		return uuid.Nil, false
	}
	return id, true
}

func parseInstant(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
