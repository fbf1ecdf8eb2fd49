package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/meetlines/meetlines/internal/appointment"
	"github.com/meetlines/meetlines/internal/auth"
	"github.com/meetlines/meetlines/internal/middleware"
	"github.com/meetlines/meetlines/internal/models"
	"github.com/meetlines/meetlines/internal/repository"
	"github.com/meetlines/meetlines/internal/subdomain"
	"go.uber.org/zap"
)

type ProjectHandler struct {
	repo      repository.ProjectRepository
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
}

func NewProjectHandler(repo repository.ProjectRepository, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{repo: repo, jwtSecret: jwtSecret, tokenTTL: tokenTTL, logger: logger}
}

type createProjectRequest struct {
	Name      string `json:"name" binding:"required"`
	Subdomain string `json:"subdomain" binding:"required"`
}

type updateSubdomainRequest struct {
	Subdomain string `json:"subdomain" binding:"required"`
}

type updateStatusRequest struct {
	Status models.ProjectStatus `json:"status" binding:"required"`
}

// publicProject is the part of a project anyone may read.
type publicProject struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Subdomain string    `json:"subdomain"`
}

// Create handles POST /api/projects
//
// The response carries a token scoped to the new project so the owner can
// start configuring it right away.
func (h *ProjectHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	sub := subdomain.Normalize(req.Subdomain)
	if ok, reason := subdomain.IsValid(sub); !ok {
		badRequest(c, reason)
		return
	}

	userID := middleware.GetUserID(c)
	project, err := h.repo.Create(c.Request.Context(), &models.Project{
		OwnerID:   userID,
		Name:      req.Name,
		Subdomain: sub,
		Status:    models.ProjectActive,
	})
	if err != nil {
		if errors.Is(err, repository.ErrSubdomainTaken) {
			abortWith(c, http.StatusConflict, appointment.CodeConflict, "subdomain already taken")
			return
		}
		respondError(c, h.logger, err, "failed to create project")
		return
	}

	token, err := auth.GenerateToken(userID, project.ID, middleware.GetEmail(c), auth.RoleOwner, h.jwtSecret, h.tokenTTL)
	if err != nil {
		respondError(c, h.logger, err, "failed to create project")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"project": project, "token": token})
}

// List handles GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.repo.ListByOwner(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err, "failed to list projects")
		return
	}
	c.JSON(http.StatusOK, projects)
}

// UpdateSubdomain handles PATCH /api/projects/:id/subdomain
//
// A rename goes through the same validation as creation.
func (h *ProjectHandler) UpdateSubdomain(c *gin.Context) {
	project, ok := h.ownedProject(c)
	if !ok {
		return
	}
	var req updateSubdomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	sub := subdomain.Normalize(req.Subdomain)
	if ok, reason := subdomain.IsValid(sub); !ok {
		badRequest(c, reason)
		return
	}
	if sub == project.Subdomain {
		c.JSON(http.StatusOK, project)
		return
	}

	updated, err := h.repo.UpdateSubdomain(c.Request.Context(), project.ID, sub)
	if err != nil {
		if errors.Is(err, repository.ErrSubdomainTaken) {
			abortWith(c, http.StatusConflict, appointment.CodeConflict, "subdomain already taken")
			return
		}
		respondError(c, h.logger, err, "failed to update subdomain")
		return
	}
	if updated == nil {
		notFound(c, "project not found")
		return
	}

	h.logger.Info("project subdomain changed",
		zap.String("project_id", project.ID.String()),
		zap.String("from", project.Subdomain),
		zap.String("to", updated.Subdomain),
	)
	c.JSON(http.StatusOK, updated)
}

// UpdateStatus handles PATCH /api/projects/:id/status
//
// Disabling is the only way to take a tenant offline; projects are never
// hard-deleted through the API.
func (h *ProjectHandler) UpdateStatus(c *gin.Context) {
	project, ok := h.ownedProject(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Status != models.ProjectActive && req.Status != models.ProjectDisabled {
		badRequest(c, "status must be active or disabled")
		return
	}

	updated, err := h.repo.UpdateStatus(c.Request.Context(), project.ID, req.Status)
	if err != nil {
		respondError(c, h.logger, err, "failed to update status")
		return
	}
	if updated == nil {
		notFound(c, "project not found")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// GetPublic handles GET /api/projects/public/:subdomain
//
// Disabled and unknown projects look the same to the public.
func (h *ProjectHandler) GetPublic(c *gin.Context) {
	sub := subdomain.Normalize(c.Param("subdomain"))
	project, err := h.repo.GetBySubdomain(c.Request.Context(), sub)
	if err != nil {
		respondError(c, h.logger, err, "failed to get project")
		return
	}
	if !project.IsActive() {
		notFound(c, "project not found")
		return
	}
	c.JSON(http.StatusOK, publicProject{ID: project.ID, Name: project.Name, Subdomain: project.Subdomain})
}

// CheckSubdomain handles GET /api/projects/public/subdomain-check?name=
func (h *ProjectHandler) CheckSubdomain(c *gin.Context) {
	sub := subdomain.Normalize(c.Query("name"))
	if ok, reason := subdomain.IsValid(sub); !ok {
		c.JSON(http.StatusOK, gin.H{"subdomain": sub, "available": false, "reason": reason})
		return
	}

	existing, err := h.repo.GetBySubdomain(c.Request.Context(), sub)
	if err != nil {
		respondError(c, h.logger, err, "failed to check subdomain")
		return
	}
	if existing != nil {
		c.JSON(http.StatusOK, gin.H{"subdomain": sub, "available": false, "reason": "subdomain already taken"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subdomain": sub, "available": true})
}

// ownedProject loads the :id project and checks the caller owns it.
func (h *ProjectHandler) ownedProject(c *gin.Context) (*models.Project, bool) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid project id")
		return nil, false
	}
	project, err := h.repo.GetByID(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, h.logger, err, "failed to get project")
		return nil, false
	}
	if project == nil || project.OwnerID != middleware.GetUserID(c) {
		notFound(c, "project not found")
		return nil, false
	}
	return project, true
}
