package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/meetlines/meetlines/internal/appointment"
	"github.com/meetlines/meetlines/internal/auth"
	"github.com/meetlines/meetlines/internal/models"
	"github.com/meetlines/meetlines/internal/repository"
	"github.com/meetlines/meetlines/internal/subdomain"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler handles owner registration and login. Both routes sit on the
// public path list, so they never see a tenant.
type AuthHandler struct {
	userRepo    repository.UserRepository
	projectRepo repository.ProjectRepository
	jwtSecret   string
	tokenTTL    time.Duration
	logger      *zap.Logger
}

func NewAuthHandler(
	userRepo repository.UserRepository,
	projectRepo repository.ProjectRepository,
	jwtSecret string,
	tokenTTL time.Duration,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		userRepo:    userRepo,
		projectRepo: projectRepo,
		jwtSecret:   jwtSecret,
		tokenTTL:    tokenTTL,
		logger:      logger,
	}
}

type registerRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name" binding:"required"`
	ProjectName string `json:"project_name" binding:"required"`
	Subdomain   string `json:"subdomain" binding:"required"`
}

type loginRequest struct {
	Email     string     `json:"email" binding:"required,email"`
	Password  string     `json:"password" binding:"required"`
	ProjectID *uuid.UUID `json:"project_id"`
}

// authResponse is what both register and login return. The token is scoped
// to one project; Projects lists every project the owner can switch to.
type authResponse struct {
	Token    string           `json:"token"`
	User     *models.User     `json:"user"`
	Project  *models.Project  `json:"project,omitempty"`
	Projects []models.Project `json:"projects,omitempty"`
}

// Register handles POST /api/auth/register
//
// Flow:
//  1. Validate input, including the subdomain rule
//  2. Refuse a taken email or subdomain
//  3. Hash the password
//  4. Create the owner, then their first project
//  5. Return an owner token scoped to that project
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()

	sub := subdomain.Normalize(req.Subdomain)
	if ok, reason := subdomain.IsValid(sub); !ok {
		badRequest(c, reason)
		return
	}

	existing, err := h.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		respondError(c, h.logger, err, "registration failed")
		return
	}
	if existing != nil {
		abortWith(c, http.StatusConflict, appointment.CodeConflict, "email already registered")
		return
	}
	taken, err := h.projectRepo.GetBySubdomain(ctx, sub)
	if err != nil {
		respondError(c, h.logger, err, "registration failed")
		return
	}
	if taken != nil {
		abortWith(c, http.StatusConflict, appointment.CodeConflict, "subdomain already taken")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, h.logger, err, "registration failed")
		return
	}

	user, err := h.userRepo.Create(ctx, req.Email, req.DisplayName, string(hash))
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			abortWith(c, http.StatusConflict, appointment.CodeConflict, "email already registered")
			return
		}
		respondError(c, h.logger, err, "registration failed")
		return
	}

	project, err := h.projectRepo.Create(ctx, &models.Project{
		OwnerID:   user.ID,
		Name:      req.ProjectName,
		Subdomain: sub,
		Status:    models.ProjectActive,
	})
	if err != nil {
		if errors.Is(err, repository.ErrSubdomainTaken) {
			abortWith(c, http.StatusConflict, appointment.CodeConflict, "subdomain already taken")
			return
		}
		respondError(c, h.logger, err, "registration failed")
		return
	}

	token, err := auth.GenerateToken(user.ID, project.ID, user.Email, auth.RoleOwner, h.jwtSecret, h.tokenTTL)
	if err != nil {
		respondError(c, h.logger, err, "registration failed")
		return
	}

	h.logger.Info("owner registered",
		zap.String("user_id", user.ID.String()),
		zap.String("subdomain", project.Subdomain),
	)
	c.JSON(http.StatusCreated, authResponse{Token: token, User: user, Project: project})
}

// Login handles POST /api/auth/login
//
// The token is scoped to project_id when given, otherwise to the owner's
// first project by subdomain.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()

	user, err := h.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		respondError(c, h.logger, err, "login failed")
		return
	}

	// Same message for unknown email and wrong password.
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	projects, err := h.projectRepo.ListByOwner(ctx, user.ID)
	if err != nil {
		respondError(c, h.logger, err, "login failed")
		return
	}

	var current *models.Project
	for i := range projects {
		if req.ProjectID == nil || projects[i].ID == *req.ProjectID {
			current = &projects[i]
			break
		}
	}
	if req.ProjectID != nil && current == nil {
		abortWith(c, http.StatusForbidden, appointment.CodeForbidden, "project does not belong to this account")
		return
	}

	projectID := uuid.Nil
	if current != nil {
		projectID = current.ID
	}
	token, err := auth.GenerateToken(user.ID, projectID, user.Email, auth.RoleOwner, h.jwtSecret, h.tokenTTL)
	if err != nil {
		respondError(c, h.logger, err, "login failed")
		return
	}

	c.JSON(http.StatusOK, authResponse{Token: token, User: user, Project: current, Projects: projects})
}
