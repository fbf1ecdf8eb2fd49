package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meetlines/meetlines/internal/middleware"
	"github.com/meetlines/meetlines/internal/repository"
	"go.uber.org/zap"
)

// UserHandler serves the signed-in owner's profile.
type UserHandler struct {
	repo        repository.UserRepository
	projectRepo repository.ProjectRepository
	logger      *zap.Logger
}

func NewUserHandler(repo repository.UserRepository, projectRepo repository.ProjectRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{repo: repo, projectRepo: projectRepo, logger: logger}
}

// GetMe handles GET /api/users/me
//
// Returns the owner together with the projects they own and the project
// the current request is scoped to.
func (h *UserHandler) GetMe(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)

	user, err := h.repo.GetByID(ctx, userID)
	if err != nil {
		respondError(c, h.logger, err, "failed to get user")
		return
	}
	// A token for a deleted account.
	if user == nil {
		notFound(c, "user not found")
		return
	}

	projects, err := h.projectRepo.ListByOwner(ctx, userID)
	if err != nil {
		respondError(c, h.logger, err, "failed to get user")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":       user,
		"projects":   projects,
		"project_id": middleware.GetProjectID(c),
		"role":       middleware.GetRole(c),
	})
}
