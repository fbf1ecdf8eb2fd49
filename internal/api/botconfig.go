package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meetlines/meetlines/internal/botconfig"
	"github.com/meetlines/meetlines/internal/middleware"
	"github.com/meetlines/meetlines/internal/repository"
	"go.uber.org/zap"
)

const maxBotConfigBytes = 64 << 10

type BotConfigHandler struct {
	repo   repository.BotConfigRepository
	logger *zap.Logger
}

func NewBotConfigHandler(repo repository.BotConfigRepository, logger *zap.Logger) *BotConfigHandler {
	return &BotConfigHandler{repo: repo, logger: logger}
}

// Get handles GET /api/bot-config
//
// A project without a stored configuration gets an empty object.
func (h *BotConfigHandler) Get(c *gin.Context) {
	rec, err := h.repo.Get(c.Request.Context(), middleware.GetProjectID(c))
	if err != nil {
		respondError(c, h.logger, err, "failed to load bot config")
		return
	}
	if rec == nil {
		c.JSON(http.StatusOK, botconfig.Config{})
		return
	}

	cfg, err := botconfig.Parse(rec.Raw)
	if err != nil {
		// Stored before validation tightened; hand back the raw document
		// so the owner can fix it.
		h.logger.Warn("stored bot config no longer validates", zap.Error(err))
		c.Data(http.StatusOK, "application/json; charset=utf-8", rec.Raw)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// Put handles PUT /api/bot-config
//
// The document is parsed and validated before it is stored, and what is
// stored is the normalized form.
func (h *BotConfigHandler) Put(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBotConfigBytes+1))
	if err != nil {
		badRequest(c, "could not read body")
		return
	}
	if len(raw) > maxBotConfigBytes {
		badRequest(c, "bot config too large")
		return
	}

	cfg, err := botconfig.Parse(raw)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	normalized, err := json.Marshal(cfg)
	if err != nil {
		respondError(c, h.logger, err, "failed to save bot config")
		return
	}

	if _, err := h.repo.Upsert(c.Request.Context(), middleware.GetProjectID(c), normalized); err != nil {
		respondError(c, h.logger, err, "failed to save bot config")
		return
	}
	c.JSON(http.StatusOK, cfg)
}
