package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/advieskamer/advies-backend/internal/data/repos"
	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/http/response"
	"github.com/advieskamer/advies-backend/internal/pkg/dbctx"
	"github.com/advieskamer/advies-backend/internal/pkg/errors"
)

type PromptConfigHandler struct {
	prompts repos.PromptConfigRepo
}

func NewPromptConfigHandler(prompts repos.PromptConfigRepo) *PromptConfigHandler {
	return &PromptConfigHandler{prompts: prompts}
}

// GET /api/prompt-configs/active
func (h *PromptConfigHandler) GetActive(c *gin.Context) {
	cfg, err := h.prompts.GetActive(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if cfg == nil {
		response.RespondError(c, http.StatusNotFound, "no_active_config", errors.ErrNotFound)
		return
	}
	response.RespondOK(c, gin.H{"config": cfg})
}

// POST /api/prompt-configs
func (h *PromptConfigHandler) Create(c *gin.Context) {
	var req struct {
		Name      string            `json:"name"`
		Templates map[string]string `json:"templates"`
		GlobalAI  datatypes.JSON    `json:"global_ai"`
		StageAI   datatypes.JSON    `json:"stage_ai"`
		Activate  bool              `json:"activate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Templates) == 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", errors.ErrInvalidArgument)
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	cfg, err := h.prompts.Create(dbc, &domain.PromptConfig{
		Name:      req.Name,
		Templates: mustJSON(req.Templates),
		GlobalAI:  req.GlobalAI,
		StageAI:   req.StageAI,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if req.Activate {
		if err := h.prompts.Activate(dbc, req.Name); err != nil {
			response.RespondDomainError(c, err)
			return
		}
		cfg.Active = true
	}
	response.RespondOK(c, gin.H{"config": cfg})
}

func mustJSON(v any) datatypes.JSON {
	raw, _ := json.Marshal(v)
	return datatypes.JSON(raw)
}

// POST /api/prompt-configs/:name/activate
func (h *PromptConfigHandler) Activate(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_name", errors.ErrInvalidArgument)
		return
	}
	if err := h.prompts.Activate(dbctx.Context{Ctx: c.Request.Context()}, name); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"activated": name})
}
