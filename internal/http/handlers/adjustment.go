package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/advieskamer/advies-backend/internal/adjust"
	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/feedback"
	"github.com/advieskamer/advies-backend/internal/http/middleware"
	"github.com/advieskamer/advies-backend/internal/http/response"
	"github.com/advieskamer/advies-backend/internal/pkg/dbctx"
	"github.com/advieskamer/advies-backend/internal/pkg/errors"
	"github.com/advieskamer/advies-backend/internal/services"
)

type AdjustmentHandler struct {
	svc  *adjust.Service
	jobs services.JobService
}

func NewAdjustmentHandler(svc *adjust.Service, jobs services.JobService) *AdjustmentHandler {
	return &AdjustmentHandler{svc: svc, jobs: jobs}
}

// POST /api/adjustments/sessions
func (h *AdjustmentHandler) CreateSession(c *gin.Context) {
	var req struct {
		ReportID *uuid.UUID `json:"report_id"`
		Content  string     `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	session, err := h.svc.CreateSession(c.Request.Context(), middleware.UserID(c), req.ReportID, req.Content)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// GET /api/adjustments/sessions/:id
func (h *AdjustmentHandler) GetSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	session, err := h.svc.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// POST /api/adjustments/sessions/:id/analyze
func (h *AdjustmentHandler) AnalyzeAdjustment(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	var req struct {
		Instruction string `json:"instruction"`
		Sync        bool   `json:"sync"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	req.Instruction = strings.TrimSpace(req.Instruction)
	if req.Instruction == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_instruction", errors.ErrInvalidArgument)
		return
	}

	if req.Sync {
		proposals, diag, err := h.svc.Analyze(c.Request.Context(), sessionID, req.Instruction, "")
		if err != nil {
			response.RespondDomainError(c, err)
			return
		}
		response.RespondOK(c, gin.H{"proposals": proposals, "diagnostics": diag})
		return
	}

	job, created, err := h.jobs.EnqueueIfIdle(dbctx.Context{Ctx: c.Request.Context()}, middleware.UserID(c), domain.JobTypeAdjustAnalyze, "adjustment_session", sessionID, map[string]any{
		"session_id":  sessionID.String(),
		"instruction": req.Instruction,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if !created {
		response.RespondError(c, http.StatusConflict, "analyze_in_progress", errors.ErrInvalidArgument)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/adjustments/sessions/:id/apply
func (h *AdjustmentHandler) ApplyAdjustments(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	var req struct {
		Accepted []feedback.ChangeProposal `json:"accepted"`
		Mode     string                    `json:"mode"`
		Sync     bool                      `json:"sync"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if len(req.Accepted) == 0 {
		response.RespondError(c, http.StatusBadRequest, "no_accepted_proposals", errors.ErrInvalidArgument)
		return
	}

	if req.Sync {
		outcome, err := h.svc.Apply(c.Request.Context(), sessionID, req.Accepted, req.Mode, "")
		if err != nil {
			response.RespondDomainError(c, err)
			return
		}
		response.RespondOK(c, gin.H{"outcome": outcome})
		return
	}

	job, created, err := h.jobs.EnqueueIfIdle(dbctx.Context{Ctx: c.Request.Context()}, middleware.UserID(c), domain.JobTypeAdjustApply, "adjustment_session", sessionID, map[string]any{
		"session_id": sessionID.String(),
		"accepted":   req.Accepted,
		"mode":       req.Mode,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if !created {
		response.RespondError(c, http.StatusConflict, "apply_in_progress", errors.ErrInvalidArgument)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// GET /api/adjustments/sessions/:id/history
func (h *AdjustmentHandler) History(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	history, err := h.svc.History(c.Request.Context(), sessionID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"history": history})
}
