package handlers

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/advieskamer/advies-backend/internal/data/repos"
	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/http/middleware"
	"github.com/advieskamer/advies-backend/internal/http/response"
	"github.com/advieskamer/advies-backend/internal/pipeline"
	"github.com/advieskamer/advies-backend/internal/pkg/dbctx"
	"github.com/advieskamer/advies-backend/internal/pkg/errors"
	"github.com/advieskamer/advies-backend/internal/rollback"
	"github.com/advieskamer/advies-backend/internal/services"
)

type ReportHandler struct {
	reports   repos.ReportRepo
	outputs   repos.StageOutputRepo
	snapshots repos.SnapshotRepo
	pipe      *pipeline.Pipeline
	rb        *rollback.Engine
	jobs      services.JobService
	markdown  goldmark.Markdown
}

func NewReportHandler(
	reports repos.ReportRepo,
	outputs repos.StageOutputRepo,
	snapshots repos.SnapshotRepo,
	pipe *pipeline.Pipeline,
	rb *rollback.Engine,
	jobs services.JobService,
) *ReportHandler {
	return &ReportHandler{
		reports:   reports,
		outputs:   outputs,
		snapshots: snapshots,
		pipe:      pipe,
		rb:        rb,
		jobs:      jobs,
		markdown:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// POST /api/reports
func (h *ReportHandler) CreateReport(c *gin.Context) {
	var req struct {
		ClientName string `json:"client_name"`
		RawInput   string `json:"raw_input"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	req.ClientName = strings.TrimSpace(req.ClientName)
	req.RawInput = strings.TrimSpace(req.RawInput)
	if req.ClientName == "" || req.RawInput == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", errors.ErrInvalidArgument)
		return
	}

	report, err := h.reports.Create(dbctx.Context{Ctx: c.Request.Context()}, &domain.Report{
		OwnerUserID: middleware.UserID(c),
		ClientName:  req.ClientName,
		RawInput:    req.RawInput,
		Status:      domain.ReportStatusDraft,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"report": report})
}

// POST /api/reports/:id/run
func (h *ReportHandler) RunReport(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_report_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}

	report, err := h.reports.GetByID(dbc, reportID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if report == nil {
		response.RespondError(c, http.StatusNotFound, "report_not_found", errors.ErrNotFound)
		return
	}

	job, created, err := h.jobs.EnqueueIfIdle(dbc, middleware.UserID(c), domain.JobTypeReportRun, "report", reportID, map[string]any{
		"report_id": reportID.String(),
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if !created {
		response.RespondError(c, http.StatusConflict, "run_in_progress", errors.ErrInvalidArgument)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/reports/:id/stages/:stage
func (h *ReportHandler) ExecuteStage(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_report_id", err)
		return
	}
	stage := c.Param("stage")
	if !pipeline.IsValidStage(stage) {
		response.RespondError(c, http.StatusBadRequest, "unknown_stage", errors.ErrInvalidArgument)
		return
	}

	var req struct {
		Sync bool `json:"sync"`
	}
	_ = c.ShouldBindJSON(&req)

	if req.Sync {
		res, err := h.pipe.RunStage(c.Request.Context(), reportID, stage, "")
		if err != nil {
			response.RespondDomainError(c, err)
			return
		}
		response.RespondOK(c, gin.H{"result": res})
		return
	}

	job, created, err := h.jobs.EnqueueIfIdle(dbctx.Context{Ctx: c.Request.Context()}, middleware.UserID(c), domain.JobTypeReportStage, "report", reportID, map[string]any{
		"report_id": reportID.String(),
		"stage":     stage,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if !created {
		response.RespondError(c, http.StatusConflict, "stage_in_progress", errors.ErrInvalidArgument)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// GET /api/reports/:id
func (h *ReportHandler) GetReport(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_report_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}

	report, err := h.reports.GetByID(dbc, reportID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if report == nil {
		response.RespondError(c, http.StatusNotFound, "report_not_found", errors.ErrNotFound)
		return
	}

	outputs, err := h.outputs.ListByReport(dbc, reportID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}

	type stageView struct {
		Stage     string `json:"stage"`
		Status    string `json:"status"`
		ModelUsed string `json:"model_used,omitempty"`
		Error     string `json:"error,omitempty"`
	}
	stages := make([]stageView, 0, len(outputs))
	for _, out := range outputs {
		stages = append(stages, stageView{
			Stage:     out.Stage,
			Status:    out.Status,
			ModelUsed: out.ModelUsed,
			Error:     out.Error,
		})
	}

	next, err := h.pipe.NextStages(c.Request.Context(), reportID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}

	response.RespondOK(c, gin.H{
		"report":      report,
		"stages":      stages,
		"next_stages": next,
	})
}

// GET /api/reports/:id/stages/:stage/output
func (h *ReportHandler) GetStageOutput(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_report_id", err)
		return
	}
	stage := c.Param("stage")

	out, err := h.outputs.Get(dbctx.Context{Ctx: c.Request.Context()}, reportID, stage)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if out == nil {
		response.RespondDomainError(c, &errors.StageNotFoundError{Stage: stage})
		return
	}
	response.RespondOK(c, gin.H{"output": out})
}

// GET /api/reports/:id/content
func (h *ReportHandler) GetLatestContent(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_report_id", err)
		return
	}
	content, version, err := h.snapshots.LatestContent(dbctx.Context{Ctx: c.Request.Context()}, reportID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"content": content,
		"version": version,
	})
}

// GET /api/reports/:id/preview
func (h *ReportHandler) PreviewReport(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_report_id", err)
		return
	}
	content, _, err := h.snapshots.LatestContent(dbctx.Context{Ctx: c.Request.Context()}, reportID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(content), &buf); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "render_failed", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// GET /api/reports/:id/versions
func (h *ReportHandler) ListVersions(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_report_id", err)
		return
	}
	snaps, err := h.snapshots.ListByReport(dbctx.Context{Ctx: c.Request.Context()}, reportID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}

	withContent := c.Query("full") == "true"
	type versionView struct {
		Version   int       `json:"version"`
		FromStage string    `json:"from_stage"`
		Rollback  any       `json:"rollback,omitempty"`
		Content   string    `json:"content,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}
	views := make([]versionView, 0, len(snaps))
	for _, s := range snaps {
		v := versionView{
			Version:   s.Version,
			FromStage: s.FromStage,
			CreatedAt: s.CreatedAt,
		}
		if len(s.Rollback) > 0 {
			v.Rollback = s.Rollback
		}
		if withContent {
			v.Content = s.Content
		}
		views = append(views, v)
	}
	response.RespondOK(c, gin.H{"versions": views})
}

// GET /api/reports/:id/stages/:stage/proposals
func (h *ReportHandler) ListProposals(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_report_id", err)
		return
	}
	stage := c.Param("stage")

	proposals, diag, err := h.pipe.Proposals(c.Request.Context(), reportID, stage)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"proposals":   proposals,
		"diagnostics": diag,
	})
}

// POST /api/reports/:id/stages/:stage/rollback
func (h *ReportHandler) RollbackChange(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_report_id", err)
		return
	}
	stage := c.Param("stage")

	var req struct {
		ChangeIndex *int `json:"change_index"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ChangeIndex == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", errors.ErrInvalidArgument)
		return
	}

	res, err := h.rb.RollbackChange(c.Request.Context(), reportID, stage, *req.ChangeIndex)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"rollback": res})
}

// GET /api/reports
func (h *ReportHandler) ListReports(c *gin.Context) {
	reports, err := h.reports.List(dbctx.Context{Ctx: c.Request.Context()}, middleware.UserID(c))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"reports": reports})
}
