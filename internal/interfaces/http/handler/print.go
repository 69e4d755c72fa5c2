package handler

import (
	"context"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	printingapp "github.com/crm/docrender/internal/application/printing"
	"github.com/crm/docrender/internal/domain/shared"
	"github.com/crm/docrender/internal/interfaces/http/dto"
	"github.com/crm/docrender/internal/interfaces/http/middleware"
)

// IdempotentReplayedHeader is set on generate responses that replay an
// earlier job for the same Idempotency-Key.
const IdempotentReplayedHeader = "Idempotent-Replayed"

// PrintService is the application surface used by PrintHandler
type PrintService interface {
	Preview(ctx context.Context, req printingapp.PreviewRequest) (*printingapp.PreviewResponse, error)
	Generate(ctx context.Context, user shared.CurrentUser, req printingapp.GenerateRequest) (*printingapp.PrintJobResponse, error)
	GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*printingapp.PrintJobResponse, error)
	ListJobs(ctx context.Context, user shared.CurrentUser, req printingapp.ListJobsRequest) (*printingapp.ListJobsResponse, error)
	Download(ctx context.Context, tenantID, jobID uuid.UUID) (*printingapp.DownloadResult, error)
	AddNote(ctx context.Context, user shared.CurrentUser, kind, id string, req printingapp.AddNoteRequest) (*printingapp.NoteResponse, error)
}

// PrintHandler handles print-related API endpoints
type PrintHandler struct {
	BaseHandler
	printService PrintService
}

// NewPrintHandler creates a new PrintHandler
func NewPrintHandler(printService PrintService) *PrintHandler {
	return &PrintHandler{
		printService: printService,
	}
}

// requireUser aborts with 401 when the JWT middleware did not run
func (h *PrintHandler) requireUser(c *gin.Context) (shared.CurrentUser, bool) {
	user, ok := currentUser(c)
	if !ok {
		h.Unauthorized(c, "Authentication required")
		return shared.CurrentUser{}, false
	}
	return user, true
}

// PreviewDocument godoc
//
//	@Summary		Preview document as HTML pages
//	@Tags			print
//	@Accept			json
//	@Produce		json
//	@Param			request	body		printingapp.PreviewRequest	true	"Inline document or {kind, id}"
//	@Success		200		{object}	dto.Response{data=printingapp.PreviewResponse}
//	@Failure		400		{object}	dto.Response
//	@Failure		404		{object}	dto.Response
//	@Failure		422		{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/print/preview [post]
func (h *PrintHandler) PreviewDocument(c *gin.Context) {
	if _, ok := h.requireUser(c); !ok {
		return
	}

	var req printingapp.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	result, err := h.printService.Preview(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// GeneratePDF godoc
//
//	@Summary		Generate PDF
//	@Description	Renders the document, stores the PDF and records a print job.
//	@Description	A repeated Idempotency-Key returns the original job with 200.
//	@Tags			print
//	@Accept			json
//	@Produce		json
//	@Param			Idempotency-Key	header		string							false	"Client retry key"
//	@Param			request			body		printingapp.GenerateRequest	true	"Generate request"
//	@Success		201				{object}	dto.Response{data=printingapp.PrintJobResponse}
//	@Success		200				{object}	dto.Response{data=printingapp.PrintJobResponse}
//	@Failure		400				{object}	dto.Response
//	@Failure		409				{object}	dto.Response
//	@Failure		500				{object}	dto.Response
//	@Failure		504				{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/print/generate [post]
func (h *PrintHandler) GeneratePDF(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req printingapp.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	req.IdempotencyKey = strings.TrimSpace(c.GetHeader(middleware.IdempotencyKeyHeader))
	if len(req.IdempotencyKey) > 255 {
		h.BadRequest(c, "Idempotency-Key must be at most 255 characters")
		return
	}

	job, err := h.printService.Generate(c.Request.Context(), user, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if job.Replayed {
		c.Header(IdempotentReplayedHeader, "true")
		h.Success(c, job)
		return
	}
	h.Created(c, job)
}

// ListJobs godoc
//
//	@Summary		List print jobs
//	@Tags			print
//	@Produce		json
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(20)
//	@Param			kind		query		string	false	"quotation or invoice"
//	@Param			document_id	query		string	false	"CRM document id"
//	@Param			status		query		string	false	"PENDING, RENDERING, COMPLETED or FAILED"
//	@Param			mine		query		bool	false	"Only jobs requested by the caller"
//	@Success		200			{object}	dto.Response{data=[]printingapp.PrintJobResponse}
//	@Security		BearerAuth
//	@Router			/print/jobs [get]
func (h *PrintHandler) ListJobs(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req printingapp.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	result, err := h.printService.ListJobs(c.Request.Context(), user, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// GetJob godoc
//
//	@Summary		Get print job
//	@Tags			print
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	dto.Response{data=printingapp.PrintJobResponse}
//	@Failure		404	{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/print/jobs/{id} [get]
func (h *PrintHandler) GetJob(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	jobID, ok := h.parseID(c, "job")
	if !ok {
		return
	}

	job, err := h.printService.GetJob(c.Request.Context(), user.TenantID, jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, job)
}

// DownloadPDF godoc
//
//	@Summary		Download generated PDF
//	@Tags			print
//	@Produce		application/pdf
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{file}		binary
//	@Failure		404	{object}	dto.Response
//	@Failure		422	{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/print/jobs/{id}/download [get]
func (h *PrintHandler) DownloadPDF(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	jobID, ok := h.parseID(c, "job")
	if !ok {
		return
	}

	result, err := h.printService.Download(c.Request.Context(), user.TenantID, jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer result.Content.Close()

	extra := map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": result.FileName}),
		"Cache-Control":       "private, no-store",
	}
	size := result.Size
	if size <= 0 {
		size = -1
	}
	c.DataFromReader(http.StatusOK, size, "application/pdf", result.Content, extra)
}

// AddNote godoc
//
//	@Summary		Add a note to a CRM document
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			kind	path		string						true	"quotation or invoice"
//	@Param			id		path		string						true	"CRM document id"
//	@Param			request	body		printingapp.AddNoteRequest	true	"Note"
//	@Success		201		{object}	dto.Response{data=printingapp.NoteResponse}
//	@Failure		400		{object}	dto.Response
//	@Failure		404		{object}	dto.Response
//	@Failure		502		{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/documents/{kind}/{id}/notes [post]
func (h *PrintHandler) AddNote(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	var ref dto.DocumentRefRequest
	if err := c.ShouldBindUri(&ref); err != nil {
		h.BindingError(c, err)
		return
	}
	var req printingapp.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	note, err := h.printService.AddNote(c.Request.Context(), user, ref.Kind, ref.ID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, note)
}
