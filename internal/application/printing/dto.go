package printing

import (
	"io"
	"time"

	"github.com/crm/docrender/internal/domain/document"
	"github.com/crm/docrender/internal/domain/printing"
	"github.com/crm/docrender/internal/domain/shared"
)

// =============================================================================
// Preview and Generation DTOs
// =============================================================================

// DocumentSelector names the document to render: either an inline document or
// a {kind, id} reference resolved through the CRM API.
type DocumentSelector struct {
	Kind     string             `json:"kind" binding:"omitempty,dockind"`
	ID       string             `json:"id" binding:"omitempty,max=64"`
	Document *document.Document `json:"document"`
}

// PreviewRequest represents a request to preview a document
type PreviewRequest struct {
	DocumentSelector
	Brand string `json:"brand" binding:"omitempty,max=50"`
}

// PageResponse is one assembled HTML page
type PageResponse struct {
	Index int    `json:"index"`
	HTML  string `json:"html"`
}

// PreviewResponse represents the preview result
type PreviewResponse struct {
	DocumentKind   string         `json:"document_kind"`
	DocumentNumber string         `json:"document_number"`
	Brand          string         `json:"brand"`
	FileName       string         `json:"file_name"`
	Pages          []PageResponse `json:"pages"`
}

// GenerateRequest represents a request to generate a PDF
type GenerateRequest struct {
	DocumentSelector
	Brand    string `json:"brand" binding:"omitempty,max=50"`
	Strategy string `json:"strategy" binding:"omitempty,strategy"`
	// IdempotencyKey comes from the Idempotency-Key header
	IdempotencyKey string `json:"-"`
}

// =============================================================================
// Print Job DTOs
// =============================================================================

// ListJobsRequest represents a request to list print jobs
type ListJobsRequest struct {
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string `form:"order_by"`
	OrderDir   string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Kind       string `form:"kind" binding:"omitempty,dockind"`
	DocumentID string `form:"document_id" binding:"omitempty,max=64"`
	Status     string `form:"status" binding:"omitempty,oneof=PENDING RENDERING COMPLETED FAILED"`
	Mine       bool   `form:"mine"`
}

// PrintJobResponse represents a print job response
type PrintJobResponse struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	DocumentKind   string     `json:"document_kind"`
	DocumentID     string     `json:"document_id,omitempty"`
	DocumentNumber string     `json:"document_number"`
	Brand          string     `json:"brand"`
	Strategy       string     `json:"strategy"`
	Status         string     `json:"status"`
	FileName       string     `json:"file_name,omitempty"`
	PageCount      int        `json:"page_count"`
	FileSize       int64      `json:"file_size"`
	DownloadURL    string     `json:"download_url,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	RequestedBy    string     `json:"requested_by"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	DurationMs     int64      `json:"duration_ms,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	// Replayed is set when an Idempotency-Key matched an earlier request
	Replayed bool `json:"replayed,omitempty"`
}

// ListJobsResponse represents a paginated list of print jobs
type ListJobsResponse = shared.Paginated[PrintJobResponse]

// DownloadResult carries a stored PDF. The caller closes Content.
type DownloadResult struct {
	FileName string
	Size     int64
	Content  io.ReadCloser
}

// =============================================================================
// Note and Maintenance DTOs
// =============================================================================

// AddNoteRequest represents a note to attach to a document
type AddNoteRequest struct {
	Text string `json:"text" binding:"required,max=2000"`
}

// NoteResponse represents a created note
type NoteResponse struct {
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	AuthorID  string    `json:"author_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CleanupResult reports what a retention sweep removed
type CleanupResult struct {
	JobsDeleted  int64 `json:"jobs_deleted"`
	FilesDeleted int   `json:"files_deleted"`
}

func toJobResponse(j *printing.PrintJob) *PrintJobResponse {
	resp := &PrintJobResponse{
		ID:             j.ID.String(),
		TenantID:       j.TenantID.String(),
		DocumentKind:   j.DocumentKind.String(),
		DocumentID:     j.DocumentID,
		DocumentNumber: j.DocumentNumber,
		Brand:          j.Brand,
		Strategy:       j.Strategy.String(),
		Status:         j.Status.String(),
		FileName:       j.FileName,
		PageCount:      j.PageCount,
		FileSize:       j.FileSize,
		ErrorMessage:   j.ErrorMessage,
		RequestedBy:    j.RequestedBy.String(),
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
		DurationMs:     j.Duration().Milliseconds(),
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
	return resp
}

func toNoteResponse(n document.Note) *NoteResponse {
	resp := &NoteResponse{
		Text:      n.Text,
		Author:    n.Author,
		Timestamp: n.Timestamp,
	}
	if n.AuthorID != nil {
		resp.AuthorID = n.AuthorID.String()
	}
	return resp
}
