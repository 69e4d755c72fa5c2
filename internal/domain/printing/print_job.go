package printing

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crm/docrender/internal/domain/document"
	"github.com/crm/docrender/internal/domain/shared"
)

// PrintJob records one PDF generation for a quotation or invoice.
type PrintJob struct {
	shared.TenantAggregateRoot
	DocumentKind   document.Kind // quotation or invoice
	DocumentID     string        // CRM id of the document, empty for inline documents
	DocumentNumber string        // quotation or invoice number, "draft" when absent
	Brand          string        // letterhead brand code
	Strategy       Strategy      // pagination strategy
	Status         JobStatus     // current job status
	FileName       string        // download file name
	StorageKey     string        // location of the stored PDF
	PageCount      int           // pages in the generated PDF
	FileSize       int64         // size of the generated PDF in bytes
	ErrorMessage   string        // error message if the job failed
	RequestedBy    uuid.UUID     // user who asked for the PDF
	StartedAt      *time.Time    // when rendering started
	CompletedAt    *time.Time    // when the job reached a terminal status
}

// NewPrintJob creates a pending print job for a document
func NewPrintJob(
	tenantID uuid.UUID,
	kind document.Kind,
	documentID string,
	documentNumber string,
	brand string,
	strategy Strategy,
	requestedBy shared.CurrentUser,
) (*PrintJob, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_KIND", "Invalid document kind: "+kind.String())
	}
	if !strategy.IsValid() {
		return nil, shared.NewDomainError("INVALID_STRATEGY", "Invalid strategy: "+strategy.String())
	}
	if requestedBy.IsZero() {
		return nil, shared.NewDomainError("INVALID_USER", "Requesting user is required")
	}
	if strings.TrimSpace(brand) == "" {
		return nil, shared.NewDomainError("INVALID_BRAND", "Brand cannot be empty")
	}
	if strings.TrimSpace(documentNumber) == "" {
		documentNumber = document.DraftName
	}

	job := &PrintJob{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		DocumentKind:        kind,
		DocumentID:          documentID,
		DocumentNumber:      documentNumber,
		Brand:               brand,
		Strategy:            strategy,
		Status:              JobStatusPending,
		RequestedBy:         requestedBy.ID,
	}
	job.SetCreatedBy(requestedBy.ID)

	return job, nil
}

// StartRendering marks the job as rendering
func (j *PrintJob) StartRendering() error {
	if !j.Status.CanTransitionTo(JobStatusRendering) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot start rendering from status: "+j.Status.String())
	}

	now := time.Now()
	j.Status = JobStatusRendering
	j.StartedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()

	return nil
}

// Complete marks the job as completed with the stored PDF location
func (j *PrintJob) Complete(storageKey, fileName string, pageCount int, fileSize int64) error {
	if !j.Status.CanTransitionTo(JobStatusCompleted) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot complete from status: "+j.Status.String())
	}
	if storageKey == "" {
		return shared.NewDomainError("INVALID_STORAGE_KEY", "Storage key cannot be empty")
	}
	if pageCount < 1 {
		return shared.NewDomainError("INVALID_PAGE_COUNT", "A completed job has at least one page")
	}

	now := time.Now()
	j.Status = JobStatusCompleted
	j.StorageKey = storageKey
	j.FileName = fileName
	j.PageCount = pageCount
	j.FileSize = fileSize
	j.ErrorMessage = ""
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()

	return nil
}

// Fail marks the job as failed. The message replaces any previous one.
func (j *PrintJob) Fail(errorMessage string) error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot fail a job that is already in terminal status: "+j.Status.String())
	}

	now := time.Now()
	j.Status = JobStatusFailed
	j.ErrorMessage = errorMessage
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()

	return nil
}

// Duration returns how long rendering took, or zero while it is still running.
func (j *PrintJob) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// IsCompleted returns true if the job is completed
func (j *PrintJob) IsCompleted() bool {
	return j.Status == JobStatusCompleted
}

// IsFailed returns true if the job failed
func (j *PrintJob) IsFailed() bool {
	return j.Status == JobStatusFailed
}

// IsTerminal returns true if the job is in a terminal state
func (j *PrintJob) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// HasPDF returns true if a PDF has been generated
func (j *PrintJob) HasPDF() bool {
	return j.Status == JobStatusCompleted && j.StorageKey != ""
}
