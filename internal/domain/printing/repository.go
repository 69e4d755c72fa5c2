package printing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/crm/docrender/internal/domain/document"
	"github.com/crm/docrender/internal/domain/shared"
)

// PrintJobRepository defines the interface for print job persistence
type PrintJobRepository interface {
	// FindByIDForTenant finds a job by ID within a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*PrintJob, error)

	// FindAllForTenant finds jobs for a tenant matching the filter
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter PrintJobFilter) ([]PrintJob, error)

	// CountForTenant returns the number of jobs matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter PrintJobFilter) (int64, error)

	// Save saves a job (insert or update)
	Save(ctx context.Context, job *PrintJob) error

	// DeleteOlderThan deletes terminal jobs created before the cutoff
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PrintJobFilter extends the standard filter with print job specific criteria
type PrintJobFilter struct {
	shared.Filter
	DocumentKind *document.Kind
	DocumentID   *string
	Status       *JobStatus
	RequestedBy  *uuid.UUID
}
