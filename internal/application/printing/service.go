// Package printing orchestrates document previews, PDF generation and the
// print job history.
package printing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crm/docrender/internal/domain/document"
	"github.com/crm/docrender/internal/domain/printing"
	"github.com/crm/docrender/internal/domain/shared"
	infra "github.com/crm/docrender/internal/infrastructure/printing"
	"github.com/crm/docrender/internal/infrastructure/storage"
	"github.com/crm/docrender/internal/infrastructure/telemetry"
)

// DefaultRetention is how long jobs and PDFs are kept when not configured.
const DefaultRetention = 30 * 24 * time.Hour

// DocumentSource reads documents from the CRM and writes notes back to it.
type DocumentSource interface {
	GetDocument(ctx context.Context, kind document.Kind, id string) (*document.Document, error)
	AddNote(ctx context.Context, kind document.Kind, id string, note document.Note) error
}

// DocumentRenderer turns documents into HTML pages and PDFs.
type DocumentRenderer interface {
	ResolveStrategy(s printing.Strategy) (printing.Strategy, error)
	SelectBrand(doc *document.Document, code string) (infra.Brand, error)
	Preview(doc *document.Document, brandCode string) (*infra.PreviewResult, error)
	Render(ctx context.Context, doc *document.Document, opts infra.RenderOptions) (*infra.RenderResult, error)
}

// PrintService handles printing-related business operations
type PrintService struct {
	jobRepo        printing.PrintJobRepository
	documents      DocumentSource
	renderer       DocumentRenderer
	pdfStorage     storage.PDFStorage
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	metrics        *telemetry.RenderMetrics
	retention      time.Duration
	downloadPath   string
	logger         *zap.Logger
	now            func() time.Time
}

// Option configures optional PrintService collaborators.
type Option func(*PrintService)

// WithIdempotency enables Idempotency-Key handling on Generate.
func WithIdempotency(store shared.IdempotencyStore, ttl time.Duration) Option {
	return func(s *PrintService) {
		s.idempotency = store
		s.idempotencyTTL = ttl
	}
}

// WithRenderMetrics records render outcomes.
func WithRenderMetrics(m *telemetry.RenderMetrics) Option {
	return func(s *PrintService) { s.metrics = m }
}

// WithRetention sets how long jobs and PDFs are kept.
func WithRetention(d time.Duration) Option {
	return func(s *PrintService) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithDownloadPath serves PDFs whose storage has no public URL through
// {path}/{job id}/download instead.
func WithDownloadPath(path string) Option {
	return func(s *PrintService) { s.downloadPath = strings.TrimSuffix(path, "/") }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *PrintService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for notes and retention.
func WithClock(now func() time.Time) Option {
	return func(s *PrintService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPrintService creates a new PrintService
func NewPrintService(
	jobRepo printing.PrintJobRepository,
	documents DocumentSource,
	renderer DocumentRenderer,
	pdfStorage storage.PDFStorage,
	opts ...Option,
) *PrintService {
	s := &PrintService{
		jobRepo:        jobRepo,
		documents:      documents,
		renderer:       renderer,
		pdfStorage:     pdfStorage,
		idempotencyTTL: shared.DefaultIdempotencyConfig().TTL,
		retention:      DefaultRetention,
		logger:         zap.NewNop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// Preview and PDF Generation
// =============================================================================

// Preview assembles the HTML pages for a document without rendering a PDF
func (s *PrintService) Preview(ctx context.Context, req PreviewRequest) (*PreviewResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "print", "preview")
	defer span.End()

	doc, err := s.resolveDocument(ctx, req.DocumentSelector)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result, err := s.renderer.Preview(doc, req.Brand)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	pages := make([]PageResponse, len(result.Pages))
	for i, p := range result.Pages {
		pages[i] = PageResponse{Index: p.Index, HTML: p.HTML}
	}
	telemetry.SetOK(span)
	return &PreviewResponse{
		DocumentKind:   doc.Kind.String(),
		DocumentNumber: doc.Number(),
		Brand:          result.Brand.Code,
		FileName:       document.FileName(doc, false),
		Pages:          pages,
	}, nil
}

// Generate renders a PDF, stores it and records the print job. Render and
// storage failures leave the job FAILED and are returned to the caller.
func (s *PrintService) Generate(ctx context.Context, user shared.CurrentUser, req GenerateRequest) (*PrintJobResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "print", "generate",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, user.TenantID.String()))
	defer span.End()

	doc, err := s.resolveDocument(ctx, req.DocumentSelector)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	strategy, err := s.renderer.ResolveStrategy(printing.Strategy(strings.ToUpper(strings.TrimSpace(req.Strategy))))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	brand, err := s.renderer.SelectBrand(doc, req.Brand)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentKind, doc.Kind.String(),
		telemetry.SpanAttrDocumentNumber, doc.Number(),
		telemetry.SpanAttrStrategy, strategy.String(),
		telemetry.SpanAttrBrand, brand.Code,
	)

	job, err := printing.NewPrintJob(user.TenantID, doc.Kind, doc.ID, doc.Number(), brand.Code, strategy, user)
	if err != nil {
		return nil, err
	}

	if key := strings.TrimSpace(req.IdempotencyKey); key != "" && s.idempotency != nil {
		replay, err := s.claimIdempotencyKey(ctx, user.TenantID, key, job.ID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if replay != nil {
			telemetry.AddEvent(span, "idempotent.replay", telemetry.SpanAttrJobID, replay.ID)
			telemetry.SetOK(span)
			return replay, nil
		}
	}

	resp, err := s.runJob(ctx, job, doc, brand.Code)
	if err != nil {
		if key := strings.TrimSpace(req.IdempotencyKey); key != "" && s.idempotency != nil {
			if relErr := s.idempotency.Release(ctx, idempotencyKey(user.TenantID, key)); relErr != nil {
				s.logger.Warn("failed to release idempotency key", zap.Error(relErr))
			}
		}
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	return resp, nil
}

// runJob moves job through PENDING, RENDERING and COMPLETED or FAILED.
func (s *PrintService) runJob(ctx context.Context, job *printing.PrintJob, doc *document.Document, brandCode string) (*PrintJobResponse, error) {
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save print job: %w", err)
	}
	if err := job.StartRendering(); err != nil {
		return nil, err
	}
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update job status: %w", err)
	}

	start := s.now()
	result, err := s.renderer.Render(ctx, doc, infra.RenderOptions{Strategy: job.Strategy, BrandCode: brandCode})
	if err != nil {
		return nil, s.failJob(ctx, job, err, start)
	}

	storeCtx, storeSpan := telemetry.StartSpan(ctx, "print.store",
		telemetry.WithAttribute(telemetry.SpanAttrJobID, job.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrPageCount, result.PageCount))
	stored, err := s.pdfStorage.Store(storeCtx, &storage.StoreRequest{
		TenantID:  job.TenantID,
		JobID:     job.ID,
		PDFData:   result.PDFData,
		CreatedAt: job.CreatedAt,
	})
	if err != nil {
		telemetry.RecordError(storeSpan, err)
		storeSpan.End()
		return nil, s.failJob(ctx, job, infra.NewRenderError(infra.ErrCodeStorageFailed, "failed to store PDF", err), start)
	}
	telemetry.SetOK(storeSpan)
	storeSpan.End()

	if err := job.Complete(stored.Key, result.FileName, result.PageCount, stored.Size); err != nil {
		return nil, err
	}
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update job status: %w", err)
	}
	s.metrics.RecordSuccess(ctx, job.DocumentKind.String(), job.Strategy.String(), s.now().Sub(start), result.PageCount)

	s.logger.Info("PDF generated",
		zap.String("job_id", job.ID.String()),
		zap.String("document_kind", job.DocumentKind.String()),
		zap.String("document_number", job.DocumentNumber),
		zap.String("strategy", job.Strategy.String()),
		zap.Int("pages", job.PageCount),
		zap.String("key", stored.Key))

	resp := toJobResponse(job)
	resp.DownloadURL = s.downloadURL(job, stored.URL)
	return resp, nil
}

// failJob records cause on the job. The FAILED status replaces RENDERING on
// the same record.
func (s *PrintService) failJob(ctx context.Context, job *printing.PrintJob, cause error, start time.Time) error {
	code := infra.ErrorCode(cause)
	if code == "" {
		code = infra.ErrCodePDFWriteFailed
	}
	s.metrics.RecordFailure(ctx, job.DocumentKind.String(), job.Strategy.String(), code, s.now().Sub(start))

	s.logger.Error("print job failed",
		zap.String("job_id", job.ID.String()),
		zap.String("document_number", job.DocumentNumber),
		zap.String("error_code", code),
		zap.Error(cause))

	if err := job.Fail(code + ": " + cause.Error()); err != nil {
		return err
	}
	if err := s.jobRepo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save failed print job", zap.String("job_id", job.ID.String()), zap.Error(err))
	}
	return cause
}

// claimIdempotencyKey returns the earlier job when key was already used and
// that job has finished. A job still pending or rendering is a conflict.
func (s *PrintService) claimIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string, jobID uuid.UUID) (*PrintJobResponse, error) {
	held, stored, err := s.idempotency.Claim(ctx, idempotencyKey(tenantID, key), jobID.String(), s.idempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if stored {
		return nil, nil
	}

	earlierID, err := uuid.Parse(held)
	if err != nil {
		return nil, fmt.Errorf("corrupt idempotency entry: %w", err)
	}
	earlier, err := s.jobRepo.FindByIDForTenant(ctx, tenantID, earlierID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.NewDomainError("CONFLICT", "A request with this Idempotency-Key is still in progress")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get print job: %w", err)
	}
	if !earlier.Status.IsTerminal() {
		return nil, shared.NewDomainError("CONFLICT", "A request with this Idempotency-Key is still in progress")
	}
	resp := s.jobResponseWithURL(ctx, earlier)
	resp.Replayed = true
	return resp, nil
}

func idempotencyKey(tenantID uuid.UUID, key string) string {
	return "generate:" + tenantID.String() + ":" + key
}

// resolveDocument returns the inline document or fetches the referenced one.
func (s *PrintService) resolveDocument(ctx context.Context, sel DocumentSelector) (*document.Document, error) {
	if sel.Document != nil {
		doc := *sel.Document
		if sel.Kind != "" {
			kind, err := document.ParseKind(sel.Kind)
			if err != nil {
				return nil, err
			}
			doc.Kind = kind
		}
		if err := doc.Validate(); err != nil {
			return nil, err
		}
		if doc.ID == "" {
			doc.ID = sel.ID
		}
		return &doc, nil
	}

	if sel.Kind == "" || strings.TrimSpace(sel.ID) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Either document or kind and id are required")
	}
	kind, err := document.ParseKind(sel.Kind)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "crm.fetch_document",
		telemetry.WithAttribute(telemetry.SpanAttrDocumentKind, kind.String()),
		telemetry.WithAttribute(telemetry.SpanAttrDocumentID, sel.ID))
	defer span.End()

	doc, err := s.documents.GetDocument(ctx, kind, strings.TrimSpace(sel.ID))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	doc.Kind = kind
	telemetry.SetOK(span)
	return doc, nil
}

// =============================================================================
// Print Job Operations
// =============================================================================

// GetJob retrieves a print job by ID
func (s *PrintService) GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*PrintJobResponse, error) {
	job, err := s.findJob(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	return s.jobResponseWithURL(ctx, job), nil
}

// ListJobs retrieves a paginated list of print jobs
func (s *PrintService) ListJobs(ctx context.Context, user shared.CurrentUser, req ListJobsRequest) (*ListJobsResponse, error) {
	filter := printing.PrintJobFilter{
		Filter: shared.Filter{
			Page:     req.Page,
			PageSize: req.PageSize,
			OrderBy:  req.OrderBy,
			OrderDir: req.OrderDir,
		},
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = shared.DefaultFilter().PageSize
	}
	if req.Kind != "" {
		kind, err := document.ParseKind(req.Kind)
		if err != nil {
			return nil, err
		}
		filter.DocumentKind = &kind
	}
	if req.DocumentID != "" {
		filter.DocumentID = &req.DocumentID
	}
	if req.Status != "" {
		status := printing.JobStatus(strings.ToUpper(req.Status))
		if !status.IsValid() {
			return nil, shared.NewDomainError("INVALID_INPUT", "Invalid job status: "+req.Status)
		}
		filter.Status = &status
	}
	if req.Mine {
		filter.RequestedBy = &user.ID
	}

	jobs, err := s.jobRepo.FindAllForTenant(ctx, user.TenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	total, err := s.jobRepo.CountForTenant(ctx, user.TenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}

	items := make([]PrintJobResponse, len(jobs))
	for i := range jobs {
		items[i] = *toJobResponse(&jobs[i])
	}
	resp := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &resp, nil
}

// Download opens the stored PDF of a completed job
func (s *PrintService) Download(ctx context.Context, tenantID, jobID uuid.UUID) (*DownloadResult, error) {
	job, err := s.findJob(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	if !job.HasPDF() {
		return nil, shared.NewDomainError("INVALID_STATE", "PDF is not available for a job in status "+job.Status.String())
	}

	content, err := s.pdfStorage.Get(ctx, job.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "PDF file has expired or was removed")
		}
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	fileName := job.FileName
	if fileName == "" {
		fileName = document.DraftName + ".pdf"
	}
	return &DownloadResult{FileName: fileName, Size: job.FileSize, Content: content}, nil
}

func (s *PrintService) findJob(ctx context.Context, tenantID, jobID uuid.UUID) (*printing.PrintJob, error) {
	job, err := s.jobRepo.FindByIDForTenant(ctx, tenantID, jobID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Print job not found")
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *PrintService) jobResponseWithURL(ctx context.Context, job *printing.PrintJob) *PrintJobResponse {
	resp := toJobResponse(job)
	if job.HasPDF() {
		url, err := s.pdfStorage.GetURL(ctx, job.StorageKey)
		if err != nil {
			s.logger.Warn("failed to build download URL", zap.String("job_id", job.ID.String()), zap.Error(err))
		}
		resp.DownloadURL = s.downloadURL(job, url)
	}
	return resp
}

func (s *PrintService) downloadURL(job *printing.PrintJob, storageURL string) string {
	if s.downloadPath == "" || strings.HasPrefix(storageURL, "https://") || strings.HasPrefix(storageURL, "http://") {
		return storageURL
	}
	return s.downloadPath + "/" + job.ID.String() + "/download"
}

// =============================================================================
// Notes and Maintenance
// =============================================================================

// AddNote attaches a note written by user to a CRM document
func (s *PrintService) AddNote(ctx context.Context, user shared.CurrentUser, kind, id string, req AddNoteRequest) (*NoteResponse, error) {
	docKind, err := document.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Document id is required")
	}

	note, err := document.NewNote(req.Text, user, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.documents.AddNote(ctx, docKind, id, note); err != nil {
		return nil, err
	}

	s.logger.Info("note added",
		zap.String("document_kind", docKind.String()),
		zap.String("document_id", id),
		zap.String("author_id", user.ID.String()))
	return toNoteResponse(note), nil
}

// CleanupExpired deletes finished jobs and stored PDFs older than the
// retention period.
func (s *PrintService) CleanupExpired(ctx context.Context) (*CleanupResult, error) {
	cutoff := s.now().Add(-s.retention)

	jobs, err := s.jobRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired jobs: %w", err)
	}
	files, err := s.pdfStorage.CleanupOlderThan(ctx, s.retention)
	if err != nil {
		return &CleanupResult{JobsDeleted: jobs, FilesDeleted: files}, fmt.Errorf("failed to delete expired PDFs: %w", err)
	}

	s.logger.Info("retention cleanup finished",
		zap.Time("cutoff", cutoff),
		zap.Int64("jobs_deleted", jobs),
		zap.Int("files_deleted", files))
	return &CleanupResult{JobsDeleted: jobs, FilesDeleted: files}, nil
}
