package printing_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/crm/docrender/internal/application/printing"
	"github.com/crm/docrender/internal/domain/document"
	domain "github.com/crm/docrender/internal/domain/printing"
	"github.com/crm/docrender/internal/domain/shared"
	"github.com/crm/docrender/internal/infrastructure/cache"
	infra "github.com/crm/docrender/internal/infrastructure/printing"
	"github.com/crm/docrender/internal/infrastructure/storage"
)

// =============================================================================
// Test Doubles
// =============================================================================

// memoryJobRepo keeps jobs in a map and records every saved status.
type memoryJobRepo struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]domain.PrintJob
	statuses []domain.JobStatus
	saveErr  error
}

func newMemoryJobRepo() *memoryJobRepo {
	return &memoryJobRepo{jobs: map[uuid.UUID]domain.PrintJob{}}
}

func (r *memoryJobRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*domain.PrintJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return &job, nil
}

func (r *memoryJobRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter domain.PrintJobFilter) ([]domain.PrintJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PrintJob
	for _, job := range r.jobs {
		if job.TenantID != tenantID {
			continue
		}
		if filter.DocumentKind != nil && job.DocumentKind != *filter.DocumentKind {
			continue
		}
		if filter.Status != nil && job.Status != *filter.Status {
			continue
		}
		if filter.RequestedBy != nil && job.RequestedBy != *filter.RequestedBy {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

func (r *memoryJobRepo) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter domain.PrintJobFilter) (int64, error) {
	jobs, err := r.FindAllForTenant(ctx, tenantID, filter)
	return int64(len(jobs)), err
}

func (r *memoryJobRepo) Save(_ context.Context, job *domain.PrintJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.jobs[job.ID] = *job
	r.statuses = append(r.statuses, job.Status)
	return nil
}

func (r *memoryJobRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, job := range r.jobs {
		if job.Status.IsTerminal() && job.CreatedAt.Before(cutoff) {
			delete(r.jobs, id)
			n++
		}
	}
	return n, nil
}

type MockDocumentSource struct {
	mock.Mock
}

func (m *MockDocumentSource) GetDocument(ctx context.Context, kind document.Kind, id string) (*document.Document, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockDocumentSource) AddNote(ctx context.Context, kind document.Kind, id string, note document.Note) error {
	args := m.Called(ctx, kind, id, note)
	return args.Error(0)
}

type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) ResolveStrategy(s domain.Strategy) (domain.Strategy, error) {
	args := m.Called(s)
	return args.Get(0).(domain.Strategy), args.Error(1)
}

func (m *MockRenderer) SelectBrand(doc *document.Document, code string) (infra.Brand, error) {
	args := m.Called(doc, code)
	return args.Get(0).(infra.Brand), args.Error(1)
}

func (m *MockRenderer) Preview(doc *document.Document, brandCode string) (*infra.PreviewResult, error) {
	args := m.Called(doc, brandCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.PreviewResult), args.Error(1)
}

func (m *MockRenderer) Render(ctx context.Context, doc *document.Document, opts infra.RenderOptions) (*infra.RenderResult, error) {
	args := m.Called(ctx, doc, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.RenderResult), args.Error(1)
}

type MockPDFStorage struct {
	mock.Mock
}

func (m *MockPDFStorage) Store(ctx context.Context, req *storage.StoreRequest) (*storage.StoreResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.StoreResult), args.Error(1)
}

func (m *MockPDFStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockPDFStorage) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockPDFStorage) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	args := m.Called(ctx, age)
	return args.Int(0), args.Error(1)
}

func (m *MockPDFStorage) GetURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

// =============================================================================
// Fixtures
// =============================================================================

var fixedNow = time.Date(2026, 10, 14, 10, 30, 0, 0, time.UTC)

type fixture struct {
	repo      *memoryJobRepo
	documents *MockDocumentSource
	renderer  *MockRenderer
	storage   *MockPDFStorage
	service   *printing.PrintService
	user      shared.CurrentUser
}

func newFixture(t *testing.T, opts ...printing.Option) *fixture {
	f := &fixture{
		repo:      newMemoryJobRepo(),
		documents: new(MockDocumentSource),
		renderer:  new(MockRenderer),
		storage:   new(MockPDFStorage),
		user: shared.CurrentUser{
			ID:       uuid.New(),
			TenantID: uuid.New(),
			Username: "meena",
			Name:     "Meena Raghavan",
		},
	}
	opts = append([]printing.Option{
		printing.WithLogger(zaptest.NewLogger(t)),
		printing.WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	f.service = printing.NewPrintService(f.repo, f.documents, f.renderer, f.storage, opts...)
	return f
}

func sampleDoc() *document.Document {
	return &document.Document{
		Kind:            document.KindQuotation,
		ID:              "665f1c2e9b1d4a0012ab34cd",
		QuotationNumber: "QT/2026/041",
		BusinessName:    "Kaveri Textiles",
	}
}

func (f *fixture) expectRender(result *infra.RenderResult, err error) *mock.Call {
	f.renderer.On("ResolveStrategy", mock.Anything).Return(domain.StrategyVector, nil)
	f.renderer.On("SelectBrand", mock.Anything, mock.Anything).Return(infra.Brand{Code: "sundaram"}, nil)
	return f.renderer.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(result, err)
}

func renderResult() *infra.RenderResult {
	return &infra.RenderResult{
		PDFData:   []byte("%PDF-1.7 test"),
		PageCount: 2,
		FileName:  "QT-2026-041.pdf",
		Strategy:  domain.StrategyVector,
	}
}

// =============================================================================
// Generate
// =============================================================================

func TestPrintService_Generate_Inline(t *testing.T) {
	f := newFixture(t)
	f.expectRender(renderResult(), nil)
	f.storage.On("Store", mock.Anything, mock.MatchedBy(func(req *storage.StoreRequest) bool {
		return req.TenantID == f.user.TenantID && string(req.PDFData) == "%PDF-1.7 test"
	})).Return(&storage.StoreResult{Key: "t/2026/10/j.pdf", URL: "file:///data/t/2026/10/j.pdf", Size: 13}, nil)

	resp, err := f.service.Generate(context.Background(), f.user, printing.GenerateRequest{
		DocumentSelector: printing.DocumentSelector{Document: sampleDoc()},
	})
	require.NoError(t, err)

	assert.Equal(t, "COMPLETED", resp.Status)
	assert.Equal(t, "quotation", resp.DocumentKind)
	assert.Equal(t, "QT/2026/041", resp.DocumentNumber)
	assert.Equal(t, "sundaram", resp.Brand)
	assert.Equal(t, "VECTOR", resp.Strategy)
	assert.Equal(t, 2, resp.PageCount)
	assert.Equal(t, int64(13), resp.FileSize)
	assert.Equal(t, "QT-2026-041.pdf", resp.FileName)
	assert.Equal(t, "file:///data/t/2026/10/j.pdf", resp.DownloadURL)
	assert.Equal(t, f.user.ID.String(), resp.RequestedBy)

	assert.Equal(t, []domain.JobStatus{domain.JobStatusPending, domain.JobStatusRendering, domain.JobStatusCompleted}, f.repo.statuses)
	f.documents.AssertNotCalled(t, "GetDocument", mock.Anything, mock.Anything, mock.Anything)
}

func TestPrintService_Generate_ByReference(t *testing.T) {
	f := newFixture(t)
	doc := sampleDoc()
	doc.Kind = ""
	f.documents.On("GetDocument", mock.Anything, document.KindInvoice, "inv-1").Return(doc, nil)
	f.expectRender(renderResult(), nil)
	f.storage.On("Store", mock.Anything, mock.Anything).Return(&storage.StoreResult{Key: "k.pdf", Size: 13}, nil)

	resp, err := f.service.Generate(context.Background(), f.user, printing.GenerateRequest{
		DocumentSelector: printing.DocumentSelector{Kind: "Invoice", ID: " inv-1 "},
	})
	require.NoError(t, err)
	assert.Equal(t, "invoice", resp.DocumentKind)
	f.documents.AssertExpectations(t)
}

func TestPrintService_Generate_RenderFailure(t *testing.T) {
	f := newFixture(t)
	f.expectRender(nil, infra.NewRenderError(infra.ErrCodeRenderTimeout, "render timed out", context.DeadlineExceeded))

	_, err := f.service.Generate(context.Background(), f.user, printing.GenerateRequest{
		DocumentSelector: printing.DocumentSelector{Document: sampleDoc()},
	})
	require.Error(t, err)
	assert.Equal(t, infra.ErrCodeRenderTimeout, infra.ErrorCode(err))

	assert.Equal(t, []domain.JobStatus{domain.JobStatusPending, domain.JobStatusRendering, domain.JobStatusFailed}, f.repo.statuses)
	require.Len(t, f.repo.jobs, 1)
	for _, job := range f.repo.jobs {
		assert.True(t, strings.HasPrefix(job.ErrorMessage, "RENDER_TIMEOUT: "))
		assert.Empty(t, job.StorageKey)
	}
	f.storage.AssertNotCalled(t, "Store", mock.Anything, mock.Anything)
}

func TestPrintService_Generate_StorageFailure(t *testing.T) {
	f := newFixture(t)
	f.expectRender(renderResult(), nil)
	f.storage.On("Store", mock.Anything, mock.Anything).Return(nil, errors.New("disk full"))

	_, err := f.service.Generate(context.Background(), f.user, printing.GenerateRequest{
		DocumentSelector: printing.DocumentSelector{Document: sampleDoc()},
	})
	require.Error(t, err)
	assert.Equal(t, infra.ErrCodeStorageFailed, infra.ErrorCode(err))
	assert.Equal(t, domain.JobStatusFailed, f.repo.statuses[len(f.repo.statuses)-1])
}

func TestPrintService_Generate_InvalidInput(t *testing.T) {
	f := newFixture(t)

	t.Run("no document and no reference", func(t *testing.T) {
		_, err := f.service.Generate(context.Background(), f.user, printing.GenerateRequest{})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("inline document without kind", func(t *testing.T) {
		doc := sampleDoc()
		doc.Kind = ""
		_, err := f.service.Generate(context.Background(), f.user, printing.GenerateRequest{
			DocumentSelector: printing.DocumentSelector{Document: doc},
		})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_DOCUMENT_KIND", domainErr.Code)
	})

	t.Run("unavailable strategy", func(t *testing.T) {
		f.renderer.On("ResolveStrategy", domain.StrategyRaster).
			Return(domain.Strategy(""), infra.NewRenderError(infra.ErrCodeBrowserUnavailable, "strategy RASTER is not available", nil)).Once()
		_, err := f.service.Generate(context.Background(), f.user, printing.GenerateRequest{
			DocumentSelector: printing.DocumentSelector{Document: sampleDoc()},
			Strategy:         "raster",
		})
		assert.Equal(t, infra.ErrCodeBrowserUnavailable, infra.ErrorCode(err))
	})

	assert.Empty(t, f.repo.jobs)
}

func TestPrintService_Generate_Idempotency(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	t.Run("repeated key replays the first job", func(t *testing.T) {
		f := newFixture(t, printing.WithIdempotency(store, time.Hour))
		f.expectRender(renderResult(), nil).Once()
		f.storage.On("Store", mock.Anything, mock.Anything).Return(&storage.StoreResult{Key: "k.pdf", Size: 13}, nil).Once()
		f.storage.On("GetURL", mock.Anything, "k.pdf").Return("file:///k.pdf", nil)

		req := printing.GenerateRequest{
			DocumentSelector: printing.DocumentSelector{Document: sampleDoc()},
			IdempotencyKey:   "req-1",
		}
		first, err := f.service.Generate(context.Background(), f.user, req)
		require.NoError(t, err)
		second, err := f.service.Generate(context.Background(), f.user, req)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.False(t, first.Replayed)
		assert.True(t, second.Replayed)
		assert.Equal(t, "file:///k.pdf", second.DownloadURL)
		f.renderer.AssertNumberOfCalls(t, "Render", 1)
	})

	t.Run("failed request releases the key", func(t *testing.T) {
		f := newFixture(t, printing.WithIdempotency(store, time.Hour))
		f.expectRender(nil, infra.NewRenderError(infra.ErrCodeRasterizeFailed, "boom", nil)).Once()
		f.renderer.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(renderResult(), nil).Once()
		f.storage.On("Store", mock.Anything, mock.Anything).Return(&storage.StoreResult{Key: "k.pdf", Size: 13}, nil)

		req := printing.GenerateRequest{
			DocumentSelector: printing.DocumentSelector{Document: sampleDoc()},
			IdempotencyKey:   "req-2",
		}
		_, err := f.service.Generate(context.Background(), f.user, req)
		require.Error(t, err)
		resp, err := f.service.Generate(context.Background(), f.user, req)
		require.NoError(t, err)
		assert.Equal(t, "COMPLETED", resp.Status)
	})

	t.Run("duplicate while rendering conflicts", func(t *testing.T) {
		f := newFixture(t, printing.WithIdempotency(store, time.Hour))
		rendering := make(chan struct{})
		release := make(chan struct{})
		f.expectRender(renderResult(), nil).Once().Run(func(mock.Arguments) {
			close(rendering)
			<-release
		})
		f.storage.On("Store", mock.Anything, mock.Anything).Return(&storage.StoreResult{Key: "k.pdf", Size: 13}, nil).Once()

		req := printing.GenerateRequest{
			DocumentSelector: printing.DocumentSelector{Document: sampleDoc()},
			IdempotencyKey:   "req-3",
		}
		done := make(chan error, 1)
		go func() {
			_, err := f.service.Generate(context.Background(), f.user, req)
			done <- err
		}()
		<-rendering

		_, err := f.service.Generate(context.Background(), f.user, req)
		close(release)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "CONFLICT", domainErr.Code)

		require.NoError(t, <-done)
		f.renderer.AssertNumberOfCalls(t, "Render", 1)
	})

	t.Run("keys are scoped per tenant", func(t *testing.T) {
		f := newFixture(t, printing.WithIdempotency(store, time.Hour))
		f.expectRender(renderResult(), nil)
		f.storage.On("Store", mock.Anything, mock.Anything).Return(&storage.StoreResult{Key: "k.pdf", Size: 13}, nil)

		req := printing.GenerateRequest{
			DocumentSelector: printing.DocumentSelector{Document: sampleDoc()},
			IdempotencyKey:   "req-1",
		}
		resp, err := f.service.Generate(context.Background(), f.user, req)
		require.NoError(t, err)
		assert.False(t, resp.Replayed)
	})
}

// =============================================================================
// Preview
// =============================================================================

func TestPrintService_Preview(t *testing.T) {
	f := newFixture(t)
	f.renderer.On("Preview", mock.Anything, "nimbus").Return(&infra.PreviewResult{
		Pages: []infra.Page{{Index: 0, HTML: "<div>one</div>"}, {Index: 1, HTML: "<div>terms</div>"}},
		Brand: infra.Brand{Code: "nimbus"},
	}, nil)

	resp, err := f.service.Preview(context.Background(), printing.PreviewRequest{
		DocumentSelector: printing.DocumentSelector{Document: sampleDoc()},
		Brand:            "nimbus",
	})
	require.NoError(t, err)
	assert.Equal(t, "nimbus", resp.Brand)
	assert.Equal(t, "QT-2026-041.pdf", resp.FileName)
	require.Len(t, resp.Pages, 2)
	assert.Equal(t, 1, resp.Pages[1].Index)
	assert.Empty(t, f.repo.jobs)
}

func TestPrintService_Preview_UpstreamError(t *testing.T) {
	f := newFixture(t)
	f.documents.On("GetDocument", mock.Anything, document.KindQuotation, "missing").Return(nil, shared.ErrNotFound)

	_, err := f.service.Preview(context.Background(), printing.PreviewRequest{
		DocumentSelector: printing.DocumentSelector{Kind: "quotation", ID: "missing"},
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

// =============================================================================
// Jobs
// =============================================================================

func seedJob(t *testing.T, f *fixture, status domain.JobStatus, user shared.CurrentUser) *domain.PrintJob {
	t.Helper()
	job, err := domain.NewPrintJob(user.TenantID, document.KindInvoice, "inv-1", "INV-7", "sundaram", domain.StrategyVector, user)
	require.NoError(t, err)
	switch status {
	case domain.JobStatusCompleted:
		require.NoError(t, job.StartRendering())
		require.NoError(t, job.Complete("t/2026/10/"+job.ID.String()+".pdf", "INV-7.pdf", 1, 42))
	case domain.JobStatusFailed:
		require.NoError(t, job.Fail("RASTERIZE_FAILED: boom"))
	}
	require.NoError(t, f.repo.Save(context.Background(), job))
	return job
}

func TestPrintService_GetJob(t *testing.T) {
	f := newFixture(t)
	job := seedJob(t, f, domain.JobStatusCompleted, f.user)
	f.storage.On("GetURL", mock.Anything, job.StorageKey).Return("https://s3/presigned", nil)

	resp, err := f.service.GetJob(context.Background(), f.user.TenantID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://s3/presigned", resp.DownloadURL)

	_, err = f.service.GetJob(context.Background(), uuid.New(), job.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPrintService_GetJob_DownloadPath(t *testing.T) {
	f := newFixture(t, printing.WithDownloadPath("/api/v1/print/jobs/"))
	job := seedJob(t, f, domain.JobStatusCompleted, f.user)
	f.storage.On("GetURL", mock.Anything, job.StorageKey).Return("file:///data/"+job.StorageKey, nil).Once()

	resp, err := f.service.GetJob(context.Background(), f.user.TenantID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/print/jobs/"+job.ID.String()+"/download", resp.DownloadURL)

	f.storage.On("GetURL", mock.Anything, job.StorageKey).Return("https://s3/presigned", nil).Once()
	resp, err = f.service.GetJob(context.Background(), f.user.TenantID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://s3/presigned", resp.DownloadURL)
}

func TestPrintService_ListJobs(t *testing.T) {
	f := newFixture(t)
	other := shared.CurrentUser{ID: uuid.New(), TenantID: f.user.TenantID, Username: "ravi"}
	seedJob(t, f, domain.JobStatusCompleted, f.user)
	seedJob(t, f, domain.JobStatusFailed, f.user)
	seedJob(t, f, domain.JobStatusCompleted, other)

	resp, err := f.service.ListJobs(context.Background(), f.user, printing.ListJobsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.PageSize)

	resp, err = f.service.ListJobs(context.Background(), f.user, printing.ListJobsRequest{Mine: true, Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Total)

	_, err = f.service.ListJobs(context.Background(), f.user, printing.ListJobsRequest{Status: "LOST"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestPrintService_Download(t *testing.T) {
	f := newFixture(t)

	t.Run("completed job", func(t *testing.T) {
		job := seedJob(t, f, domain.JobStatusCompleted, f.user)
		f.storage.On("Get", mock.Anything, job.StorageKey).Return(io.NopCloser(strings.NewReader("%PDF")), nil).Once()

		result, err := f.service.Download(context.Background(), f.user.TenantID, job.ID)
		require.NoError(t, err)
		defer result.Content.Close()
		assert.Equal(t, "INV-7.pdf", result.FileName)
		data, err := io.ReadAll(result.Content)
		require.NoError(t, err)
		assert.Equal(t, "%PDF", string(data))
	})

	t.Run("failed job has no PDF", func(t *testing.T) {
		job := seedJob(t, f, domain.JobStatusFailed, f.user)
		_, err := f.service.Download(context.Background(), f.user.TenantID, job.ID)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("expired file", func(t *testing.T) {
		job := seedJob(t, f, domain.JobStatusCompleted, f.user)
		f.storage.On("Get", mock.Anything, job.StorageKey).Return(nil, storage.ErrNotFound).Once()
		_, err := f.service.Download(context.Background(), f.user.TenantID, job.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

// =============================================================================
// Notes and Cleanup
// =============================================================================

func TestPrintService_AddNote(t *testing.T) {
	f := newFixture(t)
	f.documents.On("AddNote", mock.Anything, document.KindQuotation, "q-1", mock.MatchedBy(func(n document.Note) bool {
		return n.Text == "Customer asked for revised rates" &&
			n.Author == "Meena Raghavan" &&
			n.Timestamp.Equal(fixedNow) &&
			n.AuthorID != nil && *n.AuthorID == f.user.ID
	})).Return(nil)

	resp, err := f.service.AddNote(context.Background(), f.user, "quotation", "q-1",
		printing.AddNoteRequest{Text: "  Customer asked for revised rates  "})
	require.NoError(t, err)
	assert.Equal(t, "Meena Raghavan", resp.Author)
	assert.Equal(t, f.user.ID.String(), resp.AuthorID)
	f.documents.AssertExpectations(t)

	_, err = f.service.AddNote(context.Background(), f.user, "receipt", "q-1", printing.AddNoteRequest{Text: "x"})
	assert.Error(t, err)

	_, err = f.service.AddNote(context.Background(), f.user, "quotation", "q-1", printing.AddNoteRequest{Text: "   "})
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_NOTE", domainErr.Code)
}

func TestPrintService_CleanupExpired(t *testing.T) {
	f := newFixture(t, printing.WithRetention(7*24*time.Hour))
	old := seedJob(t, f, domain.JobStatusCompleted, f.user)
	old.CreatedAt = fixedNow.Add(-10 * 24 * time.Hour)
	require.NoError(t, f.repo.Save(context.Background(), old))
	fresh := seedJob(t, f, domain.JobStatusCompleted, f.user)
	fresh.CreatedAt = fixedNow.Add(-time.Hour)
	require.NoError(t, f.repo.Save(context.Background(), fresh))
	f.storage.On("CleanupOlderThan", mock.Anything, 7*24*time.Hour).Return(3, nil)

	result, err := f.service.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.JobsDeleted)
	assert.Equal(t, 3, result.FilesDeleted)
}
