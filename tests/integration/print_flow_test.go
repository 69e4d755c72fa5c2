package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	printapp "github.com/crm/docrender/internal/application/printing"
	"github.com/crm/docrender/internal/domain/shared"
	"github.com/crm/docrender/internal/infrastructure/auth"
	"github.com/crm/docrender/internal/infrastructure/cache"
	"github.com/crm/docrender/internal/infrastructure/config"
	"github.com/crm/docrender/internal/infrastructure/crmapi"
	"github.com/crm/docrender/internal/infrastructure/persistence"
	"github.com/crm/docrender/internal/infrastructure/printing"
	"github.com/crm/docrender/internal/infrastructure/storage"
	"github.com/crm/docrender/internal/interfaces/http/dto"
	"github.com/crm/docrender/internal/interfaces/http/handler"
	"github.com/crm/docrender/internal/interfaces/http/middleware"
	"github.com/crm/docrender/internal/interfaces/http/router"
)

const quotationJSON = `{
	"_id": "q1",
	"quotationNumber": "QT/2026/041",
	"date": "2026-10-02T00:00:00.000Z",
	"businessId": {"_id": "b1", "businessName": "Kaveri Textiles", "contactName": "Meena", "gstin": "33ABCDE1234F1Z5"},
	"items": [
		{"productName": "Managed router", "quantity": 2, "rate": 1500},
		{"productName": "Installation", "quantity": 1, "rate": "1250.50"}
	],
	"gstType": "intrastate"
}`

// fakeCRM serves one quotation and records notes posted to it
type fakeCRM struct {
	mu    sync.Mutex
	notes []map[string]any
}

func (f *fakeCRM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.Method + " " + r.URL.Path {
	case "GET /api/quotations/q1":
		_, _ = io.WriteString(w, quotationJSON)
	case "POST /api/quotations/q1/notes":
		var note map[string]any
		_ = json.NewDecoder(r.Body).Decode(&note)
		f.mu.Lock()
		f.notes = append(f.notes, note)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"success":true}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"not found"}`)
	}
}

type flowEnv struct {
	engine *gin.Engine
	crm    *fakeCRM
	token  string
}

func setupFlow(t *testing.T) *flowEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)

	tdb := NewSharedTestDB(t)
	tdb.CleanTables()

	crm := &fakeCRM{}
	crmServer := httptest.NewServer(crm)
	t.Cleanup(crmServer.Close)
	crmClient, err := crmapi.NewClient(config.CRMConfig{
		BaseURL:      crmServer.URL,
		Timeout:      5 * time.Second,
		ServiceToken: "service-token",
	}, crmapi.WithLogger(log))
	require.NoError(t, err)

	stack, err := printing.NewStack(config.RendererConfig{
		DefaultStrategy: "VECTOR",
		PaperSize:       "A4",
		MarginMM:        10,
		Timeout:         30 * time.Second,
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stack.Close() })

	pdfStorage, err := storage.New(t.Context(), config.StorageConfig{BasePath: t.TempDir()}, log)
	require.NoError(t, err)

	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	engine := gin.New()
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	svc := printapp.NewPrintService(
		persistence.NewGormPrintJobRepository(tdb.DB),
		crmClient,
		stack.Renderer,
		pdfStorage,
		printapp.WithLogger(log),
		printapp.WithIdempotency(store, time.Hour),
		printapp.WithDownloadPath(r.BasePath()+"/print/jobs"),
	)

	require.NoError(t, middleware.SetupValidator())
	jwtService := auth.NewJWTService(config.JWTConfig{Secret: "integration-secret", Issuer: "crm"})
	authMiddleware := middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		Validator: jwtService,
		Logger:    log,
	})
	engine.Use(middleware.RequestID())
	h := handler.NewPrintHandler(svc)
	r.Register(handler.PrintRoutes(h, authMiddleware, nil)).
		Register(handler.DocumentRoutes(h, authMiddleware)).
		Setup()

	token, err := jwtService.GenerateToken(shared.CurrentUser{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Username: "meena",
		Name:     "Meena Raghavan",
	}, time.Hour)
	require.NoError(t, err)

	return &flowEnv{engine: engine, crm: crm, token: token}
}

func (e *flowEnv) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Bearer "+e.token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) *dto.Response {
	t.Helper()
	var resp dto.Response
	resp.Data = out
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return &resp
}

func TestPrintFlow_GenerateDownloadList(t *testing.T) {
	skipShort(t)
	env := setupFlow(t)

	w := env.do(http.MethodPost, "/api/v1/print/generate", `{"kind":"quotation","id":"q1"}`,
		middleware.IdempotencyKeyHeader, "quote-41")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var job printapp.PrintJobResponse
	decodeData(t, w, &job)
	assert.Equal(t, "COMPLETED", job.Status)
	assert.Equal(t, "VECTOR", job.Strategy)
	assert.Equal(t, "QT/2026/041", job.DocumentNumber)
	assert.Equal(t, "sundaram", job.Brand)
	assert.Equal(t, 1, job.PageCount)
	assert.Equal(t, "/api/v1/print/jobs/"+job.ID+"/download", job.DownloadURL)

	t.Run("retry with the same key replays the job", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/v1/print/generate", `{"kind":"quotation","id":"q1"}`,
			middleware.IdempotencyKeyHeader, "quote-41")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "true", w.Header().Get(handler.IdempotentReplayedHeader))

		var replay printapp.PrintJobResponse
		decodeData(t, w, &replay)
		assert.Equal(t, job.ID, replay.ID)
	})

	t.Run("download serves the stored PDF", func(t *testing.T) {
		w := env.do(http.MethodGet, job.DownloadURL, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), job.FileName)
		assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
		assert.Equal(t, job.FileSize, int64(w.Body.Len()))

		pages, err := printing.CountPages(w.Body.Bytes())
		require.NoError(t, err)
		assert.Equal(t, job.PageCount, pages)
	})

	t.Run("history lists the job once", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/print/jobs?kind=quotation", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var jobs []printapp.PrintJobResponse
		resp := decodeData(t, w, &jobs)
		require.Len(t, jobs, 1)
		assert.Equal(t, job.ID, jobs[0].ID)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(1), resp.Meta.Total)
	})
}

func TestPrintFlow_PreviewAndNotes(t *testing.T) {
	skipShort(t)
	env := setupFlow(t)

	w := env.do(http.MethodPost, "/api/v1/print/preview", `{"kind":"quotation","id":"q1","brand":"nimbus"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var preview printapp.PreviewResponse
	decodeData(t, w, &preview)
	assert.Equal(t, "QT/2026/041", preview.DocumentNumber)
	require.NotEmpty(t, preview.Pages)
	assert.Contains(t, preview.Pages[0].HTML, "Kaveri Textiles")

	w = env.do(http.MethodPost, "/api/v1/documents/quotation/q1/notes", `{"text":"Customer asked for a revised quote"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var note printapp.NoteResponse
	decodeData(t, w, &note)
	assert.Equal(t, "Meena Raghavan", note.Author)

	env.crm.mu.Lock()
	defer env.crm.mu.Unlock()
	require.Len(t, env.crm.notes, 1)
	assert.Equal(t, "Customer asked for a revised quote", env.crm.notes[0]["text"])
}

func TestPrintFlow_RequiresToken(t *testing.T) {
	skipShort(t)
	env := setupFlow(t)
	env.token = "not-a-jwt"

	w := env.do(http.MethodGet, "/api/v1/print/jobs", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
