package printing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crm/docrender/internal/domain/document"
	"github.com/crm/docrender/internal/domain/shared"
)

func testUser() shared.CurrentUser {
	return shared.CurrentUser{ID: uuid.New(), Username: "sales.rep"}
}

func newTestJob(t *testing.T) *PrintJob {
	t.Helper()
	job, err := NewPrintJob(uuid.New(), document.KindQuotation, "q1", "QT-001", "classic", StrategyRaster, testUser())
	require.NoError(t, err)
	return job
}

func TestNewPrintJob(t *testing.T) {
	tenantID := uuid.New()
	user := testUser()

	tests := []struct {
		name        string
		tenantID    uuid.UUID
		kind        document.Kind
		number      string
		brand       string
		strategy    Strategy
		user        shared.CurrentUser
		expectError bool
		errorMsg    string
	}{
		{
			name:     "valid print job",
			tenantID: tenantID,
			kind:     document.KindInvoice,
			number:   "INV-9",
			brand:    "classic",
			strategy: StrategyVector,
			user:     user,
		},
		{
			name:        "nil tenant",
			tenantID:    uuid.Nil,
			kind:        document.KindInvoice,
			brand:       "classic",
			strategy:    StrategyVector,
			user:        user,
			expectError: true,
			errorMsg:    "Tenant ID cannot be empty",
		},
		{
			name:        "invalid kind",
			tenantID:    tenantID,
			kind:        document.Kind("memo"),
			brand:       "classic",
			strategy:    StrategyVector,
			user:        user,
			expectError: true,
			errorMsg:    "Invalid document kind",
		},
		{
			name:        "invalid strategy",
			tenantID:    tenantID,
			kind:        document.KindQuotation,
			brand:       "classic",
			strategy:    Strategy("FAX"),
			user:        user,
			expectError: true,
			errorMsg:    "Invalid strategy",
		},
		{
			name:        "missing user",
			tenantID:    tenantID,
			kind:        document.KindQuotation,
			brand:       "classic",
			strategy:    StrategyRaster,
			expectError: true,
			errorMsg:    "Requesting user is required",
		},
		{
			name:        "missing brand",
			tenantID:    tenantID,
			kind:        document.KindQuotation,
			strategy:    StrategyRaster,
			user:        user,
			expectError: true,
			errorMsg:    "Brand cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := NewPrintJob(tt.tenantID, tt.kind, "doc-1", tt.number, tt.brand, tt.strategy, tt.user)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				assert.Nil(t, job)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, JobStatusPending, job.Status)
			assert.Equal(t, tt.user.ID, job.RequestedBy)
			assert.Equal(t, tt.user.ID, *job.CreatedBy)
			assert.Equal(t, tt.tenantID, job.TenantID)
			assert.Equal(t, 1, job.Version)
		})
	}
}

func TestNewPrintJob_DraftNumber(t *testing.T) {
	job, err := NewPrintJob(uuid.New(), document.KindQuotation, "", " ", "modern", StrategyRaster, testUser())
	require.NoError(t, err)
	assert.Equal(t, "draft", job.DocumentNumber)
}

func TestPrintJob_Lifecycle(t *testing.T) {
	t.Run("pending to completed", func(t *testing.T) {
		job := newTestJob(t)
		require.NoError(t, job.StartRendering())
		assert.Equal(t, JobStatusRendering, job.Status)
		assert.NotNil(t, job.StartedAt)

		require.NoError(t, job.Complete("t/2026/10/x.pdf", "QT-001.pdf", 2, 2048))
		assert.True(t, job.IsCompleted())
		assert.True(t, job.HasPDF())
		assert.Equal(t, 2, job.PageCount)
		assert.Equal(t, 3, job.Version)
		assert.GreaterOrEqual(t, job.Duration().Nanoseconds(), int64(0))
	})

	t.Run("rendering to failed replaces status", func(t *testing.T) {
		job := newTestJob(t)
		require.NoError(t, job.StartRendering())
		require.NoError(t, job.Fail("rasterize failed"))
		assert.True(t, job.IsFailed())
		assert.Equal(t, "rasterize failed", job.ErrorMessage)
		assert.False(t, job.HasPDF())
	})

	t.Run("cannot complete a pending job", func(t *testing.T) {
		job := newTestJob(t)
		err := job.Complete("key", "a.pdf", 1, 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Cannot complete")
	})

	t.Run("completed job needs storage and pages", func(t *testing.T) {
		job := newTestJob(t)
		require.NoError(t, job.StartRendering())
		assert.Error(t, job.Complete("", "a.pdf", 1, 10))
		assert.Error(t, job.Complete("key", "a.pdf", 0, 10))
	})

	t.Run("terminal jobs cannot fail again", func(t *testing.T) {
		job := newTestJob(t)
		require.NoError(t, job.Fail("boom"))
		assert.Error(t, job.Fail("again"))
		assert.Error(t, job.StartRendering())
		assert.True(t, job.IsTerminal())
	})
}
