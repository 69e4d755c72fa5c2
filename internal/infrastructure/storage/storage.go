// Package storage keeps generated PDFs on the local file system or in an S3
// compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crm/docrender/internal/infrastructure/config"
)

// Backends
const (
	BackendFileSystem = "filesystem"
	BackendS3         = "s3"
)

var (
	// ErrNotFound is returned when no PDF is stored under a key.
	ErrNotFound = errors.New("stored PDF not found")
	// ErrInvalidKey is returned for keys that are empty or escape the storage root.
	ErrInvalidKey = errors.New("invalid storage key")
)

// PDFStorage stores and serves generated PDFs.
type PDFStorage interface {
	// Store saves a PDF and returns its key
	Store(ctx context.Context, req *StoreRequest) (*StoreResult, error)
	// Get opens a stored PDF
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes a stored PDF. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	// CleanupOlderThan removes PDFs stored before now minus age
	CleanupOlderThan(ctx context.Context, age time.Duration) (int, error)
	// GetURL returns a URL the PDF can be downloaded from
	GetURL(ctx context.Context, key string) (string, error)
}

// StoreRequest contains the parameters for storing a PDF
type StoreRequest struct {
	TenantID uuid.UUID
	JobID    uuid.UUID
	PDFData  []byte
	// CreatedAt places the object in its year and month; zero means now
	CreatedAt time.Time
}

// StoreResult contains the result of storing a PDF
type StoreResult struct {
	Key  string
	URL  string
	Size int64
}

func (r *StoreRequest) validate() error {
	if r == nil {
		return errors.New("store request is nil")
	}
	if r.TenantID == uuid.Nil {
		return errors.New("tenant ID is required")
	}
	if r.JobID == uuid.Nil {
		return errors.New("job ID is required")
	}
	if len(r.PDFData) == 0 {
		return errors.New("PDF data is empty")
	}
	return nil
}

// ObjectKey returns {tenant}/{yyyy}/{mm}/{job}.pdf.
func ObjectKey(tenantID, jobID uuid.UUID, at time.Time) string {
	return path.Join(
		tenantID.String(),
		fmt.Sprintf("%04d", at.Year()),
		fmt.Sprintf("%02d", int(at.Month())),
		jobID.String()+".pdf",
	)
}

// CleanKey normalises key to forward slashes and rejects absolute keys and
// keys with ".." components.
func CleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrInvalidKey
	}
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '/' || r == '\\' })
	if slices.Contains(parts, "..") || strings.HasPrefix(key, "/") || strings.HasPrefix(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(strings.Join(parts, "/"))
	if cleaned == "." {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// New creates the storage selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (PDFStorage, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendFileSystem:
		return NewFileSystemStorage(&FileSystemStorageConfig{
			BasePath: cfg.BasePath,
			BaseURL:  cfg.BaseURL,
			Logger:   logger,
		})
	case BackendS3:
		s, err := NewS3Storage(ctx, &cfg.S3, WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
