package printing

import (
	"context"
	"errors"
)

// RenderError represents an error during PDF rendering
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for rendering failures
const (
	ErrCodeInvalidDocument    = "INVALID_DOCUMENT"
	ErrCodeTemplateFailed     = "TEMPLATE_FAILED"
	ErrCodeRasterizeFailed    = "RASTERIZE_FAILED"
	ErrCodeImageDecodeFailed  = "IMAGE_DECODE_FAILED"
	ErrCodePDFWriteFailed     = "PDF_WRITE_FAILED"
	ErrCodeBrowserUnavailable = "BROWSER_UNAVAILABLE"
	ErrCodeRenderTimeout      = "RENDER_TIMEOUT"
	ErrCodeStorageFailed      = "STORAGE_FAILED"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCode returns the render error code carried by err, or "" when err is
// not a RenderError.
func ErrorCode(err error) string {
	var re *RenderError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// timeoutOr returns a RENDER_TIMEOUT error when ctx has ended and a render
// error with the given code otherwise.
func timeoutOr(ctx context.Context, code, message string, cause error) *RenderError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return NewRenderError(ErrCodeRenderTimeout, message+": deadline exceeded", cause)
		}
		return NewRenderError(ErrCodeRenderTimeout, message+": cancelled", cause)
	}
	return NewRenderError(code, message, cause)
}
