// Package crmapi reads quotations, invoices and business accounts from the CRM
// REST API and posts notes back to it.
package crmapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/crm/docrender/internal/domain/document"
	"github.com/crm/docrender/internal/domain/shared"
	"github.com/crm/docrender/internal/infrastructure/config"
)

const (
	defaultTimeout = 15 * time.Second
	// maxBodyBytes caps how much of a response is read.
	maxBodyBytes = 8 << 20
	userAgent    = "docrender/1.0"
)

type bearerKey struct{}

// WithBearerToken stores the caller's token so it can be forwarded to the CRM.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

// BearerToken returns the token stored by WithBearerToken.
func BearerToken(ctx context.Context) string {
	token, _ := ctx.Value(bearerKey{}).(string)
	return token
}

// Client talks to the CRM REST API.
type Client struct {
	httpClient   *http.Client
	baseURL      *url.URL
	serviceToken string
	forwardAuth  bool
	logger       *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its transport is used as is.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// NewClient creates a client for cfg.BaseURL. Requests are traced with an
// otelhttp transport.
func NewClient(cfg config.CRMConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("crm base URL is required")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid crm base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid crm base URL %q: scheme must be http or https", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
		baseURL:      base,
		serviceToken: cfg.ServiceToken,
		forwardAuth:  cfg.ForwardAuth,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetDocument fetches a quotation or invoice. A businessId sent as a bare id is
// resolved to the business account; a failure to resolve it is logged and the
// document is returned without the account.
func (c *Client) GetDocument(ctx context.Context, kind document.Kind, id string) (*document.Document, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_KIND", fmt.Sprintf("unknown document kind %q", kind))
	}
	if strings.TrimSpace(id) == "" {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_ID", "document id is required")
	}

	var doc document.Document
	if err := c.do(ctx, http.MethodGet, collection(kind)+"/"+url.PathEscape(id), nil, &doc); err != nil {
		return nil, err
	}
	doc.Kind = kind
	if doc.ID == "" {
		doc.ID = id
	}

	if doc.Business != nil && !doc.Business.Populated() && doc.Business.ID != "" {
		account, err := c.GetBusiness(ctx, doc.Business.ID)
		if err != nil {
			c.logger.Warn("failed to resolve business account",
				zap.String("business_id", doc.Business.ID),
				zap.Error(err))
		} else {
			doc.Business.Account = account
		}
	}
	return &doc, nil
}

// GetBusiness fetches a business account.
func (c *Client) GetBusiness(ctx context.Context, id string) (*document.BusinessAccount, error) {
	var account document.BusinessAccount
	if err := c.do(ctx, http.MethodGet, "api/businesses/"+url.PathEscape(id), nil, &account); err != nil {
		return nil, err
	}
	if account.ID == "" {
		account.ID = id
	}
	return &account, nil
}

// AddNote appends a note to a document.
func (c *Client) AddNote(ctx context.Context, kind document.Kind, id string, note document.Note) error {
	if !kind.IsValid() {
		return shared.NewDomainError("INVALID_DOCUMENT_KIND", fmt.Sprintf("unknown document kind %q", kind))
	}
	return c.do(ctx, http.MethodPost, collection(kind)+"/"+url.PathEscape(id)+"/notes", note, nil)
}

func collection(kind document.Kind) string {
	return "api/" + kind.String() + "s"
}

// envelope is the {success, data, error} wrapper some CRM endpoints use.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("invalid crm path %q: %w", path, err)
	}
	endpoint := c.baseURL.ResolveReference(ref)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("crm request failed",
			zap.String("method", method),
			zap.String("url", endpoint.String()),
			zap.Error(err))
		return fmt.Errorf("%w: %v", shared.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", shared.ErrUpstreamUnavailable, err)
	}
	c.logger.Debug("crm request",
		zap.String("method", method),
		zap.String("url", endpoint.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return decode(data, out)
}

func (c *Client) token(ctx context.Context) string {
	if c.forwardAuth {
		if token := BearerToken(ctx); token != "" {
			return token
		}
	}
	return c.serviceToken
}

// decode accepts both bare objects and {data: ...} envelopes.
func decode(data []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err == nil && len(env.Data) > 0 && env.Data[0] == '{' {
		data = env.Data
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", shared.ErrUpstreamUnavailable, err)
	}
	return nil
}

func statusError(status int, body []byte) error {
	message := http.StatusText(status)
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil && env.Error.Message != "" {
		message = env.Error.Message
	}

	switch status {
	case http.StatusNotFound:
		return shared.NewDomainError(shared.ErrNotFound.Code, message)
	case http.StatusUnauthorized:
		return shared.NewDomainError(shared.ErrUnauthorized.Code, message)
	case http.StatusForbidden:
		return shared.NewDomainError(shared.ErrForbidden.Code, message)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return shared.NewDomainError(shared.ErrInvalidInput.Code, message)
	default:
		return fmt.Errorf("%w: crm responded %d: %s", shared.ErrUpstreamUnavailable, status, message)
	}
}
