package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys.
const (
	ProfilingLabelOperation    = "operation"
	ProfilingLabelDocumentKind = "document_kind"
	ProfilingLabelStrategy     = "strategy"
	ProfilingLabelBrand        = "brand"
	ProfilingLabelTenantID     = "tenant_id"
)

// MaxLabelValueLength caps label values.
const MaxLabelValueLength = 128

// HighCardinalityLabels are dropped from profiling labels. Every document,
// job and request would otherwise get its own profile series.
var HighCardinalityLabels = map[string]bool{
	"user_id":         true,
	"request_id":      true,
	"job_id":          true,
	"document_id":     true,
	"document_number": true,
	"trace_id":        true,
	"span_id":         true,
}

// RenderLabels describes one render for profiling.
type RenderLabels struct {
	Operation    string
	DocumentKind string
	Strategy     string
	Brand        string
}

// Map returns the labels keyed by their profiling label names.
func (l RenderLabels) Map() map[string]string {
	return map[string]string{
		ProfilingLabelOperation:    l.Operation,
		ProfilingLabelDocumentKind: l.DocumentKind,
		ProfilingLabelStrategy:     l.Strategy,
		ProfilingLabelBrand:        l.Brand,
	}
}

// WithRenderLabels runs fn with the render labels attached to every profile
// sample it takes. The labels are pprof labels, so they also show up in
// standard pprof output.
func WithRenderLabels(ctx context.Context, labels RenderLabels, fn func(context.Context)) {
	WithProfilingLabels(ctx, labels.Map(), fn)
}

// WithProfilingLabels runs fn under the sanitized labels. High cardinality and
// empty labels are dropped.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// sanitizeLabels returns key, value pairs sorted by sanitized key.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}
	clean := make(map[string]string, len(labels))
	for key, value := range labels {
		key = sanitizeLabelKey(key)
		if key == "" || value == "" || HighCardinalityLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		clean[key] = value
	}

	keys := make([]string, 0, len(clean))
	for k := range clean {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, key := range keys {
		pairs = append(pairs, key, clean[key])
	}
	return pairs
}

// sanitizeLabelKey lowercases key into snake_case and drops anything else.
func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(key)
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return -1
	}, key)
}
