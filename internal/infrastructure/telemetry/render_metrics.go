package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Render outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Attribute keys on render metrics.
var (
	AttrDocumentKind = attribute.Key("document_kind")
	AttrStrategy     = attribute.Key("strategy")
	AttrOutcome      = attribute.Key("outcome")
	AttrErrorCode    = attribute.Key("error_code")
)

// RenderDurationBuckets are bucket boundaries in seconds. Raster renders wait
// on a headless browser and regularly take several seconds.
var RenderDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60}

// PageCountBuckets are bucket boundaries for pages per generated PDF.
var PageCountBuckets = []float64{1, 2, 3, 5, 8, 13, 21, 34}

// RenderMetrics records PDF render activity. A nil *RenderMetrics records
// nothing.
type RenderMetrics struct {
	renders  metric.Int64Counter
	duration metric.Float64Histogram
	pages    metric.Float64Histogram
}

// NewRenderMetrics registers the render instruments on meter.
func NewRenderMetrics(meter metric.Meter) (*RenderMetrics, error) {
	renders, err := meter.Int64Counter("docrender.render.total",
		metric.WithDescription("Number of PDF renders by outcome"),
		metric.WithUnit("{render}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create render counter: %w", err)
	}
	duration, err := meter.Float64Histogram("docrender.render.duration",
		metric.WithDescription("Time spent producing one PDF"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(RenderDurationBuckets...))
	if err != nil {
		return nil, fmt.Errorf("failed to create render duration histogram: %w", err)
	}
	pages, err := meter.Float64Histogram("docrender.render.pages",
		metric.WithDescription("Pages per generated PDF"),
		metric.WithUnit("{page}"),
		metric.WithExplicitBucketBoundaries(PageCountBuckets...))
	if err != nil {
		return nil, fmt.Errorf("failed to create page count histogram: %w", err)
	}
	return &RenderMetrics{renders: renders, duration: duration, pages: pages}, nil
}

// RecordSuccess records a successful render.
func (m *RenderMetrics) RecordSuccess(ctx context.Context, kind, strategy string, d time.Duration, pageCount int) {
	if m == nil {
		return
	}
	base := metric.WithAttributes(AttrDocumentKind.String(kind), AttrStrategy.String(strategy))
	outcome := metric.WithAttributes(AttrDocumentKind.String(kind), AttrStrategy.String(strategy),
		AttrOutcome.String(OutcomeSuccess))

	m.renders.Add(ctx, 1, outcome)
	m.duration.Record(ctx, d.Seconds(), outcome)
	m.pages.Record(ctx, float64(pageCount), base)
}

// RecordFailure records a failed render with its error code.
func (m *RenderMetrics) RecordFailure(ctx context.Context, kind, strategy, code string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrDocumentKind.String(kind),
		AttrStrategy.String(strategy),
		AttrOutcome.String(OutcomeFailure),
	}
	m.renders.Add(ctx, 1, metric.WithAttributes(append(attrs, AttrErrorCode.String(code))...))
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}
