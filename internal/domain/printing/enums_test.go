package printing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrategy(t *testing.T) {
	for _, s := range AllStrategies() {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, Strategy("FAX").IsValid())
	assert.Equal(t, StrategyVector, ParseStrategy(" vector ", StrategyRaster))
	assert.Equal(t, StrategyRaster, ParseStrategy("", StrategyRaster))
	assert.False(t, ParseStrategy("bogus", StrategyRaster).IsValid())
}

func TestPaperSize_Dimensions(t *testing.T) {
	tests := []struct {
		size PaperSize
		w, h float64
	}{
		{PaperSizeA4, 210, 297},
		{PaperSizeA5, 148, 210},
		{PaperSizeLetter, 215.9, 279.4},
		{PaperSize("B9"), 210, 297},
	}
	for _, tt := range tests {
		t.Run(string(tt.size), func(t *testing.T) {
			w, h := tt.size.Dimensions()
			assert.Equal(t, tt.w, w)
			assert.Equal(t, tt.h, h)
		})
	}
	assert.False(t, PaperSize("B9").IsValid())
}

func TestOrientation_IsValid(t *testing.T) {
	assert.True(t, OrientationPortrait.IsValid())
	assert.True(t, OrientationLandscape.IsValid())
	assert.False(t, Orientation("DIAGONAL").IsValid())
}

func TestJobStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		ok       bool
	}{
		{JobStatusPending, JobStatusRendering, true},
		{JobStatusPending, JobStatusFailed, true},
		{JobStatusPending, JobStatusCompleted, false},
		{JobStatusRendering, JobStatusCompleted, true},
		{JobStatusRendering, JobStatusFailed, true},
		{JobStatusRendering, JobStatusPending, false},
		{JobStatusCompleted, JobStatusFailed, false},
		{JobStatusFailed, JobStatusRendering, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.False(t, JobStatusRendering.IsTerminal())
	assert.False(t, JobStatus("LOST").IsValid())
}
