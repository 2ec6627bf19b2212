package detect

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Detector = (*DNNDetector)(nil)

func TestParseRows_FiltersByThreshold(t *testing.T) {
	// Two rows: a strong person hit and a weak car hit.
	rows := []float32{
		0, 1, 0.92, 0.1, 0.2, 0.5, 0.9,
		0, 3, 0.30, 0.0, 0.0, 0.4, 0.4,
	}

	detections := parseRows(rows, 640, 480, 0.5)
	require.Len(t, detections, 1)
	assert.Equal(t, "person", detections[0].Class)
	assert.InDelta(t, 0.92, detections[0].Confidence, 0.001)
	assert.Equal(t, image.Rect(64, 96, 320, 432), detections[0].Box)
}

func TestParseRows_UnknownClass(t *testing.T) {
	rows := []float32{0, 63, 0.8, 0, 0, 1, 1}

	detections := parseRows(rows, 100, 100, 0.5)
	require.Len(t, detections, 1)
	assert.Equal(t, "unknown", detections[0].Class)
}

func TestParseRows_IgnoresTruncatedRow(t *testing.T) {
	rows := []float32{0, 1, 0.9, 0.1}
	assert.Empty(t, parseRows(rows, 100, 100, 0.5))
}

func TestPersonDetected(t *testing.T) {
	tests := []struct {
		name       string
		detections []Detection
		want       bool
	}{
		{"empty", nil, false},
		{"person present", []Detection{{Class: "car"}, {Class: "person"}}, true},
		{"no person", []Detection{{Class: "dog"}, {Class: "cat"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PersonDetected(tt.detections))
		})
	}
}
