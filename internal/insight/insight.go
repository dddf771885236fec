// Package insight is the single formatting contract for rendered insights.
// Every surface that shows an insight (analysis list, assistant panel, story
// views) goes through it; divergent rounding or fallback logic between
// surfaces is a defect.
package insight

import (
	"fmt"
	"math"

	"github.com/dataquill/quill/internal/api"
)

// Placeholder is rendered when an insight carries no text at all.
const Placeholder = "New insight"

// Text returns the display string: message, then analysis, then the fixed
// placeholder. Never empty.
func Text(in api.Insight) string {
	if in.Insight.Message != "" {
		return in.Insight.Message
	}
	if in.Insight.Analysis != "" {
		return in.Insight.Analysis
	}
	return Placeholder
}

// Percent converts a raw [0,1] confidence to its display form,
// round(c * 100). Assistant answers use it too, so every surface rounds the
// same way.
func Percent(c float64) int {
	return int(math.Round(c * 100))
}

// Confidence returns the display confidence as round(confidence * 100).
func Confidence(in api.Insight) int {
	return Percent(in.Confidence)
}

// ConfidenceLabel renders the confidence with its percent suffix.
func ConfidenceLabel(in api.Insight) string {
	return fmt.Sprintf("%d%% confidence", Confidence(in))
}
