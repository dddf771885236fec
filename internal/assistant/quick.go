package assistant

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// quickQuestions are the canned prompts offered beside the input. Selecting
// one auto-submits through the normal send path.
var quickQuestions = []string{
	"What are the main trends in this data?",
	"Show me summary statistics",
	"Are there any outliers or anomalies?",
	"What correlations exist between variables?",
	"Suggest next steps for analysis",
}

// QuickQuestions returns the canned prompt list.
func QuickQuestions() []string {
	out := make([]string, len(quickQuestions))
	copy(out, quickQuestions)
	return out
}

// SuggestQuick returns the canned prompt closest to the partial input by
// normalized edit distance, or empty when nothing is close enough to be a
// plausible completion.
func SuggestQuick(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return ""
	}

	best, bestScore := "", 0.0
	for _, q := range quickQuestions {
		if score := similarity(input, strings.ToLower(q)); score > bestScore {
			best, bestScore = q, score
		}
	}
	if bestScore < 0.3 {
		return ""
	}
	return best
}

func similarity(a, b string) float64 {
	// prefix typing is the common case; score it ahead of whole-string distance
	if strings.HasPrefix(b, a) {
		return 1
	}
	longest := max(len(a), len(b))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
