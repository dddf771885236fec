package insight

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dataquill/quill/internal/api"
)

func TestTextFallback(t *testing.T) {
	t.Parallel()

	withMessage := api.Insight{Insight: api.InsightBody{Message: "sales trend up", Analysis: "ignored"}}
	require.Equal(t, "sales trend up", Text(withMessage))

	withAnalysis := api.Insight{Insight: api.InsightBody{Analysis: "strong correlation between x and y"}}
	require.Equal(t, "strong correlation between x and y", Text(withAnalysis))

	empty := api.Insight{}
	require.Equal(t, Placeholder, Text(empty))
	require.NotEmpty(t, Text(empty))
}

func TestPercentRoundsAndStaysInBounds(t *testing.T) {
	t.Parallel()

	cases := map[float64]int{
		0:      0,
		0.004:  0,
		0.005:  1,
		0.49:   49,
		0.494:  49,
		0.495:  50,
		0.87:   87,
		0.8749: 87,
		0.875:  88,
		0.999:  100,
		1:      100,
	}
	for in, want := range cases {
		got := Percent(in)
		require.Equal(t, want, got, "confidence %v", in)
		require.GreaterOrEqual(t, got, 0)
		require.LessOrEqual(t, got, 100)
	}
}

func TestConfidenceLabel(t *testing.T) {
	t.Parallel()

	in := api.Insight{Confidence: 0.87}
	require.Equal(t, 87, Confidence(in))
	require.Equal(t, "87% confidence", ConfidenceLabel(in))
}
