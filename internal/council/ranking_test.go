package council

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRankingFromText(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		expected   []string
		expectedOK bool
	}{
		{
			name: "standard format with FINAL RANKING",
			input: `Response A is good but lacks detail.
Response B provides comprehensive coverage.
Response C is accurate but brief.

FINAL RANKING:
1. Response B
2. Response A
3. Response C`,
			expected:   []string{"Response B", "Response A", "Response C"},
			expectedOK: true,
		},
		{
			name: "format without numbered list",
			input: `FINAL RANKING:
Response C
Response A
Response B`,
			expected:   []string{"Response C", "Response A", "Response B"},
			expectedOK: true,
		},
		{
			name: "format with extra whitespace",
			input: `FINAL RANKING:
1.  Response A
2.  Response B
3.  Response C`,
			expected:   []string{"Response A", "Response B", "Response C"},
			expectedOK: true,
		},
		{
			name: "text after ranking section",
			input: `FINAL RANKING:
1. Response B
2. Response A

These are my rankings based on quality.`,
			expected:   []string{"Response B", "Response A"},
			expectedOK: true,
		},
		{
			name:       "no FINAL RANKING header - lenient fallback",
			input:      `I think Response C is best, then Response A, then Response B.`,
			expected:   []string{"Response C", "Response A", "Response B"},
			expectedOK: true,
		},
		{
			name: "lenient fallback de-duplicates preserving first appearance",
			input: `Response C is best. Response A comes next, though Response C
remains stronger overall. Response A is still ahead of Response B.`,
			expected:   []string{"Response C", "Response A", "Response B"},
			expectedOK: true,
		},
		{
			name: "duplicates inside numbered section collapse",
			input: `FINAL RANKING:
1. Response B
2. Response B
3. Response A`,
			expected:   []string{"Response B", "Response A"},
			expectedOK: true,
		},
		{
			name:       "empty string",
			input:      "",
			expected:   nil,
			expectedOK: false,
		},
		{
			name: "marker with nothing rankable",
			input: `FINAL RANKING:
No responses to rank.`,
			expected:   nil,
			expectedOK: false,
		},
		{
			name: "only the section after the marker counts",
			input: `Response A is mentioned here first.
Response B is also mentioned.

FINAL RANKING:
1. Response C
2. Response A`,
			expected:   []string{"Response C", "Response A"},
			expectedOK: true,
		},
		{
			name: "labels beyond C",
			input: `FINAL RANKING:
1. Response D
2. Response A
3. Response B
4. Response C`,
			expected:   []string{"Response D", "Response A", "Response B", "Response C"},
			expectedOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := ParseRankingFromText(tt.input)
			assert.Equal(t, tt.expectedOK, ok)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseRankingIsIdempotent(t *testing.T) {
	input := "FINAL RANKING:\n1. Response B\n2. Response A"
	first, ok1 := ParseRankingFromText(input)
	second, ok2 := ParseRankingFromText(input)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, first, second)
}

func TestCalculateAggregateRankings(t *testing.T) {
	labelToModel := map[string]string{
		"Response A": "model/a",
		"Response B": "model/b",
		"Response C": "model/c",
	}

	t.Run("averages positions across evaluators", func(t *testing.T) {
		stage2 := []Stage2Ranking{
			{Model: "test/ranker1", ParsedRanking: []string{"Response A", "Response B"}, ParseSucceeded: true},
			{Model: "test/ranker2", ParsedRanking: []string{"Response B", "Response A"}, ParseSucceeded: true},
		}

		result := CalculateAggregateRankings(stage2, labelToModel)
		require.Len(t, result, 2)
		for _, agg := range result {
			assert.Equal(t, 1.5, agg.AverageRank)
			assert.Equal(t, 2, agg.RankingsCount)
		}
	})

	t.Run("model at positions 1 and 3 averages to 2.0", func(t *testing.T) {
		stage2 := []Stage2Ranking{
			{Model: "r1", ParsedRanking: []string{"Response A", "Response B", "Response C"}, ParseSucceeded: true},
			{Model: "r2", ParsedRanking: []string{"Response B", "Response C", "Response A"}, ParseSucceeded: true},
		}

		result := CalculateAggregateRankings(stage2, labelToModel)
		require.Len(t, result, 3)
		for _, agg := range result {
			if agg.Model == "model/a" {
				assert.Equal(t, 2.0, agg.AverageRank)
				assert.Equal(t, 2, agg.RankingsCount)
			}
		}
	})

	t.Run("omission is not penalized", func(t *testing.T) {
		stage2 := []Stage2Ranking{
			{Model: "r1", ParsedRanking: []string{"Response A"}, ParseSucceeded: true},
			{Model: "r2", ParsedRanking: []string{"Response A", "Response B"}, ParseSucceeded: true},
		}

		result := CalculateAggregateRankings(stage2, labelToModel)
		require.Len(t, result, 2)

		// model/a ranked 1 by both, model/b ranked 2 by one evaluator only.
		assert.Equal(t, "model/a", result[0].Model)
		assert.Equal(t, 1.0, result[0].AverageRank)
		assert.Equal(t, 2, result[0].RankingsCount)
		assert.Equal(t, "model/b", result[1].Model)
		assert.Equal(t, 2.0, result[1].AverageRank)
		assert.Equal(t, 1, result[1].RankingsCount)
	})

	t.Run("failed parses are excluded from aggregation", func(t *testing.T) {
		stage2 := []Stage2Ranking{
			{Model: "r1", ParsedRanking: []string{"Response B"}, ParseSucceeded: true},
			{Model: "r2", ParsedRanking: nil, ParseSucceeded: false},
		}

		result := CalculateAggregateRankings(stage2, labelToModel)
		require.Len(t, result, 1)
		assert.Equal(t, "model/b", result[0].Model)
		assert.Equal(t, 1, result[0].RankingsCount)
	})

	t.Run("tie-break is vote count then model name", func(t *testing.T) {
		// model/a and model/b tie on average 1.5; model/b has more votes.
		// model/c ties model/a on average and votes; lexical order decides.
		stage2 := []Stage2Ranking{
			{Model: "r1", ParsedRanking: []string{"Response A", "Response B"}, ParseSucceeded: true},
			{Model: "r2", ParsedRanking: []string{"Response B", "Response A"}, ParseSucceeded: true},
			{Model: "r3", ParsedRanking: []string{"Response B", "Response C"}, ParseSucceeded: true},
			{Model: "r4", ParsedRanking: []string{"Response C", "Response B"}, ParseSucceeded: true},
		}
		// Averages: a=(1+2)/2=1.5, b=(2+1+1+2)/4=1.5, c=(2+1)/2=1.5.

		result := CalculateAggregateRankings(stage2, labelToModel)
		require.Len(t, result, 3)
		assert.Equal(t, "model/b", result[0].Model)
		assert.Equal(t, "model/a", result[1].Model)
		assert.Equal(t, "model/c", result[2].Model)
	})

	t.Run("empty rankings yield empty aggregate", func(t *testing.T) {
		stage2 := []Stage2Ranking{
			{Model: "r1", ParsedRanking: []string{}, ParseSucceeded: true},
		}
		result := CalculateAggregateRankings(stage2, labelToModel)
		assert.Empty(t, result)
	})

	t.Run("deterministic across repeated runs", func(t *testing.T) {
		stage2 := []Stage2Ranking{
			{Model: "r1", ParsedRanking: []string{"Response A", "Response B", "Response C"}, ParseSucceeded: true},
			{Model: "r2", ParsedRanking: []string{"Response B", "Response C", "Response A"}, ParseSucceeded: true},
			{Model: "r3", ParsedRanking: []string{"Response C", "Response A", "Response B"}, ParseSucceeded: true},
		}

		first := CalculateAggregateRankings(stage2, labelToModel)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, CalculateAggregateRankings(stage2, labelToModel))
		}
	})
}
