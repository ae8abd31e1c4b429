package council

import (
	"regexp"
	"sort"
	"strings"
)

// rankingMarker is the literal header the Stage-2 prompt demands.
const rankingMarker = "FINAL RANKING:"

var (
	numberedLabelPattern = regexp.MustCompile(`\d+\.\s*Response [A-Z]`)
	responseLabelPattern = regexp.MustCompile(`Response [A-Z]`)
)

// ParseRankingFromText extracts an ordered ranking of anonymized labels
// from a model's free-text verdict. It first looks for the strict contract
// (the FINAL RANKING: marker followed by a numbered list), then degrades to
// scanning for "Response X" occurrences in order of first appearance.
// The second return value is false when no labels could be recovered.
func ParseRankingFromText(rankingText string) ([]string, bool) {
	section := rankingText
	if idx := strings.Index(rankingText, rankingMarker); idx >= 0 {
		section = rankingText[idx+len(rankingMarker):]

		if numbered := numberedLabelPattern.FindAllString(section, -1); len(numbered) > 0 {
			var labels []string
			for _, m := range numbered {
				labels = append(labels, responseLabelPattern.FindString(m))
			}
			labels = dedupeLabels(labels)
			return labels, true
		}
	}

	// Lenient fallback: every "Response X" in the section (or, with no
	// marker, the whole text), first appearance wins.
	labels := dedupeLabels(responseLabelPattern.FindAllString(section, -1))
	if len(labels) == 0 && section != rankingText {
		labels = dedupeLabels(responseLabelPattern.FindAllString(rankingText, -1))
	}
	if len(labels) == 0 {
		return nil, false
	}
	return labels, true
}

// dedupeLabels drops repeated labels while preserving first-appearance order.
func dedupeLabels(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	var out []string
	for _, l := range labels {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// CalculateAggregateRankings averages each model's 1-based rank position
// across every parsed ranking that mentions it. Evaluators whose verdicts
// could not be parsed contribute nothing; a model an evaluator omitted is
// simply absent from that evaluator's contribution rather than penalized.
// Sorted by average ascending, then vote count descending, then model name,
// so equal inputs always produce identical output.
func CalculateAggregateRankings(stage2Results []Stage2Ranking, labelToModel map[string]string) []AggregateRanking {
	modelPositions := make(map[string][]int)

	for _, ranking := range stage2Results {
		if !ranking.ParseSucceeded {
			continue
		}
		for position, label := range ranking.ParsedRanking {
			if modelName, ok := labelToModel[label]; ok {
				modelPositions[modelName] = append(modelPositions[modelName], position+1)
			}
		}
	}

	aggregate := make([]AggregateRanking, 0, len(modelPositions))
	for model, positions := range modelPositions {
		sum := 0
		for _, pos := range positions {
			sum += pos
		}
		aggregate = append(aggregate, AggregateRanking{
			Model:         model,
			AverageRank:   float64(sum) / float64(len(positions)),
			RankingsCount: len(positions),
		})
	}

	sort.Slice(aggregate, func(i, j int) bool {
		if aggregate[i].AverageRank != aggregate[j].AverageRank {
			return aggregate[i].AverageRank < aggregate[j].AverageRank
		}
		if aggregate[i].RankingsCount != aggregate[j].RankingsCount {
			return aggregate[i].RankingsCount > aggregate[j].RankingsCount
		}
		return aggregate[i].Model < aggregate[j].Model
	})

	return aggregate
}
