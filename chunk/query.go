package chunk

import (
	"sort"
	"strings"

	"github.com/use-agent/agentweb/model"
)

// FindRelevant implements findRelevant(chunks, query, limit) -> chunks.
func FindRelevant(chunks []model.Chunk, query string, limit int) []model.Chunk {
	tokens := queryTokens(query)

	ranked := make([]model.Chunk, len(chunks))
	copy(ranked, chunks)

	for i := range ranked {
		relevance := ranked[i].Score + 2*countOccurrences(ranked[i].Text, tokens)
		r := relevance
		ranked[i].Relevance = &r
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].Relevance > *ranked[j].Relevance
	})

	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked
}

func queryTokens(query string) []string {
	var tokens []string
	for _, t := range strings.Fields(query) {
		if len(t) > 2 {
			tokens = append(tokens, strings.ToLower(t))
		}
	}
	return tokens
}

func countOccurrences(text string, tokens []string) int {
	lower := strings.ToLower(text)
	total := 0
	for _, t := range tokens {
		total += strings.Count(lower, t)
	}
	return total
}
