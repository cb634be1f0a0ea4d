package services

import (
	"sort"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

// DefaultRRFK is the reciprocal rank fusion smoothing constant.
const DefaultRRFK = 60

// rankedChunk is one entry of a lookup's ranked candidate list.
type rankedChunk struct {
	chunkID string
	score   float64
}

// fusedChunk is a chunk after reciprocal rank fusion.
type fusedChunk struct {
	chunkID      string
	score        float64
	keywordScore float64
	similarity   float64
	matchType    domain.MatchType
}

// reciprocalRankFusion merges a keyword-ranked and a vector-ranked list.
// The candidate at 0-based rank i of either list contributes 1/(k+i+1).
// Ties keep first-seen order, keyword list first, so output is a pure
// function of the inputs.
func reciprocalRankFusion(keyword, semantic []rankedChunk, k int) []fusedChunk {
	byID := make(map[string]*fusedChunk, len(keyword)+len(semantic))
	order := make([]string, 0, len(keyword)+len(semantic))

	entry := func(id string) *fusedChunk {
		fc, ok := byID[id]
		if !ok {
			fc = &fusedChunk{chunkID: id}
			byID[id] = fc
			order = append(order, id)
		}
		return fc
	}

	for rank, c := range keyword {
		fc := entry(c.chunkID)
		if fc.matchType == domain.MatchKeyword {
			continue
		}
		fc.score += 1.0 / float64(k+rank+1)
		fc.keywordScore = c.score
		fc.matchType = domain.MatchKeyword
	}

	for rank, c := range semantic {
		fc := entry(c.chunkID)
		if fc.matchType == domain.MatchSemantic || fc.matchType == domain.MatchBoth {
			continue
		}
		fc.score += 1.0 / float64(k+rank+1)
		fc.similarity = c.score
		if fc.matchType == domain.MatchKeyword {
			fc.matchType = domain.MatchBoth
		} else {
			fc.matchType = domain.MatchSemantic
		}
	}

	results := make([]fusedChunk, len(order))
	for i, id := range order {
		results[i] = *byID[id]
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	return results
}
