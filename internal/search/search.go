// Package search scores free-text queries against the normalized client set
// using tiered heuristics across name, id, phone and email.
package search

import (
	"sort"
	"strings"

	"github.com/HansLove/rebstool-sub000/internal/domain"
)

// RankedResult is one relevance-scored search hit.
type RankedResult struct {
	Entity    *domain.ClientEntity
	Score     int
	MatchType string
}

// MinQueryLen is the minimum query length; shorter queries return no results
// rather than an error.
const MinQueryLen = 2

// Result cutoff thresholds. A near-perfect top match suppresses loosely
// related partial matches instead of being diluted by them.
const (
	strongMatchFloor = 10000
	goodMatchFloor   = 5000
	goodMatchKeep    = 2000
	maxLooseResults  = 20
)

// Search scores the query against every entity and returns relevance-sorted,
// truncated results. Queries under MinQueryLen characters return nil.
func Search(entities []*domain.ClientEntity, query string) []RankedResult {
	q := normalizeQuery(query)
	if len([]rune(q)) < MinQueryLen {
		return nil
	}

	words := strings.Fields(q)
	multiWord := len(words) > 1
	numeric := numericDominant(q)

	var results []RankedResult
	for _, e := range entities {
		if e == nil {
			continue
		}
		score, matchType := scoreEntity(e, q, words, multiWord, numeric)
		if score <= 0 {
			continue
		}
		results = append(results, RankedResult{Entity: e, Score: score, MatchType: matchType})
	}
	if len(results) == 0 {
		return nil
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Entity.Name != results[j].Entity.Name {
			return results[i].Entity.Name < results[j].Entity.Name
		}
		return results[i].Entity.ClientID < results[j].Entity.ClientID
	})

	return truncate(results)
}

// truncate applies the post-scoring cutoff based on the top score.
func truncate(results []RankedResult) []RankedResult {
	top := results[0].Score
	switch {
	case top >= strongMatchFloor:
		return keepAbove(results, strongMatchFloor)
	case top >= goodMatchFloor:
		return keepAbove(results, goodMatchKeep)
	default:
		if len(results) > maxLooseResults {
			return results[:maxLooseResults]
		}
		return results
	}
}

func keepAbove(results []RankedResult, floor int) []RankedResult {
	kept := results[:0:0]
	for _, r := range results {
		if r.Score >= floor {
			kept = append(kept, r)
		}
	}
	return kept
}

// normalizeQuery lowercases and collapses whitespace.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// numericDominant reports whether the query is mostly digits: at least two
// digits making up at least half the non-space characters.
func numericDominant(q string) bool {
	digits, other := 0, 0
	for _, r := range q {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ':
		default:
			other++
		}
	}
	return digits >= 2 && digits >= other
}
