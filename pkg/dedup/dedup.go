// Package dedup groups near-duplicate items that different sources
// reported independently. Grouping is a greedy single left-to-right
// pass on title similarity: items joining a group are compared against
// the group's primary only, not against each other. This is a
// deliberate approximation, not transitive-closure clustering, and
// downstream consumers depend on the looser grouping.
package dedup

import (
	"github.com/google/uuid"

	"github.com/dailyhot/hotspot/pkg/domain"
)

// DefaultThreshold is the similarity ratio at which two titles are
// considered the same underlying story.
const DefaultThreshold = 0.6

// Cluster annotates every item with a duplicate group. The first
// unconsumed item becomes its group's primary; later unconsumed items
// whose title similarity reaches the threshold join as duplicates and
// their tags and keywords are folded into the primary. Input order is
// preserved. O(n²) comparisons, fine for one run's worth of items.
func Cluster(items []domain.SelectedItem, threshold float64) []domain.SelectedItem {
	if len(items) == 0 {
		return []domain.SelectedItem{}
	}

	out := make([]domain.SelectedItem, len(items))
	copy(out, items)

	consumed := make([]bool, len(out))
	for i := range out {
		if consumed[i] {
			continue
		}

		groupID := uuid.NewString()
		out[i].DuplicateGroup = groupID
		out[i].IsPrimary = true
		out[i].SimilarityScore = 0
		out[i].DuplicateOf = ""
		consumed[i] = true

		for j := i + 1; j < len(out); j++ {
			if consumed[j] {
				continue
			}
			ratio := similarity(out[i].Title, out[j].Title)
			if ratio < threshold {
				continue
			}

			out[j].DuplicateGroup = groupID
			out[j].IsPrimary = false
			out[j].SimilarityScore = ratio
			out[j].DuplicateOf = out[i].URL
			consumed[j] = true

			out[i].Tags = union(out[i].Tags, out[j].Tags)
			out[i].Keywords = union(out[i].Keywords, out[j].Keywords)
		}
	}

	return out
}

// union appends items of b not already in a, preserving order
func union(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			a = append(a, s)
		}
	}
	return a
}

// similarity returns a symmetric ratio in [0,1] between two titles,
// 1.0 for identical strings: 2*LCS(a,b) / (len(a)+len(b)) over runes.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	return 2 * float64(lcs(ra, rb)) / float64(len(ra)+len(rb))
}

// lcs computes the longest-common-subsequence length with a rolling row
func lcs(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				continue
			}
			curr[j] = max(prev[j], curr[j-1])
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
