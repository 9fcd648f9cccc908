package domain

import "time"

// RawItem is a single entry produced by a source fetcher, before any
// LLM enrichment. URL is the natural key used for deduplication and
// persistence conflicts.
type RawItem struct {
	Title     string
	URL       string
	Summary   string
	Published *time.Time
}

// Tags allowed on selected items. The selector drops anything else the
// model invents.
const (
	TagTrending = "trending"
	TagTech     = "tech"
	TagBusiness = "business"
)

// SelectedItem is a RawItem the LLM picked, with localized title,
// recommendation reason, tags and keywords. The clusterer later
// annotates group membership on top.
type SelectedItem struct {
	RawItem
	AIReason string
	Tags     []string
	Keywords []string

	// set by the duplicate clusterer
	DuplicateGroup  string
	IsPrimary       bool
	SimilarityScore float64
	DuplicateOf     string
}

// HasTag reports whether the item carries the given tag.
func (s *SelectedItem) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
