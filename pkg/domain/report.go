package domain

// Analysis is the structured deep-analysis object generated once per
// run from the full selected set. Absent when generation fails.
type Analysis struct {
	Trends     []string    `json:"trends"`
	Highlights []Highlight `json:"highlights"`
	Outlook    string      `json:"outlook"`
}

// Highlight is a single notable item in the deep analysis.
type Highlight struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// Report is the rendered daily report handed to persistence.
type Report struct {
	Date     string // YYYY-MM-DD, UTC
	Content  string // markdown body
	Summary  string
	Analysis *Analysis
}
