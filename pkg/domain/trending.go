package domain

// Repo is a trending GitHub repository. DescriptionCN and AIReason are
// filled in by the trending translator.
type Repo struct {
	Name          string
	URL           string
	Description   string
	DescriptionCN string
	Stars         int
	Forks         int
	Language      string
	Topics        []string
	AIReason      string
}

// Model is a trending HuggingFace model.
type Model struct {
	ModelID       string
	URL           string
	DescriptionCN string
	Likes         int
	Downloads     int
	TrendingScore float64
	PipelineTag   string
	Tags          []string
	AIReason      string
}
