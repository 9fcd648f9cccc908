package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dailyhot/hotspot/pkg/domain"
)

// TrendingClient pulls trending repositories and models from the
// GitHub search API and the HuggingFace models API.
type TrendingClient struct {
	client    *http.Client
	userAgent string

	// API bases, overridable in tests
	GitHubAPI      string
	HuggingFaceAPI string
}

// githubQuery selects active well-known AI repositories
const githubQuery = "topic:machine-learning stars:>1000"

// NewTrendingClient creates a trending API client
func NewTrendingClient(timeout time.Duration, userAgent string) *TrendingClient {
	return &TrendingClient{
		client:         &http.Client{Timeout: timeout},
		userAgent:      userAgent,
		GitHubAPI:      "https://api.github.com",
		HuggingFaceAPI: "https://huggingface.co",
	}
}

// GitHubRepos returns at most limit recently updated popular AI repos
func (t *TrendingClient) GitHubRepos(ctx context.Context, limit int) ([]domain.Repo, error) {
	perPage := limit
	if perPage > 100 {
		perPage = 100
	}
	params := url.Values{
		"q":        {githubQuery},
		"sort":     {"updated"},
		"order":    {"desc"},
		"per_page": {strconv.Itoa(perPage)},
	}

	var result struct {
		Items []struct {
			FullName    string   `json:"full_name"`
			HTMLURL     string   `json:"html_url"`
			Description string   `json:"description"`
			Stars       int      `json:"stargazers_count"`
			Forks       int      `json:"forks_count"`
			Language    string   `json:"language"`
			Topics      []string `json:"topics"`
		} `json:"items"`
	}
	if err := t.getJSON(ctx, t.GitHubAPI+"/search/repositories?"+params.Encode(), &result); err != nil {
		return nil, fmt.Errorf("github trending: %w", err)
	}

	repos := make([]domain.Repo, 0, len(result.Items))
	for _, r := range result.Items {
		if limit > 0 && len(repos) >= limit {
			break
		}
		repos = append(repos, domain.Repo{
			Name:        r.FullName,
			URL:         r.HTMLURL,
			Description: r.Description,
			Stars:       r.Stars,
			Forks:       r.Forks,
			Language:    r.Language,
			Topics:      r.Topics,
		})
	}
	return repos, nil
}

// HuggingFaceModels returns at most limit models by trending score
func (t *TrendingClient) HuggingFaceModels(ctx context.Context, limit int) ([]domain.Model, error) {
	count := limit
	if count > 100 {
		count = 100
	}
	params := url.Values{
		"sort":      {"trendingScore"},
		"direction": {"-1"},
		"limit":     {strconv.Itoa(count)},
	}

	var result []struct {
		ID            string   `json:"id"`
		ModelID       string   `json:"modelId"`
		Likes         int      `json:"likes"`
		Downloads     int      `json:"downloads"`
		TrendingScore float64  `json:"trendingScore"`
		PipelineTag   string   `json:"pipeline_tag"`
		Tags          []string `json:"tags"`
	}
	if err := t.getJSON(ctx, t.HuggingFaceAPI+"/api/models?"+params.Encode(), &result); err != nil {
		return nil, fmt.Errorf("huggingface trending: %w", err)
	}

	models := make([]domain.Model, 0, len(result))
	for _, m := range result {
		if limit > 0 && len(models) >= limit {
			break
		}
		id := m.ID
		if id == "" {
			id = m.ModelID
		}
		models = append(models, domain.Model{
			ModelID:       id,
			URL:           "https://huggingface.co/" + id,
			Likes:         m.Likes,
			Downloads:     m.Downloads,
			TrendingScore: m.TrendingScore,
			PipelineTag:   m.PipelineTag,
			Tags:          m.Tags,
		})
	}
	return models, nil
}

func (t *TrendingClient) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
