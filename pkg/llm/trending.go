package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-pkgz/lgr"

	"github.com/dailyhot/hotspot/pkg/domain"
	"github.com/dailyhot/hotspot/pkg/gateway"
)

// translateResponse mirrors the JSON the trending translation prompts
// ask for, shared between repos and models
type translateResponse struct {
	Translated []translatedEntry `json:"translated"`
}

type translatedEntry struct {
	Index         int    `json:"index"`
	DescriptionCN string `json:"description_cn"`
	AIReason      string `json:"ai_reason"`
}

// TranslateRepos generates Chinese descriptions and recommendation
// reasons for trending GitHub repositories. At most limit repos are
// translated; on any failure the truncated originals come back as-is.
func (s *Selector) TranslateRepos(ctx context.Context, repos []domain.Repo, limit int) []domain.Repo {
	if len(repos) == 0 {
		return repos
	}
	if len(repos) > limit {
		repos = repos[:limit]
	}

	var sb strings.Builder
	for i, r := range repos {
		sb.WriteString(fmt.Sprintf("\n[%d] %s\n", i, r.Name))
		sb.WriteString(fmt.Sprintf("    ⭐%d | Language: %s\n", r.Stars, orNA(r.Language)))
		if r.Description != "" {
			sb.WriteString(fmt.Sprintf("    %s\n", truncate(r.Description, 200)))
		}
	}

	entries, err := s.translate(ctx, fmt.Sprintf(repoTranslatePrompt, sb.String()))
	if err != nil {
		lgr.Printf("[WARN] github trending translation failed: %v", err)
		return repos
	}

	for _, e := range entries {
		if e.Index < 0 || e.Index >= len(repos) {
			continue
		}
		repos[e.Index].DescriptionCN = e.DescriptionCN
		repos[e.Index].AIReason = e.AIReason
	}
	return repos
}

// TranslateModels generates Chinese descriptions for trending
// HuggingFace models, with the same degradation policy as repos.
func (s *Selector) TranslateModels(ctx context.Context, models []domain.Model, limit int) []domain.Model {
	if len(models) == 0 {
		return models
	}
	if len(models) > limit {
		models = models[:limit]
	}

	var sb strings.Builder
	for i, m := range models {
		sb.WriteString(fmt.Sprintf("\n[%d] %s\n", i, m.ModelID))
		sb.WriteString(fmt.Sprintf("    🔥%.0f | Task: %s\n", m.TrendingScore, orNA(m.PipelineTag)))
		sb.WriteString(fmt.Sprintf("    Downloads: %d | Likes: %d\n", m.Downloads, m.Likes))
	}

	entries, err := s.translate(ctx, fmt.Sprintf(modelTranslatePrompt, sb.String()))
	if err != nil {
		lgr.Printf("[WARN] huggingface trending translation failed: %v", err)
		return models
	}

	for _, e := range entries {
		if e.Index < 0 || e.Index >= len(models) {
			continue
		}
		models[e.Index].DescriptionCN = e.DescriptionCN
		models[e.Index].AIReason = e.AIReason
	}
	return models
}

func (s *Selector) translate(ctx context.Context, prompt string) ([]translatedEntry, error) {
	resp, err := s.gw.Invoke(ctx, []gateway.Message{{Role: "user", Content: prompt}}, true)
	if err != nil {
		return nil, err
	}

	jsonStr, ok := extractJSON(resp)
	if !ok {
		return nil, fmt.Errorf("no JSON object in translation response")
	}

	var parsed translateResponse
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, fmt.Errorf("decode translation response: %w", err)
	}
	return parsed.Translated, nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
