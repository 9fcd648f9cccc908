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

// placeholders used when summary generation degrades
const (
	summaryFallback = "今日 AI 热点资讯汇总。"
	summaryEmpty    = "今日暂无重点资讯。"
)

// prompt input is capped to keep a single call within context limits
const maxPromptChars = 5000

// Summarize produces a short narrative summary of the day's selected
// items. It always returns usable text; generation failures degrade to
// a fixed placeholder.
func (s *Selector) Summarize(ctx context.Context, items []domain.SelectedItem) string {
	if len(items) == 0 {
		return summaryEmpty
	}

	content := itemLines(items)
	prompt := fmt.Sprintf(summaryPrompt, truncate(content, maxPromptChars))

	resp, err := s.gw.Invoke(ctx, []gateway.Message{{Role: "user", Content: prompt}}, false)
	if err != nil {
		lgr.Printf("[WARN] summary generation failed: %v", err)
		return summaryFallback
	}
	if resp = strings.TrimSpace(resp); resp == "" {
		return summaryFallback
	}
	return resp
}

// Analyze produces the structured deep-analysis object for the run.
// extracts, when present, are full-text excerpts of top items that give
// the model more to work with. Returns nil when generation or parsing
// fails; the report is rendered without an analysis section then.
func (s *Selector) Analyze(ctx context.Context, items []domain.SelectedItem, extracts []string) (*domain.Analysis, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no items to analyze")
	}

	var extractBlock string
	if len(extracts) > 0 {
		var sb strings.Builder
		sb.WriteString("\n部分文章全文节选：\n")
		for _, e := range extracts {
			sb.WriteString("---\n")
			sb.WriteString(truncate(e, 800))
			sb.WriteString("\n")
		}
		extractBlock = sb.String()
	}

	prompt := fmt.Sprintf(analysisPrompt, truncate(itemLines(items), maxPromptChars), extractBlock)
	resp, err := s.gw.Invoke(ctx, []gateway.Message{{Role: "user", Content: prompt}}, true)
	if err != nil {
		return nil, fmt.Errorf("analysis call: %w", err)
	}

	jsonStr, ok := extractJSON(resp)
	if !ok {
		return nil, fmt.Errorf("no JSON object in analysis response")
	}

	var analysis domain.Analysis
	if err := json.Unmarshal([]byte(jsonStr), &analysis); err != nil {
		return nil, fmt.Errorf("decode analysis response: %w", err)
	}
	return &analysis, nil
}

// itemLines renders "- title: reason" lines for prompt bodies
func itemLines(items []domain.SelectedItem) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString("- ")
		sb.WriteString(item.Title)
		if item.AIReason != "" {
			sb.WriteString(": ")
			sb.WriteString(item.AIReason)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
