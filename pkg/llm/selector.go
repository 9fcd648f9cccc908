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

// Completer is the completion gateway as seen by this package.
type Completer interface {
	Invoke(ctx context.Context, messages []gateway.Message, jsonMode bool) (string, error)
}

// Selector asks the LLM to pick, translate and tag the most relevant
// items from a raw batch. It never fails: on any gateway or parse
// problem it degrades to the first N raw items without enrichment.
type Selector struct {
	gw Completer
}

// NewSelector creates a selector on top of the completion gateway.
func NewSelector(gw Completer) *Selector {
	return &Selector{gw: gw}
}

// selectResponse mirrors the JSON object the selection prompt asks for
type selectResponse struct {
	Selected []selectedEntry `json:"selected"`
}

type selectedEntry struct {
	Index    int      `json:"index"`
	TitleCN  string   `json:"title_cn"`
	ReasonCN string   `json:"reason_cn"`
	Tags     []string `json:"tags"`
	Keywords []string `json:"keywords"`
}

// Select returns at most limit items chosen by the LLM, with localized
// title, reason, tags and keywords overlaid on the raw fields.
// Indices outside the raw batch are ignored.
func (s *Selector) Select(ctx context.Context, items []domain.RawItem, limit int) []domain.SelectedItem {
	if len(items) == 0 {
		return []domain.SelectedItem{}
	}

	prompt := buildSelectPrompt(items, limit)
	content, err := s.gw.Invoke(ctx, []gateway.Message{{Role: "user", Content: prompt}}, true)
	if err != nil {
		lgr.Printf("[WARN] selection call failed, passing through first %d items: %v", limit, err)
		return passthrough(items, limit)
	}

	jsonStr, ok := extractJSON(content)
	if !ok {
		lgr.Printf("[WARN] no JSON object in selection response, passing through first %d items", limit)
		return passthrough(items, limit)
	}

	var resp selectResponse
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		lgr.Printf("[WARN] failed to decode selection response: %v", err)
		return passthrough(items, limit)
	}
	if resp.Selected == nil {
		lgr.Printf("[WARN] selection response has no selected field")
		return passthrough(items, limit)
	}

	selected := make([]domain.SelectedItem, 0, limit)
	for _, e := range resp.Selected {
		if e.Index < 0 || e.Index >= len(items) {
			lgr.Printf("[DEBUG] ignoring out of range index %d", e.Index)
			continue
		}
		item := domain.SelectedItem{RawItem: items[e.Index]}
		if e.TitleCN != "" {
			item.Title = e.TitleCN
		}
		item.AIReason = e.ReasonCN
		item.Tags = filterTags(e.Tags)
		item.Keywords = capKeywords(e.Keywords)
		selected = append(selected, item)
		if len(selected) >= limit {
			break
		}
	}
	return selected
}

// passthrough returns the first limit raw items unenriched
func passthrough(items []domain.RawItem, limit int) []domain.SelectedItem {
	if limit > len(items) {
		limit = len(items)
	}
	out := make([]domain.SelectedItem, 0, limit)
	for _, item := range items[:limit] {
		out = append(out, domain.SelectedItem{RawItem: item})
	}
	return out
}

var allowedTags = map[string]bool{
	domain.TagTrending: true,
	domain.TagTech:     true,
	domain.TagBusiness: true,
}

// filterTags keeps only known tags, lowercased and deduplicated
func filterTags(tags []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if !allowedTags[t] || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

const maxKeywords = 5

func capKeywords(keywords []string) []string {
	var out []string
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out = append(out, k)
		if len(out) >= maxKeywords {
			break
		}
	}
	return out
}

// buildSelectPrompt enumerates the raw items with stable zero-based
// indices; the index-to-item mapping depends on batch order.
func buildSelectPrompt(items []domain.RawItem, limit int) string {
	var sb strings.Builder
	for i, item := range items {
		sb.WriteString(fmt.Sprintf("\n[%d] 标题: %s\n", i, item.Title))
		if item.Summary != "" {
			sb.WriteString(fmt.Sprintf("    摘要: %s\n", truncate(item.Summary, 200)))
		}
	}
	return fmt.Sprintf(selectPrompt, limit, sb.String())
}
