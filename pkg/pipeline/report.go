package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/dailyhot/hotspot/pkg/domain"
)

// SourceItems holds the selected items of one source, report sections
// keep the configured source order
type SourceItems struct {
	Source string
	Items  []domain.SelectedItem
}

const maxReasonRunes = 200

// renderReport builds the Chinese markdown daily report
func renderReport(date string, now time.Time, sections []SourceItems, summary string, analysis *domain.Analysis) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# AI 热点日报 - %s\n\n", date)
	fmt.Fprintf(&b, "生成时间: %s UTC\n\n", now.UTC().Format("2006-01-02 15:04:05"))

	if summary != "" {
		fmt.Fprintf(&b, "> **今日综述**：%s\n\n---\n\n", summary)
	}

	total := 0
	for _, section := range sections {
		total += len(section.Items)
	}
	fmt.Fprintf(&b, "今日共收录 **%d** 条热点，来自 **%d** 个信息源。\n\n", total, len(sections))

	for _, section := range sections {
		fmt.Fprintf(&b, "## %s\n\n", section.Source)

		for i, item := range section.Items {
			reason := item.AIReason
			if reason == "" {
				reason = item.Summary
			}
			if runes := []rune(reason); len(runes) > maxReasonRunes {
				reason = string(runes[:maxReasonRunes]) + "..."
			}

			fmt.Fprintf(&b, "### %d. [%s](%s)\n", i+1, item.Title, item.URL)
			if reason != "" {
				fmt.Fprintf(&b, "> %s\n", reason)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if analysis != nil {
		b.WriteString("## 深度分析\n\n")

		if len(analysis.Trends) > 0 {
			b.WriteString("**今日趋势**\n\n")
			for _, trend := range analysis.Trends {
				fmt.Fprintf(&b, "- %s\n", trend)
			}
			b.WriteString("\n")
		}

		if len(analysis.Highlights) > 0 {
			b.WriteString("**重点解读**\n\n")
			for _, h := range analysis.Highlights {
				fmt.Fprintf(&b, "- **%s**：%s\n", h.Title, h.Reason)
			}
			b.WriteString("\n")
		}

		if analysis.Outlook != "" {
			fmt.Fprintf(&b, "**后市展望**\n\n%s\n", analysis.Outlook)
		}
	}

	return b.String()
}
