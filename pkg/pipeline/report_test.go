package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dailyhot/hotspot/pkg/domain"
)

func TestRenderReport(t *testing.T) {
	now := time.Date(2026, 1, 2, 8, 30, 0, 0, time.UTC)
	sections := []SourceItems{
		{
			Source: "机器之心",
			Items: []domain.SelectedItem{
				{
					RawItem:  domain.RawItem{Title: "新模型发布", URL: "https://a.example/1"},
					AIReason: "性能大幅领先。",
				},
				{
					RawItem: domain.RawItem{Title: "行业快讯", URL: "https://a.example/2", Summary: "原文摘要。"},
				},
			},
		},
		{
			Source: "AIbase",
			Items: []domain.SelectedItem{
				{RawItem: domain.RawItem{Title: "开源框架更新", URL: "https://b.example/1"}},
			},
		},
	}

	got := renderReport("2026-01-02", now, sections, "今日综述。", nil)

	assert.True(t, strings.HasPrefix(got, "# AI 热点日报 - 2026-01-02\n"))
	assert.Contains(t, got, "生成时间: 2026-01-02 08:30:00 UTC")
	assert.Contains(t, got, "> **今日综述**：今日综述。")
	assert.Contains(t, got, "今日共收录 **3** 条热点，来自 **2** 个信息源。")
	assert.Contains(t, got, "## 机器之心")
	assert.Contains(t, got, "### 1. [新模型发布](https://a.example/1)\n> 性能大幅领先。")
	assert.Contains(t, got, "### 2. [行业快讯](https://a.example/2)\n> 原文摘要。", "summary used when no ai reason")
	assert.Contains(t, got, "## AIbase")
	assert.NotContains(t, got, "## 深度分析")
}

func TestRenderReport_Analysis(t *testing.T) {
	analysis := &domain.Analysis{
		Trends:     []string{"多模态竞争加剧", "开源模型追赶"},
		Highlights: []domain.Highlight{{Title: "新模型发布", Reason: "性能提升明显"}},
		Outlook:    "预计后续会有更多跟进。",
	}

	got := renderReport("2026-01-02", time.Now(), nil, "", analysis)

	assert.Contains(t, got, "## 深度分析")
	assert.Contains(t, got, "**今日趋势**")
	assert.Contains(t, got, "- 多模态竞争加剧")
	assert.Contains(t, got, "**重点解读**")
	assert.Contains(t, got, "- **新模型发布**：性能提升明显")
	assert.Contains(t, got, "**后市展望**\n\n预计后续会有更多跟进。")
	assert.NotContains(t, got, "今日综述", "no summary block when empty")
}

func TestRenderReport_LongReasonTruncated(t *testing.T) {
	long := strings.Repeat("理", 300)
	sections := []SourceItems{{
		Source: "源",
		Items: []domain.SelectedItem{
			{RawItem: domain.RawItem{Title: "标题", URL: "https://a.example"}, AIReason: long},
		},
	}}

	got := renderReport("2026-01-02", time.Now(), sections, "", nil)
	assert.Contains(t, got, strings.Repeat("理", maxReasonRunes)+"...")
	assert.NotContains(t, got, strings.Repeat("理", maxReasonRunes+1))
}
