package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailyhot/hotspot/pkg/db"
	"github.com/dailyhot/hotspot/pkg/domain"
)

func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	database, err := db.New(db.Config{DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewRepositories(database)
}

func TestHotspotRepository_Upsert(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	published := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	items := []domain.SelectedItem{
		{
			RawItem:        domain.RawItem{Title: "新模型发布", URL: "https://a.example/1", Summary: "摘要", Published: &published},
			AIReason:       "影响广泛",
			Tags:           []string{"trending", "tech"},
			Keywords:       []string{"模型", "发布"},
			DuplicateGroup: "g1",
			IsPrimary:      true,
		},
		{
			RawItem:         domain.RawItem{Title: "新模型发布（转载）", URL: "https://b.example/1"},
			DuplicateGroup:  "g1",
			SimilarityScore: 0.8,
			DuplicateOf:     "https://a.example/1",
		},
		{RawItem: domain.RawItem{Title: "no url, skipped"}},
	}

	count, err := repos.Hotspot.Upsert(ctx, "test-source", "2026-01-02", items)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stored, err := repos.Hotspot.ListByDate(ctx, "2026-01-02")
	require.NoError(t, err)
	require.Len(t, stored, 2)

	assert.Equal(t, "新模型发布", stored[0].Title)
	assert.Equal(t, []string{"trending", "tech"}, stored[0].Tags)
	assert.Equal(t, []string{"模型", "发布"}, stored[0].Keywords)
	require.NotNil(t, stored[0].Published)
	assert.True(t, stored[0].IsPrimary)

	assert.False(t, stored[1].IsPrimary)
	assert.Equal(t, "https://a.example/1", stored[1].DuplicateOf)
	assert.InDelta(t, 0.8, stored[1].SimilarityScore, 1e-9)
}

func TestHotspotRepository_UpsertConflict(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	item := domain.SelectedItem{
		RawItem:  domain.RawItem{Title: "first", URL: "https://a.example/1"},
		AIReason: "old reason",
	}
	_, err := repos.Hotspot.Upsert(ctx, "src", "2026-01-02", []domain.SelectedItem{item})
	require.NoError(t, err)

	item.Title = "updated"
	item.AIReason = "new reason"
	count, err := repos.Hotspot.Upsert(ctx, "src", "2026-01-02", []domain.SelectedItem{item})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := repos.Hotspot.ListByDate(ctx, "2026-01-02")
	require.NoError(t, err)
	require.Len(t, stored, 1, "same url did not create a second row")
	assert.Equal(t, "updated", stored[0].Title)
	assert.Equal(t, "new reason", stored[0].AIReason)
}

func TestTrendingRepository_UpsertRepos(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	in := []domain.Repo{
		{Name: "org/infer", URL: "https://github.com/org/infer", Description: "fast inference",
			DescriptionCN: "推理框架", Stars: 4200, Forks: 300, Language: "Python",
			Topics: []string{"llm"}, AIReason: "生态活跃"},
		{Name: "org/train", URL: "https://github.com/org/train", Stars: 1500},
	}
	count, err := repos.Trending.UpsertRepos(ctx, "2026-01-02", in)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// second run updates in place
	in[0].Stars = 4300
	count, err = repos.Trending.UpsertRepos(ctx, "2026-01-02", in[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := repos.Trending.ReposByDate(ctx, "2026-01-02")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "org/infer", stored[0].Name, "sorted by stars")
	assert.Equal(t, 4300, stored[0].Stars)
	assert.Equal(t, []string{"llm"}, stored[0].Topics)
	assert.Equal(t, "推理框架", stored[0].DescriptionCN)
}

func TestTrendingRepository_UpsertModels(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	in := []domain.Model{
		{ModelID: "org/chat-7b", URL: "https://huggingface.co/org/chat-7b", DescriptionCN: "对话模型",
			Likes: 120, Downloads: 50000, TrendingScore: 98.5, PipelineTag: "text-generation",
			Tags: []string{"gguf"}, AIReason: "下载量大"},
		{ModelID: "org/embed", URL: "https://huggingface.co/org/embed", TrendingScore: 70},
	}
	count, err := repos.Trending.UpsertModels(ctx, "2026-01-02", in)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stored, err := repos.Trending.ModelsByDate(ctx, "2026-01-02")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "org/chat-7b", stored[0].ModelID, "sorted by trending score")
	assert.InDelta(t, 98.5, stored[0].TrendingScore, 1e-9)
	assert.Equal(t, []string{"gguf"}, stored[0].Tags)
}

func TestReportRepository_SaveAndGet(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	report := domain.Report{
		Date:    "2026-01-02",
		Content: "# AI 热点日报 - 2026-01-02\n\n## 机器之心\n\n### 1. [标题](https://a.example)\n",
		Summary: "今日综述。",
		Analysis: &domain.Analysis{
			Trends:     []string{"多模态竞争加剧"},
			Highlights: []domain.Highlight{{Title: "标题", Reason: "原因"}},
			Outlook:    "展望。",
		},
	}
	require.NoError(t, repos.Report.Save(ctx, report))

	got, err := repos.Report.Get(ctx, "2026-01-02")
	require.NoError(t, err)
	assert.Equal(t, report.Content, got.Content)
	assert.Equal(t, "今日综述。", got.Summary)
	require.NotNil(t, got.Analysis)
	assert.Equal(t, []string{"多模态竞争加剧"}, got.Analysis.Trends)
}

func TestReportRepository_IncrementalMerge(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	first := domain.Report{
		Date:    "2026-01-02",
		Content: "# AI 热点日报\n\n## 机器之心\n\n内容一\n",
		Summary: "第一次综述。",
	}
	require.NoError(t, repos.Report.Save(ctx, first))

	second := domain.Report{
		Date:    "2026-01-02",
		Content: "# AI 热点日报\n\n## 机器之心\n\n重复内容\n\n## 量子位\n\n内容二\n",
		Summary: "第二次综述。",
	}
	require.NoError(t, repos.Report.Save(ctx, second))

	got, err := repos.Report.Get(ctx, "2026-01-02")
	require.NoError(t, err)

	assert.Contains(t, got.Content, "内容一", "original section kept")
	assert.NotContains(t, got.Content, "重复内容", "existing source not overwritten")
	assert.Contains(t, got.Content, "## 量子位", "new source appended")
	assert.Contains(t, got.Content, "内容二")
	assert.Equal(t, "第一次综述。", got.Summary, "existing summary kept")
}

func TestReportRepository_GetMissing(t *testing.T) {
	repos := setupTestRepos(t)
	_, err := repos.Report.Get(context.Background(), "1999-01-01")
	require.Error(t, err)
}

func TestMergeContent(t *testing.T) {
	t.Run("no new sections keeps old byte for byte", func(t *testing.T) {
		old := "# 日报\n\n## A\n\nx\n"
		merged := mergeContent(old, "# 日报\n\n## A\n\ny\n")
		assert.Equal(t, old, merged)
	})

	t.Run("appends only missing sections", func(t *testing.T) {
		old := "# 日报\n\n## A\n\nx\n"
		merged := mergeContent(old, "preamble\n## A\n\ny\n## B\n\nz\n")
		assert.Contains(t, merged, "## B")
		assert.Contains(t, merged, "z")
		assert.NotContains(t, merged, "y")
		assert.NotContains(t, merged, "preamble", "preamble of rerun dropped")
	})
}

func TestWithLockRetry_CriticalStops(t *testing.T) {
	calls := 0
	err := withLockRetry(context.Background(), func() error {
		calls++
		return errors.Join(errCritical, errors.New("constraint failed"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "critical errors are not retried")
}
