// Package pipeline orchestrates one daily run: fetch sources, select
// items with the LLM, cluster duplicates across sources, pull trending
// data, produce summary and analysis, persist everything and render
// the daily report. Stages fail independently: a broken source or a
// failed LLM call degrades the run instead of aborting it.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/dailyhot/hotspot/pkg/config"
	"github.com/dailyhot/hotspot/pkg/dedup"
	"github.com/dailyhot/hotspot/pkg/domain"
)

// RSSFetcher fetches items from one RSS/Atom feed
type RSSFetcher interface {
	Fetch(ctx context.Context, feedURL string, limit int) ([]domain.RawItem, error)
}

// CrawlerFetcher fetches items from one registered HTML crawler
type CrawlerFetcher interface {
	Fetch(ctx context.Context, name string, limit int) ([]domain.RawItem, error)
}

// TrendingFetcher pulls trending repos and models
type TrendingFetcher interface {
	GitHubRepos(ctx context.Context, limit int) ([]domain.Repo, error)
	HuggingFaceModels(ctx context.Context, limit int) ([]domain.Model, error)
}

// Selector runs the LLM stages of the pipeline
type Selector interface {
	Select(ctx context.Context, items []domain.RawItem, limit int) []domain.SelectedItem
	Summarize(ctx context.Context, items []domain.SelectedItem) string
	Analyze(ctx context.Context, items []domain.SelectedItem, extracts []string) (*domain.Analysis, error)
	TranslateRepos(ctx context.Context, repos []domain.Repo, limit int) []domain.Repo
	TranslateModels(ctx context.Context, models []domain.Model, limit int) []domain.Model
}

// Extractor pulls article full text for deep analysis
type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// HotspotStore persists selected items
type HotspotStore interface {
	Upsert(ctx context.Context, source, reportDate string, items []domain.SelectedItem) (int, error)
}

// TrendingStore persists trending repos and models
type TrendingStore interface {
	UpsertRepos(ctx context.Context, reportDate string, repos []domain.Repo) (int, error)
	UpsertModels(ctx context.Context, reportDate string, models []domain.Model) (int, error)
}

// ReportStore persists the rendered daily report
type ReportStore interface {
	Save(ctx context.Context, report domain.Report) error
}

// Pipeline wires the run's collaborators together
type Pipeline struct {
	cfg       *config.Config
	rss       RSSFetcher
	crawler   CrawlerFetcher
	trending  TrendingFetcher
	selector  Selector
	extractor Extractor
	hotspots  HotspotStore
	trends    TrendingStore
	reports   ReportStore

	dryRun bool
	now    func() time.Time // for tests
}

// New creates a pipeline. The extractor may be nil when extraction is
// disabled in the config.
func New(cfg *config.Config, rss RSSFetcher, crawler CrawlerFetcher, trending TrendingFetcher,
	selector Selector, extractor Extractor, hotspots HotspotStore, trends TrendingStore, reports ReportStore) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		rss:       rss,
		crawler:   crawler,
		trending:  trending,
		selector:  selector,
		extractor: extractor,
		hotspots:  hotspots,
		trends:    trends,
		reports:   reports,
		now:       time.Now,
	}
}

// SetDryRun makes Run render the report to stdout instead of writing
// anything to the stores.
func (p *Pipeline) SetDryRun(dry bool) { p.dryRun = dry }

// Run executes one full daily run
func (p *Pipeline) Run(ctx context.Context) error {
	started := p.now()
	reportDate := started.UTC().Format("2006-01-02")
	lgr.Printf("[INFO] starting run for %s, %d sources", reportDate, len(p.cfg.Sources))

	raw := p.fetchSources(ctx)
	if len(raw) == 0 {
		lgr.Printf("[WARN] no data fetched from any source")
	}

	sections := p.selectItems(ctx, raw)
	sections = p.clusterAcrossSources(sections)

	repos, models := p.fetchTrending(ctx)

	flat := flatten(sections)
	summary, analysis := p.summarizeAndAnalyze(ctx, flat)

	report := domain.Report{
		Date:     reportDate,
		Content:  renderReport(reportDate, started, sections, summary, analysis),
		Summary:  summary,
		Analysis: analysis,
	}

	var saved int
	if p.dryRun {
		lgr.Printf("[INFO] dry run, nothing persisted")
		fmt.Println(report.Content)
	} else {
		saved = p.persist(ctx, reportDate, sections, repos, models)
		if err := p.reports.Save(ctx, report); err != nil {
			lgr.Printf("[ERROR] failed to save daily report: %v", err)
		}
	}

	lgr.Printf("[INFO] run completed in %s: %d sources, %d items selected, %d rows saved, %d repos, %d models",
		time.Since(started).Round(time.Millisecond), len(sections), len(flat), saved, len(repos), len(models))
	return nil
}

// fetchSources pulls raw items from every configured source
// concurrently, failed sources are logged and dropped
func (p *Pipeline) fetchSources(ctx context.Context) map[string][]domain.RawItem {
	var mu sync.Mutex
	raw := make(map[string][]domain.RawItem)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers.Fetch)

	for _, src := range p.cfg.Sources {
		g.Go(func() error {
			items, err := p.fetchOne(ctx, src)
			if err != nil {
				lgr.Printf("[WARN] source %s failed: %v", src.Name, err)
				return nil
			}
			if len(items) == 0 {
				lgr.Printf("[WARN] source %s returned no items", src.Name)
				return nil
			}
			lgr.Printf("[DEBUG] source %s: %d items", src.Name, len(items))

			mu.Lock()
			raw[src.Name] = items
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	return raw
}

func (p *Pipeline) fetchOne(ctx context.Context, src config.SourceConfig) ([]domain.RawItem, error) {
	switch src.Type {
	case "rss":
		return p.rss.Fetch(ctx, src.URL, src.Limit)
	case "crawler":
		return p.crawler.Fetch(ctx, src.Fetcher, src.Limit)
	default:
		return nil, fmt.Errorf("unknown source type %q", src.Type)
	}
}

// selectItems runs LLM selection per source with a narrower pool,
// sections come back in configured source order
func (p *Pipeline) selectItems(ctx context.Context, raw map[string][]domain.RawItem) []SourceItems {
	var mu sync.Mutex
	selected := make(map[string][]domain.SelectedItem, len(raw))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers.Select)

	for source, items := range raw {
		g.Go(func() error {
			picked := p.selector.Select(ctx, items, p.cfg.Select.Limit)
			lgr.Printf("[INFO] %s: selected %d of %d items", source, len(picked), len(items))

			mu.Lock()
			selected[source] = picked
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// keep configured order for stable report sections
	sections := make([]SourceItems, 0, len(selected))
	for _, src := range p.cfg.Sources {
		if items, ok := selected[src.Name]; ok && len(items) > 0 {
			sections = append(sections, SourceItems{Source: src.Name, Items: items})
		}
	}
	return sections
}

// clusterAcrossSources flattens all sections, clusters near-duplicate
// titles globally and regroups by source with annotations applied
func (p *Pipeline) clusterAcrossSources(sections []SourceItems) []SourceItems {
	var flat []domain.SelectedItem
	var owner []int // section index per flattened item
	for i, section := range sections {
		for _, item := range section.Items {
			flat = append(flat, item)
			owner = append(owner, i)
		}
	}
	if len(flat) == 0 {
		return sections
	}

	clustered := dedup.Cluster(flat, p.cfg.Dedup.Threshold)

	duplicates := 0
	out := make([]SourceItems, len(sections))
	for i, section := range sections {
		out[i] = SourceItems{Source: section.Source}
	}
	for i, item := range clustered {
		if !item.IsPrimary {
			duplicates++
		}
		idx := owner[i]
		out[idx].Items = append(out[idx].Items, item)
	}

	lgr.Printf("[INFO] clustering: %d items, %d marked duplicate", len(clustered), duplicates)
	return out
}

// fetchTrending pulls and translates trending repos and models,
// failures leave the untranslated or empty slice
func (p *Pipeline) fetchTrending(ctx context.Context) (repos []domain.Repo, models []domain.Model) {
	g, gctx := errgroup.WithContext(ctx)

	if p.cfg.Trending.GitHub {
		g.Go(func() error {
			fetched, err := p.trending.GitHubRepos(gctx, p.cfg.Trending.FetchLimit)
			if err != nil {
				lgr.Printf("[WARN] github trending failed: %v", err)
				return nil
			}
			repos = p.selector.TranslateRepos(gctx, fetched, p.cfg.Trending.TranslateLimit)
			lgr.Printf("[INFO] github trending: %d repos", len(repos))
			return nil
		})
	}
	if p.cfg.Trending.HuggingFace {
		g.Go(func() error {
			fetched, err := p.trending.HuggingFaceModels(gctx, p.cfg.Trending.FetchLimit)
			if err != nil {
				lgr.Printf("[WARN] huggingface trending failed: %v", err)
				return nil
			}
			models = p.selector.TranslateModels(gctx, fetched, p.cfg.Trending.TranslateLimit)
			lgr.Printf("[INFO] huggingface trending: %d models", len(models))
			return nil
		})
	}
	_ = g.Wait()

	return repos, models
}

// summarizeAndAnalyze runs the summary and deep-analysis calls
// concurrently, analysis failure leaves it nil
func (p *Pipeline) summarizeAndAnalyze(ctx context.Context, items []domain.SelectedItem) (string, *domain.Analysis) {
	if len(items) == 0 {
		return p.selector.Summarize(ctx, items), nil
	}

	var summary string
	var analysis *domain.Analysis

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary = p.selector.Summarize(gctx, items)
		return nil
	})
	g.Go(func() error {
		extracts := p.extractTop(gctx, items)
		result, err := p.selector.Analyze(gctx, items, extracts)
		if err != nil {
			lgr.Printf("[WARN] deep analysis failed: %v", err)
			return nil
		}
		analysis = result
		return nil
	})
	_ = g.Wait()

	return summary, analysis
}

// extractTop pulls full text of the first primary items for the
// analysis prompt
func (p *Pipeline) extractTop(ctx context.Context, items []domain.SelectedItem) []string {
	if !p.cfg.Extraction.Enabled || p.extractor == nil {
		return nil
	}

	var extracts []string
	for _, item := range items {
		if len(extracts) >= p.cfg.Extraction.TopItems {
			break
		}
		if !item.IsPrimary || item.URL == "" {
			continue
		}

		extractCtx, cancel := context.WithTimeout(ctx, p.cfg.Extraction.Timeout)
		text, err := p.extractor.Extract(extractCtx, item.URL)
		cancel()
		if err != nil {
			lgr.Printf("[DEBUG] extraction failed for %s: %v", item.URL, err)
			continue
		}
		extracts = append(extracts, text)
	}
	return extracts
}

// persist upserts all results, a failed group is logged and skipped
func (p *Pipeline) persist(ctx context.Context, reportDate string, sections []SourceItems,
	repos []domain.Repo, models []domain.Model) int {
	total := 0

	for _, section := range sections {
		count, err := p.hotspots.Upsert(ctx, section.Source, reportDate, section.Items)
		total += count
		if err != nil {
			lgr.Printf("[ERROR] failed to save hotspots for %s: %v", section.Source, err)
			continue
		}
		lgr.Printf("[DEBUG] %s: %d records", section.Source, count)
	}

	if len(repos) > 0 {
		count, err := p.trends.UpsertRepos(ctx, reportDate, repos)
		total += count
		if err != nil {
			lgr.Printf("[ERROR] failed to save github trending: %v", err)
		}
	}
	if len(models) > 0 {
		count, err := p.trends.UpsertModels(ctx, reportDate, models)
		total += count
		if err != nil {
			lgr.Printf("[ERROR] failed to save huggingface trending: %v", err)
		}
	}

	return total
}

func flatten(sections []SourceItems) []domain.SelectedItem {
	var flat []domain.SelectedItem
	for _, section := range sections {
		flat = append(flat, section.Items...)
	}
	return flat
}
