package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	return configPath
}

const minimalLLM = `
llm:
  primary:
    endpoint: https://api.example.com/v1
    api_key: test-key
    models: [model-a, model-b]
`

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		configContent := `
sources:
  - name: 机器之心
    type: rss
    url: https://example.com/feed.xml
    limit: 20
  - name: AIbase
    type: crawler
    fetcher: aibase

select:
  limit: 8

llm:
  primary:
    endpoint: https://api.example.com/v1
    api_key: primary-key
    models: [model-a, model-b]
    timeout: 90s
  fallback:
    endpoint: https://fallback.example.com/v1
    api_key: fallback-key
    models: [model-c]
  max_retries: 3
  retry_delay: 5s

dedup:
  threshold: 0.7

workers:
  fetch: 8
  select: 3

trending:
  github: true
  huggingface: true
  translate_limit: 15

extraction:
  enabled: true
  top_items: 5

database:
  dsn: "file:test.db?mode=rwc"
`
		cfg, err := Load(writeConfig(t, configContent))
		require.NoError(t, err)
		require.NotNil(t, cfg)

		require.Len(t, cfg.Sources, 2)
		assert.Equal(t, "机器之心", cfg.Sources[0].Name)
		assert.Equal(t, "rss", cfg.Sources[0].Type)
		assert.Equal(t, 20, cfg.Sources[0].Limit)
		assert.Equal(t, "aibase", cfg.Sources[1].Fetcher)
		assert.Equal(t, 30, cfg.Sources[1].Limit, "limit defaulted")

		assert.Equal(t, 8, cfg.Select.Limit)
		assert.Equal(t, []string{"model-a", "model-b"}, cfg.LLM.Primary.Models)
		assert.Equal(t, 90*time.Second, cfg.LLM.Primary.Timeout)
		assert.Equal(t, []string{"model-c"}, cfg.LLM.Fallback.Models)
		assert.Equal(t, 3, cfg.LLM.MaxRetries)
		assert.Equal(t, 5*time.Second, cfg.LLM.RetryDelay)

		assert.InDelta(t, 0.7, cfg.Dedup.Threshold, 1e-9)
		assert.Equal(t, 8, cfg.Workers.Fetch)
		assert.True(t, cfg.Trending.GitHub)
		assert.Equal(t, 15, cfg.Trending.TranslateLimit)
		assert.True(t, cfg.Extraction.Enabled)
		assert.Equal(t, 5, cfg.Extraction.TopItems)
		assert.Equal(t, "file:test.db?mode=rwc", cfg.Database.DSN)
	})

	t.Run("defaults", func(t *testing.T) {
		configContent := `
sources:
  - name: Feed
    type: rss
    url: https://example.com/feed.xml
` + minimalLLM
		cfg, err := Load(writeConfig(t, configContent))
		require.NoError(t, err)

		assert.Equal(t, 10, cfg.Select.Limit)
		assert.Equal(t, 2, cfg.LLM.MaxRetries)
		assert.Equal(t, 3*time.Second, cfg.LLM.RetryDelay)
		assert.Equal(t, 60*time.Second, cfg.LLM.Primary.Timeout)
		assert.InDelta(t, 0.6, cfg.Dedup.Threshold, 1e-9)
		assert.Equal(t, 5, cfg.Workers.Fetch)
		assert.Equal(t, 2, cfg.Workers.Select)
		assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
		assert.NotEmpty(t, cfg.Fetch.UserAgent)
		assert.Equal(t, 30, cfg.Trending.FetchLimit)
		assert.Equal(t, 20, cfg.Trending.TranslateLimit)
		assert.False(t, cfg.Extraction.Enabled)
		assert.Equal(t, 3, cfg.Extraction.TopItems)
		assert.Contains(t, cfg.Database.DSN, "hotspot.db")
	})

	t.Run("env expansion", func(t *testing.T) {
		t.Setenv("TEST_HOTSPOT_KEY", "secret-from-env")
		configContent := `
sources:
  - name: Feed
    type: rss
    url: https://example.com/feed.xml

llm:
  primary:
    endpoint: https://api.example.com/v1
    api_key: ${TEST_HOTSPOT_KEY}
    models: [model-a]
`
		cfg, err := Load(writeConfig(t, configContent))
		require.NoError(t, err)
		assert.Equal(t, "secret-from-env", cfg.LLM.Primary.APIKey)
	})

	t.Run("file not found", func(t *testing.T) {
		cfg, err := Load("/non/existent/file.yml")
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "sources: [unclosed"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no sources",
			content: minimalLLM,
			wantErr: "at least one source",
		},
		{
			name: "duplicate source names",
			content: `
sources:
  - name: Feed
    type: rss
    url: https://a.example/feed.xml
  - name: Feed
    type: rss
    url: https://b.example/feed.xml
` + minimalLLM,
			wantErr: "duplicate source name",
		},
		{
			name: "rss without url",
			content: `
sources:
  - name: Feed
    type: rss
` + minimalLLM,
			wantErr: "url is required",
		},
		{
			name: "crawler without fetcher",
			content: `
sources:
  - name: Feed
    type: crawler
` + minimalLLM,
			wantErr: "fetcher is required",
		},
		{
			name: "unknown source type",
			content: `
sources:
  - name: Feed
    type: scraper
` + minimalLLM,
			wantErr: "unknown type",
		},
		{
			name: "no providers",
			content: `
sources:
  - name: Feed
    type: rss
    url: https://example.com/feed.xml
`,
			wantErr: "at least one provider",
		},
		{
			name: "threshold out of range",
			content: `
sources:
  - name: Feed
    type: rss
    url: https://example.com/feed.xml
dedup:
  threshold: 1.5
` + minimalLLM,
			wantErr: "dedup.threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
