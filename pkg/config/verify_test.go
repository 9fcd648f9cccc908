package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Sources = []SourceConfig{{Name: "Feed", Type: "rss", URL: "https://example.com/feed.xml"}}
	cfg.LLM.Primary = ProviderConfig{
		Endpoint: "https://api.example.com/v1",
		APIKey:   "key",
		Models:   []string{"model-a"},
	}
	setDefaults(cfg)
	return cfg
}

func TestVerifyAgainstEmbeddedSchema(t *testing.T) {
	require.NoError(t, VerifyAgainstEmbeddedSchema(validConfig()))

	t.Run("missing sources", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sources = nil
		err := VerifyAgainstEmbeddedSchema(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sources are required")
	})

	t.Run("extraction enabled requires settings", func(t *testing.T) {
		cfg := validConfig()
		cfg.Extraction.Enabled = true
		cfg.Extraction.Timeout = 0
		err := VerifyAgainstEmbeddedSchema(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "extraction.timeout")
	})
}

func TestGenerateSchema(t *testing.T) {
	schema, err := GenerateSchema()
	require.NoError(t, err)
	require.NotNil(t, schema)

	def, ok := schema.Definitions["Config"]
	require.True(t, ok, "Config definition present")
	_, ok = def.Properties.Get("sources")
	assert.True(t, ok)
	_, ok = def.Properties.Get("llm")
	assert.True(t, ok)
}

func TestValidConfigDefaults(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, 60*time.Second, cfg.LLM.Primary.Timeout)
	require.NoError(t, validate(cfg))
}
