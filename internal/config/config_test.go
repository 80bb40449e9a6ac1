package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.Equal(t, 500, cfg.Search.MaxQueryLength)
	assert.Equal(t, 400, cfg.Query.PurposeBudget)
	assert.Equal(t, 450, cfg.Query.PlatformBudget)
	assert.Equal(t, 500, cfg.Query.TechBudget)
	assert.Equal(t, 30*time.Second, cfg.LLM.TimeoutDuration())
	assert.Equal(t, 60*time.Second, cfg.LLM.DocumentTimeoutDuration())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[llm]
provider = "ollama"
model = "llama3"
base_url = "http://localhost:11434"

[search]
max_results = 3

[output]
dir = "/tmp/plans"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.Search.MaxResults)
	assert.Equal(t, "/tmp/plans", cfg.Output.Dir)
	// untouched sections keep defaults
	assert.Equal(t, "github.com", cfg.Search.Domain)
	assert.Equal(t, "implementation_plan.txt", cfg.Output.PlanFile)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[llm]\nprovider = \"carrier-pigeon\"\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Provider")
}

func TestLoadRejectsUnorderedBudgets(t *testing.T) {
	cfg := Default()
	cfg.Query.PlatformBudget = 100
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnsafeOutputNames(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*OutputConfig)
	}{
		{"steps dir is the output root", func(o *OutputConfig) { o.StepsDir = "." }},
		{"steps dir cleans to the root", func(o *OutputConfig) { o.StepsDir = "steps/.." }},
		{"steps dir is the parent", func(o *OutputConfig) { o.StepsDir = ".." }},
		{"plan file escapes", func(o *OutputConfig) { o.PlanFile = "../plan.txt" }},
		{"absolute export", func(o *OutputConfig) { o.PlanExport = "/tmp/plan.yaml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg.Output)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "docname")
		})
	}
}

func TestValidateAllowsEmptyExport(t *testing.T) {
	cfg := Default()
	cfg.Output.PlanExport = ""
	assert.NoError(t, cfg.Validate())
}

func TestIsDocumentName(t *testing.T) {
	assert.True(t, IsDocumentName("implementation_plan.txt"))
	assert.True(t, IsDocumentName("implementation_steps/step_01_setup.txt"))
	assert.False(t, IsDocumentName(""))
	assert.False(t, IsDocumentName("."))
	assert.False(t, IsDocumentName("a/.."))
	assert.False(t, IsDocumentName("../x"))
	assert.False(t, IsDocumentName("/x"))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("IDEAFLOW_LLM_MODEL", "gpt-4o-mini")
	t.Setenv("IDEAFLOW_OUTPUT_DIR", "/var/plans")

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "/var/plans", cfg.Output.Dir)
}

func TestAPIKeyResolution(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("TAVILY_API_KEY", " tvly-key ")

	cfg := Default()
	assert.Equal(t, "sk-openai", cfg.LLM.APIKey())
	assert.Equal(t, "tvly-key", cfg.Search.APIKey())

	cfg.Search.APIKeyEnv = ""
	assert.Equal(t, "", cfg.Search.APIKey())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.LLM.Model = "custom-model"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom-model", loaded.LLM.Model)
}

func TestDurationFallbacks(t *testing.T) {
	c := LLMConfig{Timeout: "garbage", DocumentTimeout: "-5s"}
	assert.Equal(t, 30*time.Second, c.TimeoutDuration())
	assert.Equal(t, 60*time.Second, c.DocumentTimeoutDuration())
	assert.Equal(t, 10*time.Second, OutputConfig{}.LockTimeoutDuration())
}
