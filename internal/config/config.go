package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all ideaflow configuration
type Config struct {
	LLM     LLMConfig     `toml:"llm"`
	Search  SearchConfig  `toml:"search"`
	Inspect InspectConfig `toml:"inspect"`
	Query   QueryConfig   `toml:"query"`
	Output  OutputConfig  `toml:"output"`
	Log     LogConfig     `toml:"log"`
}

// LLMConfig holds settings for the chat model behind every LLM-backed service
type LLMConfig struct {
	Provider        string   `toml:"provider" validate:"oneof=openai ollama"`
	Model           string   `toml:"model" validate:"required"`
	BaseURL         string   `toml:"base_url"`
	APIKeyEnvs      []string `toml:"api_key_envs"`
	Timeout         string   `toml:"timeout"`
	DocumentTimeout string   `toml:"document_timeout"`
}

// SearchConfig holds settings for the repository search service
type SearchConfig struct {
	BaseURL          string `toml:"base_url" validate:"required,url"`
	APIKeyEnv        string `toml:"api_key_env"`
	Domain           string `toml:"domain" validate:"required"`
	QuerySuffix      string `toml:"query_suffix"`
	Depth            string `toml:"depth" validate:"oneof=basic advanced"`
	FallbackDepth    string `toml:"fallback_depth" validate:"oneof=basic advanced"`
	MaxResults       int    `toml:"max_results" validate:"min=1,max=20"`
	MaxQueryLength   int    `toml:"max_query_length" validate:"min=1"`
	FallbackWords    int    `toml:"fallback_words" validate:"min=1"`
	DescriptionLimit int    `toml:"description_limit" validate:"min=1"`
	Timeout          string `toml:"timeout"`
}

// InspectConfig holds settings for repository content fetching
type InspectConfig struct {
	ExtractDepth string `toml:"extract_depth" validate:"oneof=basic advanced"`
	Timeout      string `toml:"timeout"`
	PageFallback bool   `toml:"page_fallback"` // fetch the repository page directly when extraction yields nothing
	GitFallback  bool   `toml:"git_fallback"`  // shallow clone into memory as a last resort
}

// QueryConfig holds the checkpoints used to enrich search queries
type QueryConfig struct {
	PurposeBudget  int `toml:"purpose_budget" validate:"min=1"`
	PlatformBudget int `toml:"platform_budget" validate:"gtefield=PurposeBudget"`
	TechBudget     int `toml:"tech_budget" validate:"gtefield=PlatformBudget"`
	MaxTechTerms   int `toml:"max_tech_terms" validate:"min=1"`
}

// OutputConfig holds settings for plan documents
type OutputConfig struct {
	Dir         string `toml:"dir" validate:"required"`
	PlanFile    string `toml:"plan_file" validate:"required,docname"`
	StepsDir    string `toml:"steps_dir" validate:"required,docname"`
	PlanExport  string `toml:"plan_export" validate:"omitempty,docname"`
	LockTimeout string `toml:"lock_timeout"`
}

// LogConfig holds settings for the rotating log file
type LogConfig struct {
	Level      string `toml:"level" validate:"oneof=debug info warn error"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:        "openai",
			Model:           "deepseek-chat",
			BaseURL:         "https://api.deepseek.com/v1",
			APIKeyEnvs:      []string{"DEEPSEEK_API_KEY", "OPENAI_API_KEY", "MODEL_API_KEY"},
			Timeout:         "30s",
			DocumentTimeout: "60s",
		},
		Search: SearchConfig{
			BaseURL:          "https://api.tavily.com",
			APIKeyEnv:        "TAVILY_API_KEY",
			Domain:           "github.com",
			QuerySuffix:      "GitHub repository",
			Depth:            "advanced",
			FallbackDepth:    "basic",
			MaxResults:       5,
			MaxQueryLength:   500,
			FallbackWords:    10,
			DescriptionLimit: 200,
			Timeout:          "30s",
		},
		Inspect: InspectConfig{
			ExtractDepth: "basic",
			Timeout:      "30s",
		},
		Query: QueryConfig{
			PurposeBudget:  400,
			PlatformBudget: 450,
			TechBudget:     500,
			MaxTechTerms:   3,
		},
		Output: OutputConfig{
			Dir:         ".",
			PlanFile:    "implementation_plan.txt",
			StepsDir:    "implementation_steps",
			PlanExport:  "enhancement_plan.yaml",
			LockTimeout: "10s",
		},
		Log: LogConfig{
			Level:      "info",
			File:       filepath.Join(ConfigDir(), "logs", "ideaflow.log"),
			MaxSizeMB:  15,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
	}
}

// DefaultPath returns the default config file path
func DefaultPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads configuration from the given file, or the default path when empty.
// A .env file in the working directory is loaded first so API keys can live there.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, err
	}

	cfg.applyEnv()
	cfg.Output.Dir = expandHome(cfg.Output.Dir)
	cfg.Log.File = expandHome(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to the given file, or the default path when empty
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks field constraints
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("docname", func(fl validator.FieldLevel) bool {
		return IsDocumentName(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("failed to register validation: %w", err)
	}
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			var msgs []string
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// IsDocumentName reports whether name stays strictly inside the output
// directory. The directory itself ("." or "a/..") does not qualify.
func IsDocumentName(name string) bool {
	return filepath.IsLocal(name) && filepath.Clean(name) != "."
}

// applyEnv applies IDEAFLOW_* overrides
func (c *Config) applyEnv() {
	if v := os.Getenv("IDEAFLOW_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("IDEAFLOW_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("IDEAFLOW_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("IDEAFLOW_OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
}

// APIKey returns the first non-empty key among the configured env vars
func (c LLMConfig) APIKey() string {
	for _, name := range c.APIKeyEnvs {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// TimeoutDuration returns the per-call timeout for LLM services
func (c LLMConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// DocumentTimeoutDuration returns the timeout for long-form document rendering
func (c LLMConfig) DocumentTimeoutDuration() time.Duration {
	return parseDuration(c.DocumentTimeout, 60*time.Second)
}

// APIKey returns the search API key from the environment
func (c SearchConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.APIKeyEnv))
}

// TimeoutDuration returns the search request timeout
func (c SearchConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// TimeoutDuration returns the content fetch timeout
func (c InspectConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// LockTimeoutDuration returns the output lock timeout
func (c OutputConfig) LockTimeoutDuration() time.Duration {
	return parseDuration(c.LockTimeout, 10*time.Second)
}

// ConfigDir returns the ideaflow config directory path
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".ideaflow")
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// expandHome expands a leading ~ to the user's home directory
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, path[1:])
}
