package cli

import (
	"fmt"
	"io"

	"github.com/howell-aikit/ideaflow/internal/config"
	"github.com/howell-aikit/ideaflow/internal/sink"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and plan output status",
	Long:  `Show which services are configured, whether credentials are present, and which plan documents exist.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := sink.FromConfig(cfg.Output, logger)
	docs, err := out.List()
	if err != nil {
		return fmt.Errorf("failed to list plan documents: %w", err)
	}

	printStatus(cmd.OutOrStdout(), cfg, configPath(), docs)
	return nil
}

func printStatus(w io.Writer, cfg *config.Config, path string, docs []string) {
	fmt.Fprintf(w, "Config: %s\n", path)
	fmt.Fprintf(w, "LLM: %s (%s)\n", cfg.LLM.Model, cfg.LLM.Provider)
	if cfg.LLM.BaseURL != "" {
		fmt.Fprintf(w, "  Base URL: %s\n", cfg.LLM.BaseURL)
	}
	if cfg.LLM.Provider == "openai" {
		fmt.Fprintf(w, "  API key: %s\n", presence(cfg.LLM.APIKey()))
	}
	fmt.Fprintf(w, "Search: %s (domain %s)\n", cfg.Search.BaseURL, cfg.Search.Domain)
	fmt.Fprintf(w, "  API key: %s\n", presence(cfg.Search.APIKey()))
	fmt.Fprintf(w, "Inspect fallbacks: page=%t git=%t\n", cfg.Inspect.PageFallback, cfg.Inspect.GitFallback)
	fmt.Fprintf(w, "Output: %s\n", cfg.Output.Dir)

	if len(docs) == 0 {
		fmt.Fprintf(w, "\nNo plan documents yet\n")
		return
	}
	fmt.Fprintf(w, "\nPlan documents: %d\n", len(docs))
	for _, d := range docs {
		fmt.Fprintf(w, "  %s\n", d)
	}
}

func presence(key string) string {
	if key == "" {
		return "missing"
	}
	return "set"
}
