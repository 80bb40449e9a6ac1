package cli

import (
	"fmt"

	"github.com/howell-aikit/ideaflow/internal/sink"
	"github.com/spf13/cobra"
)

var listPaths bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted plan documents",
	Long:  `List the plan, step and export documents in the output directory.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listPaths, "paths", "p", false, "print full paths")
}

func runList(cmd *cobra.Command, args []string) error {
	out := sink.FromConfig(cfg.Output, logger)
	docs, err := out.List()
	if err != nil {
		return fmt.Errorf("failed to list plan documents: %w", err)
	}

	w := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintln(w, "No plan documents found")
		return nil
	}

	for _, d := range docs {
		if listPaths {
			d = out.Path(d)
		}
		fmt.Fprintln(w, d)
	}
	return nil
}
