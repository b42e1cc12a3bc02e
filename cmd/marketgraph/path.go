package marketgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marketgraph/marketgraph/pkg/types"
)

var (
	pathMaxDepth int
	pathMode     string
)

var pathCmd = &cobra.Command{
	Use:   "path <from-entity-id> <to-entity-id>",
	Short: "Find a path between two entities",
	Long: `Search for a path between two entities. Modes: shortest (hop count),
weighted (summed relationship weight), semantic (embedding distance).`,
	Args: cobra.ExactArgs(2),
	RunE: runPath,
}

func init() {
	rootCmd.AddCommand(pathCmd)

	pathCmd.Flags().IntVar(&pathMaxDepth, "max-depth", 5, "maximum path length in hops")
	pathCmd.Flags().StringVar(&pathMode, "mode", "shortest", "path mode (shortest, weighted, semantic)")
}

func runPath(cmd *cobra.Command, args []string) error {
	mode := types.PathMode(pathMode)
	switch mode {
	case types.PathShortest, types.PathWeighted, types.PathSemantic:
	default:
		return fmt.Errorf("unknown path mode %q", pathMode)
	}

	client, _, err := openClient()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer client.Close(ctx)

	path, err := client.FindPath(ctx, workspaceID(), args[0], args[1], pathMaxDepth, mode)
	if err != nil {
		return fmt.Errorf("path search failed: %w", err)
	}
	if path == nil {
		return fmt.Errorf("no path found within %d hops", pathMaxDepth)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(path)
}
