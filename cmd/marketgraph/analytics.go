package marketgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Compute graph metrics for a workspace",
	Long: `Compute entity and relationship histograms, density, average degree,
an approximate centrality ranking, connected components, and detected
clusters for the selected workspace.`,
	RunE: runAnalytics,
}

func init() {
	rootCmd.AddCommand(analyticsCmd)
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	client, _, err := openClient()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer client.Close(ctx)

	report, err := client.Analytics(ctx, workspaceID())
	if err != nil {
		return fmt.Errorf("analytics failed: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
