package marketgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	exportDepth       int
	exportMaxEntities int
	exportFormat      string
)

var exportCmd = &cobra.Command{
	Use:   "export <center-entity-id>",
	Short: "Export a subgraph in node-link form",
	Long: `Extract the neighborhood around a center entity and print it as a
generic node-link document for visualization tooling.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().IntVar(&exportDepth, "depth", 2, "traversal depth")
	exportCmd.Flags().IntVar(&exportMaxEntities, "max-entities", 100, "entity cap, 0 for unlimited")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format (json, yaml)")
}

func runExport(cmd *cobra.Command, args []string) error {
	client, _, err := openClient()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer client.Close(ctx)

	sub, err := client.Subgraph(ctx, workspaceID(), args[0], exportDepth, exportMaxEntities)
	if err != nil {
		return fmt.Errorf("subgraph failed: %w", err)
	}
	if sub == nil {
		return fmt.Errorf("entity %s not found in workspace %s", args[0], workspaceID())
	}

	graph := client.Export(sub)

	switch exportFormat {
	case "yaml":
		return yaml.NewEncoder(os.Stdout).Encode(graph)
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(graph)
	default:
		return fmt.Errorf("unknown format %q", exportFormat)
	}
}
