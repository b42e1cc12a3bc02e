package marketgraph

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marketgraph/marketgraph/pkg/analytics"
)

var snapshotDir string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Dump a workspace to Parquet files",
	Long: `Write every entity and relationship in the workspace to Parquet files
for offline analysis in column-store tooling.`,
	RunE: runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().StringVar(&snapshotDir, "dir", "", "output directory (defaults to snapshot.dir from config)")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	client, cfg, err := openClient()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer client.Close(ctx)

	dir := snapshotDir
	if dir == "" {
		dir = cfg.Snapshot.Dir
	}
	if dir == "" {
		return fmt.Errorf("no snapshot directory configured")
	}

	writer, err := analytics.NewSnapshotWriter(dir, client.GetStore())
	if err != nil {
		return err
	}

	entityPath, relPath, err := writer.WriteSnapshot(ctx, workspaceID())
	if err != nil {
		return fmt.Errorf("snapshot failed: %w", err)
	}

	fmt.Printf("wrote %s\n", entityPath)
	fmt.Printf("wrote %s\n", relPath)
	return nil
}
