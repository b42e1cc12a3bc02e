package marketgraph

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	root "github.com/marketgraph/marketgraph"
	"github.com/marketgraph/marketgraph/pkg/config"
	"github.com/marketgraph/marketgraph/pkg/logger"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "marketgraph",
		Short: "MarketGraph: multi-tenant marketing knowledge graph",
		Long: `MarketGraph stores typed marketing entities (companies, ICPs,
competitors, channels, pain points) and weighted relationships between
them, isolated per workspace, and answers structural questions over the
graph: paths, subgraphs, pattern matches, and analytics.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initConfig()
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.marketgraph.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("workspace", "default", "workspace id")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".marketgraph")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// openClient loads configuration and assembles a ready Client.
func openClient() (*root.Client, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	level := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	log := logger.NewLogger(logger.Config{Level: level, NoColor: cfg.Log.NoColor})

	client, err := root.Open(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}

func workspaceID() string {
	ws := viper.GetString("workspace")
	if ws == "" {
		ws = "default"
	}
	return ws
}
