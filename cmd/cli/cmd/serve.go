package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/panda-miner/internal/scheduler/source"
	"github.com/panda-miner/internal/service"
	"github.com/panda-miner/pkg/config"
)

var (
	// Serve command flags
	serveConfig string
	serveHTTP   string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mining service",
	Long: `Run the mining service in the foreground.

The service claims pending tasks from the database (and, if configured, accepts
them over HTTP), downloads each dataset from storage, mines it and stores the
result document. Prometheus metrics are served when enabled in the config.

The first SIGINT or SIGTERM stops taking new tasks and waits for running ones;
a second signal aborts them.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	binName := BinName()
	serveCmd.Example = `  # Run with a config file
  ` + binName + ` serve -c ./config.yaml

  # Also accept tasks over HTTP
  ` + binName + ` serve -c ./config.yaml --http :8080`

	serveCmd.Flags().StringVarP(&serveConfig, "config", "c", "", "Path to configuration file (defaults and PANDA_* env if empty)")
	serveCmd.Flags().StringVar(&serveHTTP, "http", "", "Listen address of an additional HTTP task source")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := GetLogger()

	cfg, err := config.Load(serveConfig)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if serveHTTP != "" {
		cfg.Sources = append(cfg.Sources, config.SourceConfig{
			Type:    string(source.SourceTypeHTTP),
			Name:    "cli-http",
			Enabled: true,
			Options: map[string]interface{}{"listen_addr": serveHTTP},
		})
	}

	if cfg.Log.OutputPath != "" {
		if log, err = service.NewLogger(cfg.Log); err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
	}

	log.Info("Database: %s, storage: %s, workers: %d", cfg.Database.Type, cfg.Storage.Type, cfg.Scheduler.WorkerCount)
	return service.Run(cfg, log)
}
