package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/panda-miner/internal/service"
	"github.com/panda-miner/pkg/config"
	"github.com/panda-miner/pkg/utils"
)

// Version information (injected by build flags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Command line flags
var (
	configPath string
	logDir     string
	verbose    bool
)

// binName returns the base name of the current executable
func binName() string {
	return filepath.Base(os.Args[0])
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "panda-miner",
	Short: "A pattern mining service",
	Long: `panda-miner is a background service that mines approximate patterns from
transactional datasets.

It claims tasks from the database or accepts them over HTTP, downloads each
dataset from object storage, runs the greedy tiling search and stores the
result document and its summary row.`,
	SilenceUsage: true,
	RunE:         runService,
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s version %s\n", binName(), Version)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Go Version: %s\n", runtime.Version())
		fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	// Set dynamic example
	bin := binName()
	rootCmd.Example = `  # Start service with config file
  ` + bin + ` -c /etc/panda-miner/config.yaml

  # Write logs to a directory
  ` + bin + ` -c ./config.yaml -d /var/log/panda-miner

  # Start with verbose output
  ` + bin + ` -c ./config.yaml -v`

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	// Root command flags
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (required)")
	rootCmd.Flags().StringVarP(&logDir, "log-dir", "d", "", "Directory for log files (stdout if empty)")

	// Mark required flags
	rootCmd.MarkFlagRequired("config")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

func runService(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if verbose {
		cfg.Log.Level = "debug"
	}
	if logDir != "" {
		cfg.Log.OutputPath = filepath.Join(logDir, "panda-miner.log")
	}

	// Initialize logger
	logger, err := service.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	utils.SetGlobalLogger(logger)

	logger.Info("Starting panda-miner service...")
	logger.Info("Version: %s, Commit: %s, Built: %s", Version, GitCommit, BuildTime)
	logger.Info("Configuration loaded successfully")
	logger.Info("Mining version: %s, profile: %s", cfg.Mining.Version, cfg.Mining.Profile)
	logger.Info("Max workers: %d", cfg.Scheduler.WorkerCount)
	logger.Info("Database: %s://%s:%d/%s", cfg.Database.Type, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	logger.Info("Storage: %s", cfg.Storage.Type)

	if err := service.Run(cfg, logger); err != nil {
		return err
	}

	logger.Info("Service stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
