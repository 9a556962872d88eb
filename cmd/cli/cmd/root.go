package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/panda-miner/pkg/pprof"
	"github.com/panda-miner/pkg/utils"
)

var (
	// Global flags
	verbose   bool
	logFormat string
	logger    utils.Logger

	// Pprof flags
	pprofEnabled  bool
	pprofDir      string
	pprofProfiles string
	pprofCPURate  int

	// Pprof session of the running command
	pprofSession *pprof.Session
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "panda",
	Short: "A greedy approximate pattern miner for transactional data",
	Long: `panda mines approximate itemset patterns (tiles) from transactional datasets.

Each pattern is a set of items and a set of transactions that together cover a
block of the data. Patterns are chosen greedily to minimise a description cost,
tolerating a bounded share of missing items per row and column.

Datasets are FIMI basket files (.dat) or 0/1 matrix CSV files (.csv), optionally
gzip or zstd compressed.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Setup logger based on verbose flag
		logLevel := utils.LevelInfo
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewLogrusLogger(logLevel, cmd.ErrOrStderr(), logFormat)
		utils.SetGlobalLogger(logger)

		// Start profiling if enabled
		if pprofEnabled {
			cfg, err := buildPprofConfig()
			if err != nil {
				return err
			}

			session, err := pprof.Start(cfg)
			if err != nil {
				return err
			}

			pprofSession = session
			logger.Info("pprof collection started (profiles: %s, dir: %s)", pprofProfiles, cfg.OutputDir)
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if pprofSession != nil {
			logger.Info("Stopping pprof collection...")
			files, err := pprofSession.Stop()
			if err != nil {
				logger.Warn("Failed to write pprof data: %v", err)
			}
			logger.Info("pprof data saved to: %s (%d files)", pprofSession.OutputDir(), len(files))
			pprofSession = nil
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	// Pprof flags
	rootCmd.PersistentFlags().BoolVar(&pprofEnabled, "pprof", false, "Enable pprof performance profiling")
	rootCmd.PersistentFlags().StringVar(&pprofDir, "pprof-dir", "./pprof", "Output directory for pprof data")
	rootCmd.PersistentFlags().StringVar(&pprofProfiles, "pprof-profiles", "cpu,heap", "Comma-separated profile types: cpu,heap,goroutine,block,mutex,allocs")
	rootCmd.PersistentFlags().IntVar(&pprofCPURate, "pprof-cpu-rate", 0, "CPU profiling rate in Hz (0 keeps the runtime default)")

	// Set dynamic example using actual binary name
	binName := BinName()
	rootCmd.Example = `  # Mine a basket file with the default profile
  ` + binName + ` mine ./retail.dat

  # Mine a compressed matrix, tolerating 20% noise per row and column
  ` + binName + ` mine ./zoo.csv.gz --row-noise 0.2 --col-noise 0.2

  # Explore a noise grid in parallel
  ` + binName + ` sweep ./retail.dat --row-noise 0,0.1,0.2 --col-noise 0,0.1,0.2

  # Run the mining service
  ` + binName + ` serve -c ./config.yaml

  # Profile a mining run
  ` + binName + ` mine ./retail.dat --pprof --pprof-profiles cpu,heap,allocs`
}

// GetLogger returns the configured logger
func GetLogger() utils.Logger {
	if logger == nil {
		return &utils.NullLogger{}
	}
	return logger
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}

// buildPprofConfig builds pprof configuration from command line flags.
func buildPprofConfig() (*pprof.Config, error) {
	cfg := pprof.DefaultConfig()
	cfg.OutputDir = strings.TrimSpace(pprofDir)
	cfg.CPURate = pprofCPURate

	profiles, err := pprof.ParseProfileTypes(pprofProfiles)
	if err != nil {
		return nil, err
	}
	cfg.Profiles = profiles

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
