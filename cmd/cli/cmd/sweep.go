package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/panda-miner/internal/formatter"
	"github.com/panda-miner/internal/miner"
	"github.com/panda-miner/pkg/config"
	apperrors "github.com/panda-miner/pkg/errors"
	"github.com/panda-miner/pkg/model"
	"github.com/panda-miner/pkg/writer"
)

var (
	// Sweep command flags
	sweepRowNoise []float64
	sweepColNoise []float64
	sweepWorkers  int
	sweepOutput   string
)

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep <dataset>",
	Short: "Mine a dataset over a grid of noise tolerances",
	Long: `Mine a dataset once for every (row noise, column noise) pair and rank the
runs by final description cost, lowest first.

Runs execute in parallel and share the parsed dataset. Budget, cost model and
timeout flags apply to every run. Failed runs are listed last with their error.`,
	Args: cobra.ExactArgs(1),
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	binName := BinName()
	sweepCmd.Example = `  # Sweep the default grid
  ` + binName + ` sweep ./retail.dat

  # Custom grid with 8 workers and a JSON report
  ` + binName + ` sweep ./retail.dat --row-noise 0,0.25,0.5 --col-noise 0,0.25 -w 8 -o sweep.json`

	defaults := config.Default().Sweep

	addMiningFlags(sweepCmd)
	sweepCmd.Flags().Float64SliceVar(&sweepRowNoise, "row-noise", defaults.RowNoise, "Row noise values to try, each in [0,1)")
	sweepCmd.Flags().Float64SliceVar(&sweepColNoise, "col-noise", defaults.ColumnNoise, "Column noise values to try, each in [0,1)")
	sweepCmd.Flags().IntVarP(&sweepWorkers, "workers", "w", runtime.NumCPU(), "Number of concurrent runs")
	sweepCmd.Flags().StringVarP(&sweepOutput, "output", "o", "", "Write the ranked grid to this file (.gz/.zst compress it)")
}

func runSweep(cmd *cobra.Command, args []string) error {
	log := GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ds, err := loadDataset(ctx, args[0])
	if apperrors.IsEmptyDataset(err) {
		log.Warn("Nothing to mine: %v", err)
		return nil
	}
	if err != nil {
		return err
	}

	m := miner.NewPandaMiner(&miner.Config{
		Defaults: model.MiningParams{Profile: string(miner.ProfileStandard)},
		Logger:   log,
		Version:  Version,
	})

	opts := miner.SweepOptions{
		RowNoise:    sweepRowNoise,
		ColumnNoise: sweepColNoise,
		Workers:     sweepWorkers,
		Base:        miningParams(),
	}
	log.Info("Sweeping %d grid points with %d workers...", len(opts.Grid()), sweepWorkers)

	result, sweepErr := miner.Sweep(ctx, m, ds, opts)
	if result == nil {
		return fmt.Errorf("sweep failed: %w", sweepErr)
	}

	formatter.FormatSweep(result, log)

	if sweepOutput != "" {
		stats, err := writer.ForPath[*model.SweepResult](sweepOutput).WriteToFileWithStats(result, sweepOutput)
		if err != nil {
			return fmt.Errorf("failed to write sweep result: %w", err)
		}
		log.Info("Sweep written to %s (%s, %d bytes)", stats.Path, stats.Compression, stats.CompressedSize)
	}

	return sweepErr
}
