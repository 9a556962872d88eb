package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/panda-miner/internal/dataset"
	"github.com/panda-miner/internal/formatter"
	"github.com/panda-miner/internal/miner"
	apperrors "github.com/panda-miner/pkg/errors"
	"github.com/panda-miner/pkg/model"
	"github.com/panda-miner/pkg/tiling"
	"github.com/panda-miner/pkg/writer"
)

var (
	// Mining parameter flags, shared by mine and sweep
	profile      string
	maxK         int
	costModel    string
	timeoutSecs  int
	inputFormat  string
	strictParse  bool
	maxRowsInput int

	// Mine command flags
	rowNoise   float64
	colNoise   float64
	outputPath string
	view       string
	topN       int
)

// mineCmd represents the mine command
var mineCmd = &cobra.Command{
	Use:   "mine <dataset>",
	Short: "Mine approximate patterns from a dataset file",
	Long: `Mine approximate patterns from a transactional dataset.

The mine command loads the dataset, runs the greedy search until the pattern
budget is spent or no candidate lowers the description cost, and prints the
result. Interrupting a run (Ctrl+C) keeps the patterns found so far.

Supported dataset formats:
  - basket: one transaction per line, whitespace separated items (.dat)
  - matrix: CSV with item names in the header and 0/1 cells (.csv)

Supported profiles:
  - quick    : at most 10 patterns
  - standard : at most 50 patterns (default)
  - thorough : at most 200 patterns

Supported views:
  - summary  : run summary only
  - patterns : run summary followed by the top patterns (default)`,
	Args: cobra.ExactArgs(1),
	RunE: runMine,
}

func init() {
	rootCmd.AddCommand(mineCmd)

	// Set dynamic example using actual binary name
	binName := BinName()
	mineCmd.Example = `  # Mine with the standard profile and print the top patterns
  ` + binName + ` mine ./retail.dat

  # Tolerate noise and save the full result as zstd-compressed JSON
  ` + binName + ` mine ./retail.dat --row-noise 0.2 --col-noise 0.1 -o ./out/retail.json.zst

  # Quick exploration of a compressed matrix with a time limit
  ` + binName + ` mine ./zoo.csv.gz --profile quick --timeout 30 --view summary`

	addMiningFlags(mineCmd)
	mineCmd.Flags().Float64Var(&rowNoise, "row-noise", 0, "Maximum share of missing items per transaction, in [0,1)")
	mineCmd.Flags().Float64Var(&colNoise, "col-noise", 0, "Maximum share of missing transactions per item, in [0,1)")
	mineCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the result document to this file (.gz/.zst compress it)")
	mineCmd.Flags().StringVar(&view, "view", formatter.ViewPatterns, "Output view: "+strings.Join(formatter.NewRegistry().Views(), ", "))
	mineCmd.Flags().IntVarP(&topN, "top", "n", formatter.DefaultTopN, "Number of patterns to print (0 prints all)")
}

// addMiningFlags registers the flags that shape a single mining run.
func addMiningFlags(c *cobra.Command) {
	c.Flags().StringVarP(&profile, "profile", "p", "", "Mining profile: "+profileNames())
	c.Flags().IntVarP(&maxK, "max-k", "k", 0, "Maximum number of patterns (0 uses the profile budget)")
	c.Flags().StringVar(&costModel, "cost-model", "", "Cost model: "+strings.Join(tiling.CostModelNames(), ", ")+" (default "+tiling.CostModelSize+")")
	c.Flags().IntVar(&timeoutSecs, "timeout", 0, "Stop mining after this many seconds (0 means no limit)")
	c.Flags().StringVarP(&inputFormat, "format", "f", "", "Dataset format: basket or matrix (inferred from the file name if empty)")
	c.Flags().BoolVar(&strictParse, "strict", false, "Fail on malformed lines instead of skipping them")
	c.Flags().IntVar(&maxRowsInput, "max-transactions", 0, "Read at most this many transactions (0 means all)")
}

func runMine(cmd *cobra.Command, args []string) error {
	log := GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := checkView(view); err != nil {
		return err
	}

	ds, err := loadDataset(ctx, args[0])
	if apperrors.IsEmptyDataset(err) {
		log.Warn("Nothing to mine: %v", err)
		return nil
	}
	if err != nil {
		return err
	}

	params := miningParams()
	params.MaxRowNoise = rowNoise
	params.MaxColumnNoise = colNoise

	m := miner.NewPandaMiner(&miner.Config{
		Defaults: model.MiningParams{Profile: string(miner.ProfileStandard)},
		Logger:   log,
		Version:  Version,
		Verbose:  verbose,
	})

	log.Info("Mining %s with %s...", ds.Name, m.Name())
	result, mineErr := m.Mine(ctx, ds, params)
	if result == nil {
		return fmt.Errorf("mining failed: %w", mineErr)
	}
	if mineErr != nil {
		log.Warn("Mining stopped early, keeping %d patterns: %v", len(result.Patterns), mineErr)
	}

	registry := formatter.NewRegistry()
	registry.Register(&formatter.PatternFormatter{TopN: topN, MaxItems: formatter.DefaultMaxItems})
	registry.Format(view, result, log)

	if outputPath != "" {
		stats, err := writer.ForPath[*model.MiningResult](outputPath).WriteToFileWithStats(result, outputPath)
		if err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
		log.Info("Result written to %s (%s, %d bytes)", stats.Path, stats.Compression, stats.CompressedSize)
	}

	return mineErr
}

// loadDataset reads path with the parser flags.
func loadDataset(ctx context.Context, path string) (*dataset.Dataset, error) {
	log := GetLogger()

	var format model.DatasetFormat
	if inputFormat != "" {
		format = model.ParseDatasetFormat(inputFormat)
	}

	ds, err := dataset.Load(ctx, path, format, &dataset.ParserOptions{
		StrictMode:      strictParse,
		MaxTransactions: maxRowsInput,
	})
	if err != nil {
		return ds, err
	}

	s := ds.Summary()
	log.Info("Loaded %s: %d transactions x %d items, %d elements (%s, %s)",
		s.Name, s.Transactions, s.Items, s.Elements, ds.Format, ds.Compression)
	return ds, nil
}

// miningParams collects the shared mining flags.
func miningParams() model.MiningParams {
	return model.MiningParams{
		Profile:        profile,
		MaxK:           maxK,
		CostModel:      costModel,
		TimeoutSeconds: timeoutSecs,
	}
}

func checkView(v string) error {
	views := formatter.NewRegistry().Views()
	if !slices.Contains(views, v) {
		return fmt.Errorf("invalid view: %q (valid: %s)", v, strings.Join(views, ", "))
	}
	return nil
}

func profileNames() string {
	names := make([]string, 0, len(miner.Profiles()))
	for _, p := range miner.Profiles() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

