package miner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/panda-miner/internal/dataset"
	apperrors "github.com/panda-miner/pkg/errors"
	"github.com/panda-miner/pkg/model"
	"github.com/panda-miner/pkg/telemetry"
	"github.com/panda-miner/pkg/tiling"
)

// PandaMiner mines with the greedy PANDA search.
type PandaMiner struct {
	config *Config
}

// NewPandaMiner creates a PANDA miner.
func NewPandaMiner(config *Config) *PandaMiner {
	if config == nil {
		config = DefaultConfig()
	}
	return &PandaMiner{config: config.withDefaults()}
}

// Name implements Miner.
func (m *PandaMiner) Name() string { return "panda" }

// Mine implements Miner.
func (m *PandaMiner) Mine(ctx context.Context, ds *dataset.Dataset, params model.MiningParams) (*model.MiningResult, error) {
	opts, err := Resolve(params, m.config.Defaults)
	if err != nil {
		return nil, err
	}
	return m.MineWithOptions(ctx, ds, opts)
}

// MineWithOptions runs the search with already resolved options.
func (m *PandaMiner) MineWithOptions(ctx context.Context, ds *dataset.Dataset, opts Options) (result *model.MiningResult, err error) {
	summary := ds.Summary()
	log := m.config.Logger.WithFields(map[string]interface{}{
		"dataset":    summary.Name,
		"max_k":      opts.MaxK,
		"row_noise":  opts.MaxRowNoise,
		"col_noise":  opts.MaxColumnNoise,
		"cost_model": opts.CostModel,
	})

	ctx, span := telemetry.StartSpan(ctx, "panda.mine",
		attribute.String("dataset.name", summary.Name),
		attribute.Int("dataset.transactions", summary.Transactions),
		attribute.Int("dataset.items", summary.Items),
		attribute.Int("panda.max_k", opts.MaxK),
		attribute.Float64("panda.max_row_noise", opts.MaxRowNoise),
		attribute.Float64("panda.max_column_noise", opts.MaxColumnNoise),
		attribute.String("panda.cost_model", opts.CostModel),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	costModel, err := tiling.NewCostModel(opts.CostModel, ds.Transactions)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "cost model", err)
	}

	cfg := tiling.Config[string]{
		MaxK:           opts.MaxK,
		MaxRowNoise:    opts.MaxRowNoise,
		MaxColumnNoise: opts.MaxColumnNoise,
		CostModel:      costModel,
		Observer: func(c tiling.Commit[string]) {
			m.config.Recorder.ObservePattern(c.Pattern.Area(), c.FalsePositives, c.Cost)
		},
	}
	if m.config.Verbose {
		cfg.Logger = log
	}

	log.Debug("Resolved %s", opts)
	log.Info("Mining %d transactions x %d items (%d elements)", summary.Transactions, summary.Items, summary.Elements)
	start := time.Now()
	res, runErr := tiling.Run(ctx, ds.Transactions, cfg)
	elapsed := time.Since(start)

	result = BuildResult(res, summary, opts)
	result.Duration = elapsed
	result.MinedAt = start
	result.Version = m.config.Version

	if runErr != nil {
		err = classify(runErr)
		result.StopReason = apperrors.GetErrorCode(err)
		log.Warn("Mining interrupted after %d patterns: %v", len(result.Patterns), runErr)
	} else {
		log.Info("Mined %d patterns in %v, cost %.2f -> %.2f (%s)",
			len(result.Patterns), elapsed, result.InitialCost, result.FinalCost, result.StopReason)
	}

	span.SetAttributes(
		attribute.Int("panda.patterns", len(result.Patterns)),
		attribute.Float64("panda.final_cost", result.FinalCost),
		attribute.String("panda.stop_reason", result.StopReason),
	)
	m.config.Recorder.ObserveRun(result.StopReason, elapsed, len(result.Patterns), result.CompressionRatio(), err)
	return result, err
}

func classify(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(apperrors.CodeTimeout, "mining timed out", err)
	case errors.Is(err, context.Canceled):
		return apperrors.Wrap(apperrors.CodeCancelled, "mining cancelled", err)
	default:
		return apperrors.Wrap(apperrors.CodeMiningFailed, "mining failed", err)
	}
}

// BuildResult converts a core result into the result document. Patterns
// are ranked in commit order.
func BuildResult(res *tiling.Result[string], summary model.DatasetSummary, opts Options) *model.MiningResult {
	out := &model.MiningResult{
		Dataset:       summary,
		Params:        opts.Params(),
		Patterns:      make([]model.PatternResult, 0, len(res.Patterns)),
		InitialCost:   res.InitialCost,
		FinalCost:     res.FinalCost,
		ResidualCount: res.ResidualCount,
		TotalArea:     res.TotalArea,
		Iterations:    res.Iterations,
		StopReason:    res.Reason.String(),
	}
	for i, p := range res.Patterns {
		pr := model.PatternResult{
			Rank:         i + 1,
			Items:        p.Items(),
			Transactions: p.TransactionIDs(),
			Area:         p.Area(),
		}
		if i < len(res.FalsePositives) {
			pr.FalsePositives = res.FalsePositives[i]
		}
		if i < len(res.Costs) {
			pr.Cost = res.Costs[i]
		}
		if i < len(res.Supports) {
			pr.Support = res.Supports[i]
		}
		if res.Rows > 0 {
			pr.RowShare = float64(p.TransactionCount()) / float64(res.Rows)
		}
		out.Patterns = append(out.Patterns, pr)
	}
	return out
}

// String renders options for log lines.
func (o Options) String() string {
	return fmt.Sprintf("profile=%s max_k=%d row_noise=%.2f col_noise=%.2f cost=%s",
		o.Profile, o.MaxK, o.MaxRowNoise, o.MaxColumnNoise, o.CostModel)
}
