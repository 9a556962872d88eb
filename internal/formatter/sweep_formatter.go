package formatter

import (
	"github.com/panda-miner/pkg/model"
	"github.com/panda-miner/pkg/utils"
)

// FormatSweep prints a ranked sweep grid.
func FormatSweep(s *model.SweepResult, log utils.Logger) {
	if s == nil {
		return
	}
	log.Info("=== Parameter Sweep ===")
	log.Info("Dataset:        %s (%d transactions x %d items)", s.Dataset.Name, s.Dataset.Transactions, s.Dataset.Items)
	log.Info("Grid points:    %d", len(s.Entries))
	log.Info("")
	log.Info("  %4s  %9s  %9s  %8s  %10s  %8s  %s", "rank", "row_noise", "col_noise", "patterns", "cost", "coverage", "stop")
	for i, e := range s.Entries {
		if e.Error != "" {
			log.Info("  %4d  %9.2f  %9.2f  %8s  %10s  %8s  error: %s",
				i+1, e.MaxRowNoise, e.MaxColumnNoise, "-", "-", "-", truncateString(e.Error, 80))
			continue
		}
		log.Info("  %4d  %9.2f  %9.2f  %8d  %10.2f  %7.2f%%  %s",
			i+1, e.MaxRowNoise, e.MaxColumnNoise, e.Patterns, e.FinalCost, e.Coverage*100, e.StopReason)
	}
	if best, ok := s.Best(); ok {
		log.Info("")
		log.Info("Best: row_noise=%.2f column_noise=%.2f cost=%.2f", best.MaxRowNoise, best.MaxColumnNoise, best.FinalCost)
	}
}
