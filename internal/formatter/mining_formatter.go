package formatter

import (
	"fmt"
	"strings"

	"github.com/panda-miner/pkg/model"
	"github.com/panda-miner/pkg/utils"
)

const (
	// DefaultTopN is the number of patterns listed by default.
	DefaultTopN = 20
	// DefaultMaxItems caps the items printed per pattern.
	DefaultMaxItems = 12
)

// SummaryFormatter prints the run summary only.
type SummaryFormatter struct{}

// View implements ResultFormatter.
func (f *SummaryFormatter) View() string { return ViewSummary }

// Format implements ResultFormatter.
func (f *SummaryFormatter) Format(r *model.MiningResult, log utils.Logger) {
	d := r.Dataset
	log.Info("=== Mining Results ===")
	if r.TaskUUID != "" {
		log.Info("Task UUID:      %s", r.TaskUUID)
	}
	log.Info("Dataset:        %s", d.Name)
	log.Info("Shape:          %d transactions x %d items, %d elements (density %.4f)",
		d.Transactions, d.Items, d.Elements, d.Density)
	log.Info("Parameters:     max_k=%d row_noise=%.2f column_noise=%.2f cost=%s",
		r.Params.MaxK, r.Params.MaxRowNoise, r.Params.MaxColumnNoise, r.Params.CostModel)
	log.Info("Patterns:       %d (%d iterations)", len(r.Patterns), r.Iterations)
	log.Info("Cost:           %.2f -> %.2f (ratio %.4f)", r.InitialCost, r.FinalCost, r.CompressionRatio())
	log.Info("Coverage:       %.2f%% (%d residual elements)", r.Coverage()*100, r.ResidualCount)
	log.Info("Tiled area:     %d cells", r.TotalArea)
	log.Info("Stop reason:    %s", r.StopReason)
	log.Info("Duration:       %v", r.Duration)
	log.Info("")
}

// FormatSummary implements ResultFormatter.
func (f *SummaryFormatter) FormatSummary(r *model.MiningResult) map[string]interface{} {
	return map[string]interface{}{
		"task_uuid":         r.TaskUUID,
		"dataset":           r.Dataset.Name,
		"transactions":      r.Dataset.Transactions,
		"items":             r.Dataset.Items,
		"elements":          r.Dataset.Elements,
		"patterns":          len(r.Patterns),
		"initial_cost":      r.InitialCost,
		"final_cost":        r.FinalCost,
		"compression_ratio": r.CompressionRatio(),
		"coverage":          r.Coverage(),
		"total_area":        r.TotalArea,
		"stop_reason":       r.StopReason,
		"duration_ms":       r.Duration.Milliseconds(),
	}
}

// PatternFormatter prints the summary followed by the top patterns.
type PatternFormatter struct {
	// TopN limits the listed patterns; 0 lists all.
	TopN int
	// MaxItems limits the items shown per pattern; 0 shows all.
	MaxItems int
}

// View implements ResultFormatter.
func (f *PatternFormatter) View() string { return ViewPatterns }

// Format implements ResultFormatter.
func (f *PatternFormatter) Format(r *model.MiningResult, log utils.Logger) {
	(&SummaryFormatter{}).Format(r, log)

	if len(r.Patterns) == 0 {
		log.Info("No patterns found")
		return
	}

	log.Info("=== Patterns ===")
	log.Info("  %4s  %6s  %6s  %6s  %7s  %10s  %s", "rank", "items", "rows", "area", "density", "cost", "items")
	count := len(r.Patterns)
	if f.TopN > 0 {
		count = min(f.TopN, count)
	}
	for _, p := range r.Patterns[:count] {
		log.Info("  %4d  %6d  %6d  %6d  %7.3f  %10.2f  %s",
			p.Rank, len(p.Items), len(p.Transactions), p.Area, p.Density(), p.Cost, f.itemList(p.Items))
	}
	if count < len(r.Patterns) {
		log.Info("  ... and %d more patterns", len(r.Patterns)-count)
	}
	log.Info("")
}

func (f *PatternFormatter) itemList(items []string) string {
	shown := items
	if f.MaxItems > 0 && len(items) > f.MaxItems {
		shown = items[:f.MaxItems]
	}
	s := strings.Join(shown, " ")
	if len(shown) < len(items) {
		s += fmt.Sprintf(" (+%d)", len(items)-len(shown))
	}
	return truncateString("{"+s+"}", 120)
}

// FormatSummary implements ResultFormatter.
func (f *PatternFormatter) FormatSummary(r *model.MiningResult) map[string]interface{} {
	summary := (&SummaryFormatter{}).FormatSummary(r)

	count := len(r.Patterns)
	if f.TopN > 0 {
		count = min(f.TopN, count)
	}
	top := make([]map[string]interface{}, 0, count)
	for _, p := range r.Patterns[:count] {
		top = append(top, map[string]interface{}{
			"rank":            p.Rank,
			"items":           p.Items,
			"transactions":    len(p.Transactions),
			"row_share":       p.RowShare,
			"support":         p.Support,
			"false_positives": p.FalsePositives,
			"cost":            p.Cost,
		})
	}
	summary["top_patterns"] = top
	return summary
}
