// Package formatter renders mining results to a logger and to summary maps.
package formatter

import (
	"sort"

	"github.com/panda-miner/pkg/model"
	"github.com/panda-miner/pkg/utils"
)

// View names accepted by Registry.Get.
const (
	ViewSummary  = "summary"
	ViewPatterns = "patterns"
)

// ResultFormatter is the interface for formatting mining results.
type ResultFormatter interface {
	// Format outputs the mining result to the logger.
	Format(result *model.MiningResult, log utils.Logger)

	// FormatSummary returns a summary map for serialization.
	FormatSummary(result *model.MiningResult) map[string]interface{}

	// View returns the name this formatter is registered under.
	View() string
}

// Registry manages formatter instances.
type Registry struct {
	formatters map[string]ResultFormatter
	fallback   ResultFormatter
}

// NewRegistry creates a new formatter registry with default formatters.
func NewRegistry() *Registry {
	r := &Registry{
		formatters: make(map[string]ResultFormatter),
		fallback:   &PatternFormatter{TopN: DefaultTopN, MaxItems: DefaultMaxItems},
	}
	r.Register(&SummaryFormatter{})
	r.Register(r.fallback)
	return r
}

// Register registers a formatter under its view name.
func (r *Registry) Register(f ResultFormatter) {
	r.formatters[f.View()] = f
}

// Get returns the formatter for a view, or the pattern listing.
func (r *Registry) Get(view string) ResultFormatter {
	if f, ok := r.formatters[view]; ok {
		return f
	}
	return r.fallback
}

// Views lists the registered view names.
func (r *Registry) Views() []string {
	views := make([]string, 0, len(r.formatters))
	for v := range r.formatters {
		views = append(views, v)
	}
	sort.Strings(views)
	return views
}

// Format formats the result with the formatter registered for view.
func (r *Registry) Format(view string, result *model.MiningResult, log utils.Logger) {
	if result == nil {
		return
	}
	r.Get(view).Format(result, log)
}

// FormatSummary returns a summary map using the formatter for view.
func (r *Registry) FormatSummary(view string, result *model.MiningResult) map[string]interface{} {
	if result == nil {
		return nil
	}
	return r.Get(view).FormatSummary(result)
}

// truncateString truncates a string to maxLen characters.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
