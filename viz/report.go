package viz

import (
	"fmt"
	"strings"

	"github.com/sarchlab/uemu/tracing"
)

// SummaryReport renders a full execution report combining the performance
// summary, trace statistics, and the main visualizations.
func (v *VisualizationSystem) SummaryReport() string {
	lines := []string{
		"Virtual Machine Execution Report",
		strings.Repeat("=", 50),
		"",
	}

	if v.metrics != nil {
		lines = append(lines, v.metrics.Summary(), "")
	}

	if v.tracer != nil {
		stats := v.tracer.GetStatistics()
		lines = append(lines,
			"Execution Trace Summary",
			strings.Repeat("-", 30),
			fmt.Sprintf("Total Events: %d", stats.TotalEvents),
			fmt.Sprintf("Duration: %.3fs", stats.Duration),
			fmt.Sprintf("Events/Second: %.0f", stats.EventsPerSecond),
			fmt.Sprintf("Processors Used: %d", stats.ProcessorsUsed),
			fmt.Sprintf("Threads Used: %d", stats.ThreadsUsed),
			"",
		)
	}

	lines = append(lines,
		"Timeline Visualization",
		strings.Repeat("-", 30),
		v.Timeline(60, tracing.NoProcessor),
		"",
		"Performance Chart",
		strings.Repeat("-", 30),
		v.PerformanceChart(50),
		"",
	)

	return strings.Join(lines, "\n")
}
