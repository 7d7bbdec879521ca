package viz

import (
	"fmt"
	"strings"
)

// PerformanceChart renders key derived metrics as a horizontal bar chart.
func (v *VisualizationSystem) PerformanceChart(width int) string {
	if v.metrics == nil {
		return "No metrics available for performance chart"
	}

	lines := []string{
		"Performance Chart",
		strings.Repeat("=", width),
		"",
	}

	chartMetrics := []struct {
		name  string
		value float64
	}{
		{"Instructions/sec", v.metrics.InstructionsPerSecond()},
		{"Memory Acc/sec", v.metrics.MemoryAccessesPerSecond()},
		{"Cache Hit Rate", v.metrics.CacheHitRate() * 100},
		{"CPI", v.metrics.CyclesPerInstruction()},
	}

	maxVal := 0.0
	for _, m := range chartMetrics {
		if m.value > maxVal {
			maxVal = m.value
		}
	}

	if maxVal == 0 {
		lines = append(lines, "No performance data available")
		return strings.Join(lines, "\n")
	}

	barWidth := width - 25

	for _, m := range chartMetrics {
		barLength := int(m.value / maxVal * float64(barWidth))
		bar := strings.Repeat("#", barLength) +
			strings.Repeat(" ", barWidth-barLength)

		switch {
		case m.name == "Cache Hit Rate":
			lines = append(lines, fmt.Sprintf("%-15s |%s| %.1f%%",
				m.name, bar, m.value))
		case m.value >= 1000:
			lines = append(lines, fmt.Sprintf("%-15s |%s| %.0f",
				m.name, bar, m.value))
		default:
			lines = append(lines, fmt.Sprintf("%-15s |%s| %.2f",
				m.name, bar, m.value))
		}
	}

	lines = append(lines, "")

	return strings.Join(lines, "\n")
}
