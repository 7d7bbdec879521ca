package metrics

import (
	"fmt"
	"sort"
	"strings"
)

// Summary renders a human-readable performance summary.
func (m *PerformanceMetrics) Summary() string {
	m.lock.Lock()
	defer m.lock.Unlock()

	lines := []string{
		"Performance Summary",
		strings.Repeat("=", 50),
		fmt.Sprintf("Instructions Executed: %d", m.instructionsExecuted),
		fmt.Sprintf("Memory Accesses: %d", m.memoryAccesses),
		fmt.Sprintf("Execution Time: %.3fs", m.executionTime),
		fmt.Sprintf("Instructions/Second: %.0f", m.instructionsPerSecond()),
		fmt.Sprintf("Memory Accesses/Second: %.0f",
			m.memoryAccessesPerSecond()),
		fmt.Sprintf("Cache Hit Rate: %.1f%%", m.cacheHitRate()*100),
		fmt.Sprintf("Cycles per Instruction: %.2f",
			m.cyclesPerInstruction()),
		fmt.Sprintf("Context Switches: %d", m.contextSwitches),
	}

	if m.detailedTracking && len(m.instructionBreakdown) > 0 {
		lines = append(lines,
			"",
			"Instruction Breakdown:",
			strings.Repeat("-", 30),
		)

		kinds := make([]string, 0, len(m.instructionBreakdown))
		for kind := range m.instructionBreakdown {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)

		for _, kind := range kinds {
			count := m.instructionBreakdown[kind]
			percentage := float64(count) /
				float64(m.instructionsExecuted) * 100
			lines = append(lines, fmt.Sprintf("%s: %d (%.1f%%)",
				kind, count, percentage))
		}
	}

	return strings.Join(lines, "\n")
}
