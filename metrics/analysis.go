package metrics

// EfficiencyAnalysis classifies an execution and names its bottlenecks.
type EfficiencyAnalysis struct {
	OverallEfficiency string   `json:"overall_efficiency"`
	Bottlenecks       []string `json:"bottlenecks"`
	Recommendations   []string `json:"recommendations"`
}

// A MetricComparison relates one derived metric across two runs.
type MetricComparison struct {
	Self               float64 `json:"self"`
	Other              float64 `json:"other"`
	ImprovementPercent float64 `json:"improvement_percent"`
}

// EfficiencyAnalysis inspects the derived metrics for known bottleneck
// patterns. No bottleneck is "good", one is "moderate", more is "poor".
func (m *PerformanceMetrics) EfficiencyAnalysis() EfficiencyAnalysis {
	m.lock.Lock()
	defer m.lock.Unlock()

	a := EfficiencyAnalysis{
		OverallEfficiency: "unknown",
		Bottlenecks:       []string{},
		Recommendations:   []string{},
	}

	if m.cacheHitRate() < 0.8 {
		a.Bottlenecks = append(a.Bottlenecks, "Low cache hit rate")
		a.Recommendations = append(a.Recommendations,
			"Optimize memory access patterns")
	}

	if m.cyclesPerInstruction() > 3.0 {
		a.Bottlenecks = append(a.Bottlenecks, "High cycles per instruction")
		a.Recommendations = append(a.Recommendations,
			"Reduce instruction dependencies")
	}

	if m.contextSwitchOverhead() > 0.1 {
		a.Bottlenecks = append(a.Bottlenecks, "High context switch overhead")
		a.Recommendations = append(a.Recommendations,
			"Reduce thread contention")
	}

	switch len(a.Bottlenecks) {
	case 0:
		a.OverallEfficiency = "good"
	case 1:
		a.OverallEfficiency = "moderate"
	default:
		a.OverallEfficiency = "poor"
	}

	return a
}

// CompareWith relates this run's key derived metrics to another run's.
// Metrics that are zero in the other run are left out, as no relative
// improvement can be computed for them.
func (m *PerformanceMetrics) CompareWith(
	other *PerformanceMetrics,
) map[string]MetricComparison {
	selfValues := m.keyMetrics()
	otherValues := other.keyMetrics()

	comparison := make(map[string]MetricComparison)

	for key, selfVal := range selfValues {
		otherVal := otherValues[key]
		if otherVal == 0 {
			continue
		}

		comparison[key] = MetricComparison{
			Self:               selfVal,
			Other:              otherVal,
			ImprovementPercent: (selfVal - otherVal) / otherVal * 100,
		}
	}

	return comparison
}

func (m *PerformanceMetrics) keyMetrics() map[string]float64 {
	m.lock.Lock()
	defer m.lock.Unlock()

	return map[string]float64{
		"instructions_per_second": m.instructionsPerSecond(),
		"cache_hit_rate":          m.cacheHitRate(),
		"cycles_per_instruction":  m.cyclesPerInstruction(),
	}
}
