// Package viz renders execution traces and performance metrics into
// text-based visualizations and exportable data structures.
package viz

import (
	"encoding/json"

	"github.com/sarchlab/uemu/metrics"
	"github.com/sarchlab/uemu/tracing"
)

// A VisualizationSystem renders the data collected by a tracer and a
// metrics tracker. Either may be nil; renderings that need a missing
// source return a placeholder message.
type VisualizationSystem struct {
	tracer  *tracing.ExecutionTracer
	metrics *metrics.PerformanceMetrics
}

// NewVisualizationSystem creates a visualization system over the given
// data sources.
func NewVisualizationSystem(
	tracer *tracing.ExecutionTracer,
	m *metrics.PerformanceMetrics,
) *VisualizationSystem {
	return &VisualizationSystem{
		tracer:  tracer,
		metrics: m,
	}
}

// Timeline renders the per-processor event timeline. Pass
// tracing.NoProcessor to include all processors.
func (v *VisualizationSystem) Timeline(width, processorID int) string {
	if v.tracer == nil {
		return "No tracer available for timeline generation"
	}

	return v.tracer.AsciiTimeline(width, processorID)
}

// ChromeTraceJSON renders the trace in the JSON format that
// chrome://tracing loads.
func (v *VisualizationSystem) ChromeTraceJSON() (string, error) {
	trace := tracing.ChromeTrace{TraceEvents: []tracing.ChromeTraceEvent{}}
	if v.tracer != nil {
		trace = v.tracer.ExportChromeTrace()
	}

	b, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// ExportData bundles every visualization into one JSON document for
// downstream tooling.
func (v *VisualizationSystem) ExportData() (string, error) {
	data := map[string]any{
		"timeline":           v.Timeline(80, tracing.NoProcessor),
		"memory_heatmap":     v.MemoryHeatmap(80, 20),
		"performance_chart":  v.PerformanceChart(60),
		"thread_gantt":       v.ThreadGantt(80),
		"control_flow_graph": v.ControlFlowGraph(),
	}

	if v.tracer != nil {
		data["chrome_trace"] = v.tracer.ExportChromeTrace()
		data["trace_statistics"] = v.tracer.GetStatistics()
	}

	if v.metrics != nil {
		data["performance_metrics"] = v.metrics.Metrics()
		data["efficiency_analysis"] = v.metrics.EfficiencyAnalysis()
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}

	return string(b), nil
}
