package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sarchlab/uemu/tracing"
)

type ganttPeriod struct {
	start, end float64
}

// ThreadGantt renders thread activity over time, one row per thread.
// Activity is inferred from context-switch events; each switch marks a
// short activity period for the thread switched to.
func (v *VisualizationSystem) ThreadGantt(width int) string {
	if v.tracer == nil {
		return "No tracer available for Gantt chart"
	}

	et := tracing.ContextSwitch
	events := v.tracer.GetEvents(tracing.EventQuery{Type: &et})

	threadPeriods := make(map[string][]ganttPeriod)
	for _, e := range events {
		if e.ThreadID == "" {
			continue
		}

		threadPeriods[e.ThreadID] = append(threadPeriods[e.ThreadID],
			ganttPeriod{start: e.Timestamp, end: e.Timestamp + 0.1})
	}

	if len(threadPeriods) == 0 {
		return "No thread activity found"
	}

	minTime, maxTime := timeRange(threadPeriods)
	if maxTime == minTime {
		return "All events at same time"
	}

	lines := []string{
		"Thread Gantt Chart",
		strings.Repeat("=", width),
		"",
	}

	threadIDs := make([]string, 0, len(threadPeriods))
	for tid := range threadPeriods {
		threadIDs = append(threadIDs, tid)
	}
	sort.Strings(threadIDs)

	chartWidth := width - 15
	duration := maxTime - minTime

	for _, tid := range threadIDs {
		timeline := make([]byte, chartWidth)
		for i := range timeline {
			timeline[i] = ' '
		}

		for _, p := range threadPeriods[tid] {
			startPos := int((p.start - minTime) / duration *
				float64(chartWidth))
			endPos := int((p.end - minTime) / duration *
				float64(chartWidth))

			for pos := startPos; pos <= endPos && pos < chartWidth; pos++ {
				if pos >= 0 {
					timeline[pos] = '#'
				}
			}
		}

		lines = append(lines, fmt.Sprintf("Thread %-8s |%s|",
			tid, string(timeline)))
	}

	lines = append(lines,
		"",
		fmt.Sprintf("Time Range: %.3fs - %.3fs", minTime, maxTime),
		"",
	)

	return strings.Join(lines, "\n")
}

func timeRange(
	threadPeriods map[string][]ganttPeriod,
) (minTime, maxTime float64) {
	first := true

	for _, periods := range threadPeriods {
		for _, p := range periods {
			if first {
				minTime, maxTime = p.start, p.end
				first = false
				continue
			}

			if p.start < minTime {
				minTime = p.start
			}
			if p.end > maxTime {
				maxTime = p.end
			}
		}
	}

	return minTime, maxTime
}
