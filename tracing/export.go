package tracing

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

// ExportJSON renders the full event list as indented JSON.
func (t *ExecutionTracer) ExportJSON() (string, error) {
	events := t.GetEvents(EventQuery{})

	b, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return "", err
	}

	return string(b), nil
}

const csvHeader = "timestamp,event_type,processor_id,thread_id,address,data"

// ExportCSV renders one CSV row per event. The data column holds the
// JSON-encoded data map, quoted.
func (t *ExecutionTracer) ExportCSV() string {
	events := t.GetEvents(EventQuery{})

	lines := []string{csvHeader}
	for _, e := range events {
		lines = append(lines, csvLine(e))
	}

	return strings.Join(lines, "\n")
}

func csvLine(e TraceEvent) string {
	dataStr := ""
	if e.Data != nil {
		b, err := json.Marshal(e.Data)
		if err == nil {
			dataStr = string(b)
		}
	}

	address := ""
	if e.Address != nil {
		address = fmt.Sprintf("%d", *e.Address)
	}

	return fmt.Sprintf("%v,%s,%d,%s,%s,%q",
		e.Timestamp, e.Type, e.ProcessorID, e.ThreadID, address, dataStr)
}

// ChromeTrace is the top-level object of the Chrome tracing JSON format.
type ChromeTrace struct {
	TraceEvents []ChromeTraceEvent `json:"traceEvents"`
}

// A ChromeTraceEvent is one instant event in the Chrome tracing format.
type ChromeTraceEvent struct {
	Name  string         `json:"name"`
	Phase string         `json:"ph"`
	TS    float64        `json:"ts"`
	PID   int            `json:"pid"`
	TID   uint32         `json:"tid"`
	Args  map[string]any `json:"args,omitempty"`
}

// ExportChromeTrace renders the events in the Chrome tracing format, with
// timestamps in microseconds.
func (t *ExecutionTracer) ExportChromeTrace() ChromeTrace {
	events := t.GetEvents(EventQuery{})

	trace := ChromeTrace{TraceEvents: []ChromeTraceEvent{}}
	for _, e := range events {
		pid := e.ProcessorID
		if pid == NoProcessor {
			pid = 0
		}

		trace.TraceEvents = append(trace.TraceEvents, ChromeTraceEvent{
			Name:  e.Type.String(),
			Phase: "I",
			TS:    e.Timestamp * 1e6,
			PID:   pid,
			TID:   hashThreadID(e.ThreadID),
			Args:  e.Data,
		})
	}

	return trace
}

func hashThreadID(threadID string) uint32 {
	if threadID == "" {
		return 0
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(threadID))

	return h.Sum32()
}

// glyph maps an event type to its timeline character.
func glyph(et EventType) byte {
	switch et {
	case Instruction:
		return 'I'
	case MemoryAccess:
		return 'M'
	case ContextSwitch:
		return 'C'
	case Synchronization:
		return 'S'
	default:
		return '*'
	}
}

// AsciiTimeline renders one timeline row per processor. Each event lands in
// the column proportional to its position within the processor's event
// span. Pass NoProcessor to include every processor.
func (t *ExecutionTracer) AsciiTimeline(width int, processorID int) string {
	q := EventQuery{}
	if processorID != NoProcessor {
		q.ProcessorID = &processorID
	}
	events := t.GetEvents(q)

	if len(events) == 0 {
		return "No events to display"
	}

	lines := []string{
		"Execution Timeline",
		strings.Repeat("=", width),
		"",
	}

	byProcessor := map[int][]TraceEvent{}
	for _, e := range events {
		pid := e.ProcessorID
		if pid == NoProcessor {
			pid = 0
		}
		byProcessor[pid] = append(byProcessor[pid], e)
	}

	pids := make([]int, 0, len(byProcessor))
	for pid := range byProcessor {
		pids = append(pids, pid)
	}
	sort.Ints(pids)

	barWidth := width - 20
	for _, pid := range pids {
		processorEvents := byProcessor[pid]
		lines = append(lines, fmt.Sprintf("Processor %d:", pid))

		if len(processorEvents) > 1 {
			start := processorEvents[0].Timestamp
			duration := processorEvents[len(processorEvents)-1].Timestamp - start

			bar := []byte(strings.Repeat("-", barWidth))
			for _, e := range processorEvents {
				if duration <= 0 {
					continue
				}
				pos := int((e.Timestamp - start) / duration * float64(barWidth))
				if pos >= len(bar) {
					pos = len(bar) - 1
				}
				if pos >= 0 {
					bar[pos] = glyph(e.Type)
				}
			}

			lines = append(lines, "  "+string(bar))
		}

		lines = append(lines, "")
	}

	lines = append(lines,
		"Legend: I=Instruction, M=Memory, C=Context Switch, S=Sync, *=Other",
		"")

	return strings.Join(lines, "\n")
}
