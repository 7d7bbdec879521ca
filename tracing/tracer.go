package tracing

import (
	"sync"
	"time"
)

// An EventWriter receives every event appended to a tracer. Writers stream
// events to files or databases as the trace grows.
type EventWriter interface {
	WriteEvent(e TraceEvent)
}

// An ExecutionTracer records typed execution events.
//
// The event list is append-only and optionally capped: when the cap is
// exceeded the oldest event is evicted first. A single lock guards the
// event list, so processors running on separate goroutines can share one
// tracer.
type ExecutionTracer struct {
	lock sync.Mutex

	enabled   bool
	maxEvents int
	events    []TraceEvent
	startTime time.Time

	filters map[EventType]bool
	counts  map[EventType]uint64

	writers []EventWriter

	// now is replaceable for deterministic tests.
	now func() time.Time
}

// A Builder can build execution tracers.
type Builder struct {
	enabled   bool
	maxEvents int
}

// MakeBuilder creates a Builder with tracing enabled and no event cap.
func MakeBuilder() Builder {
	return Builder{enabled: true}
}

// WithMaxEvents caps the event list at n events, evicting oldest first.
func (b Builder) WithMaxEvents(n int) Builder {
	b.maxEvents = n
	return b
}

// Disabled creates the tracer in the disabled state.
func (b Builder) Disabled() Builder {
	b.enabled = false
	return b
}

// Build creates the tracer.
func (b Builder) Build() *ExecutionTracer {
	t := &ExecutionTracer{
		enabled:   b.enabled,
		maxEvents: b.maxEvents,
		startTime: time.Now(),
		filters:   make(map[EventType]bool),
		counts:    make(map[EventType]uint64),
		now:       time.Now,
	}

	for _, et := range AllEventTypes {
		t.filters[et] = true
	}

	return t
}

// Enable turns event recording on.
func (t *ExecutionTracer) Enable() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.enabled = true
}

// Disable turns event recording off.
func (t *ExecutionTracer) Disable() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.enabled = false
}

// SetEventFilter enables or disables recording for one event type.
func (t *ExecutionTracer) SetEventFilter(et EventType, enabled bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.filters[et] = enabled
}

// AttachWriter registers a writer that receives every recorded event.
func (t *ExecutionTracer) AttachWriter(w EventWriter) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.writers = append(t.writers, w)
}

// LogEvent records one event. It does nothing if tracing is disabled or the
// event type is filtered out.
func (t *ExecutionTracer) LogEvent(
	et EventType,
	data map[string]any,
	ctx Ctx,
) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if !t.enabled || !t.filters[et] {
		return
	}

	e := TraceEvent{
		Timestamp:   t.now().Sub(t.startTime).Seconds(),
		Type:        et,
		ProcessorID: ctx.ProcessorID,
		ThreadID:    ctx.ThreadID,
		Address:     ctx.Address,
		Data:        data,
	}

	t.events = append(t.events, e)
	t.counts[et]++

	if t.maxEvents > 0 && len(t.events) > t.maxEvents {
		t.events = t.events[1:]
	}

	for _, w := range t.writers {
		w.WriteEvent(e)
	}
}

// LogInstruction records an instruction execution event.
func (t *ExecutionTracer) LogInstruction(
	instruction string,
	pc uint64,
	registers map[string]int64,
	ctx Ctx,
) {
	data := map[string]any{
		"instruction": instruction,
		"pc":          pc,
	}
	if registers != nil {
		regs := make(map[string]int64, len(registers))
		for name, value := range registers {
			regs[name] = value
		}
		data["registers"] = regs
	}

	t.LogEvent(Instruction, data, ctx.WithAddress(pc))
}

// LogMemoryAccess records a memory access event.
func (t *ExecutionTracer) LogMemoryAccess(
	accessType string,
	address uint64,
	value *uint64,
	size int,
	ctx Ctx,
) {
	data := map[string]any{
		"access_type": accessType,
		"size":        size,
	}
	if value != nil {
		data["value"] = *value
	}

	t.LogEvent(MemoryAccess, data, ctx.WithAddress(address))
}

// LogContextSwitch records a context switch event.
func (t *ExecutionTracer) LogContextSwitch(
	fromThread, toThread string,
	processorID int,
	reason string,
) {
	data := map[string]any{
		"from_thread": fromThread,
		"to_thread":   toThread,
		"reason":      reason,
	}

	t.LogEvent(ContextSwitch, data, Ctx{
		ProcessorID: processorID,
		ThreadID:    toThread,
	})
}

// LogSynchronization records a synchronization event.
func (t *ExecutionTracer) LogSynchronization(
	operation, syncObject, result string,
	ctx Ctx,
) {
	data := map[string]any{
		"operation":   operation,
		"sync_object": syncObject,
		"result":      result,
	}

	t.LogEvent(Synchronization, data, ctx)
}

// LogSecurityEvent records a security-related event.
func (t *ExecutionTracer) LogSecurityEvent(
	event string,
	details map[string]any,
	ctx Ctx,
) {
	data := map[string]any{"event": event}
	for k, v := range details {
		data[k] = v
	}

	t.LogEvent(Security, data, ctx)
}

// An EventQuery filters recorded events. Nil fields match everything; set
// fields combine as AND conditions.
type EventQuery struct {
	Type        *EventType
	ProcessorID *int
	ThreadID    *string
	StartTime   *float64
	EndTime     *float64
}

// GetEvents returns the recorded events matching the query, in insertion
// order.
func (t *ExecutionTracer) GetEvents(q EventQuery) []TraceEvent {
	t.lock.Lock()
	defer t.lock.Unlock()

	result := make([]TraceEvent, 0, len(t.events))
	for _, e := range t.events {
		if q.Type != nil && e.Type != *q.Type {
			continue
		}
		if q.ProcessorID != nil && e.ProcessorID != *q.ProcessorID {
			continue
		}
		if q.ThreadID != nil && e.ThreadID != *q.ThreadID {
			continue
		}
		if q.StartTime != nil && e.Timestamp < *q.StartTime {
			continue
		}
		if q.EndTime != nil && e.Timestamp > *q.EndTime {
			continue
		}
		result = append(result, e)
	}

	return result
}

// Statistics summarizes a trace.
type Statistics struct {
	TotalEvents     int               `json:"total_events"`
	EventCounts     map[string]uint64 `json:"event_counts"`
	Duration        float64           `json:"duration"`
	EventsPerSecond float64           `json:"events_per_second"`
	ProcessorsUsed  int               `json:"processors_used"`
	ThreadsUsed     int               `json:"threads_used"`
}

// GetStatistics reports totals, per-type counts, observed duration, and the
// number of distinct processors and threads seen.
func (t *ExecutionTracer) GetStatistics() Statistics {
	t.lock.Lock()
	defer t.lock.Unlock()

	stats := Statistics{
		EventCounts: make(map[string]uint64),
	}

	if len(t.events) == 0 {
		return stats
	}

	stats.TotalEvents = len(t.events)
	for et, count := range t.counts {
		if count > 0 {
			stats.EventCounts[et.String()] = count
		}
	}

	if len(t.events) > 1 {
		stats.Duration =
			t.events[len(t.events)-1].Timestamp - t.events[0].Timestamp
	}

	divisor := stats.Duration
	if divisor < 0.001 {
		divisor = 0.001
	}
	stats.EventsPerSecond = float64(len(t.events)) / divisor

	processors := map[int]struct{}{}
	threads := map[string]struct{}{}
	for _, e := range t.events {
		if e.ProcessorID != NoProcessor {
			processors[e.ProcessorID] = struct{}{}
		}
		if e.ThreadID != "" {
			threads[e.ThreadID] = struct{}{}
		}
	}
	stats.ProcessorsUsed = len(processors)
	stats.ThreadsUsed = len(threads)

	return stats
}

// Clear discards all recorded events and zeroes the per-type counts.
func (t *ExecutionTracer) Clear() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.events = nil
	for et := range t.counts {
		t.counts[et] = 0
	}
}

// Reset clears the trace and restarts the tracer clock.
func (t *ExecutionTracer) Reset() {
	t.Clear()

	t.lock.Lock()
	defer t.lock.Unlock()
	t.startTime = t.now()
}
