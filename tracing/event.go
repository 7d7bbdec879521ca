// Package tracing collects typed execution events from the VM, the
// processors, and the memory system, and exports them for analysis and
// visualization.
package tracing

import "encoding/json"

// EventType categorizes trace events.
type EventType int

// The trace event types.
const (
	Instruction EventType = iota
	MemoryAccess
	ContextSwitch
	SystemCall
	Synchronization
	Security
	Performance
	Custom
)

var eventTypeNames = []string{
	"INSTRUCTION",
	"MEMORY_ACCESS",
	"CONTEXT_SWITCH",
	"SYSTEM_CALL",
	"SYNCHRONIZATION",
	"SECURITY",
	"PERFORMANCE",
	"CUSTOM",
}

// AllEventTypes lists every event type, in declaration order.
var AllEventTypes = []EventType{
	Instruction, MemoryAccess, ContextSwitch, SystemCall,
	Synchronization, Security, Performance, Custom,
}

func (t EventType) String() string {
	if int(t) < 0 || int(t) >= len(eventTypeNames) {
		return "CUSTOM"
	}
	return eventTypeNames[int(t)]
}

// MarshalJSON encodes the event type by name.
func (t EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// EventTypeByName maps a name back to its event type. Unknown names map to
// Custom.
func EventTypeByName(name string) EventType {
	for i, n := range eventTypeNames {
		if n == name {
			return EventType(i)
		}
	}
	return Custom
}

// NoProcessor marks events not attributed to any processor.
const NoProcessor = -1

// A TraceEvent is one recorded event. Events are append-only and owned by
// the tracer that recorded them.
type TraceEvent struct {
	// Timestamp is in seconds since the tracer was created.
	Timestamp float64 `json:"timestamp"`

	Type        EventType      `json:"event_type"`
	ProcessorID int            `json:"processor_id"`
	ThreadID    string         `json:"thread_id,omitempty"`
	Address     *uint64        `json:"address,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// A Ctx attributes an event to its execution context. Use NoCtx for events
// with no context and OnProcessor for processor-owned events.
type Ctx struct {
	ProcessorID int
	ThreadID    string
	Address     *uint64
}

// NoCtx is the context for events not attributed to any processor.
var NoCtx = Ctx{ProcessorID: NoProcessor}

// OnProcessor makes a Ctx attributed to one processor.
func OnProcessor(id int) Ctx {
	return Ctx{ProcessorID: id}
}

// WithThread attaches a thread ID to the context.
func (c Ctx) WithThread(threadID string) Ctx {
	c.ThreadID = threadID
	return c
}

// WithAddress attaches a memory address to the context.
func (c Ctx) WithAddress(address uint64) Ctx {
	c.Address = &address
	return c
}
