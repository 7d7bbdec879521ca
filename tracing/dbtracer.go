package tracing

import (
	"encoding/json"
	"sync"

	"github.com/sarchlab/uemu/datarecording"
)

// traceEventEntry is the flat row shape recorded per event.
type traceEventEntry struct {
	Timestamp   float64
	EventType   string
	ProcessorID int
	ThreadID    string
	Address     int64
	Data        string
}

// A DBTracer streams trace events into a data recorder so that traces
// survive the process and can be queried offline. Attach it to a tracer
// with AttachWriter.
type DBTracer struct {
	lock     sync.Mutex
	recorder datarecording.DataRecorder
}

// NewDBTracer creates a DBTracer on the given recorder and creates the
// trace_events table.
func NewDBTracer(recorder datarecording.DataRecorder) *DBTracer {
	t := &DBTracer{recorder: recorder}

	recorder.CreateTable("trace_events", traceEventEntry{})

	return t
}

// WriteEvent records one event row.
func (t *DBTracer) WriteEvent(e TraceEvent) {
	t.lock.Lock()
	defer t.lock.Unlock()

	dataStr := ""
	if e.Data != nil {
		b, err := json.Marshal(e.Data)
		if err == nil {
			dataStr = string(b)
		}
	}

	address := int64(-1)
	if e.Address != nil {
		address = int64(*e.Address)
	}

	t.recorder.InsertData("trace_events", traceEventEntry{
		Timestamp:   e.Timestamp,
		EventType:   e.Type.String(),
		ProcessorID: e.ProcessorID,
		ThreadID:    e.ThreadID,
		Address:     address,
		Data:        dataStr,
	})
}
