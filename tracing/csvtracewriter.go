package tracing

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// A CSVTraceWriter streams trace events into a CSV file as they are
// recorded. Attach it to a tracer with AttachWriter.
type CSVTraceWriter struct {
	lock sync.Mutex
	f    *os.File
	w    *csv.Writer
}

// NewCSVTraceWriter creates a CSVTraceWriter backed by a fresh file. The
// writer is flushed at process exit.
func NewCSVTraceWriter() *CSVTraceWriter {
	filename := "uemu_trace_" + xid.New().String() + ".csv"

	f, err := os.Create(filename)
	if err != nil {
		panic(err)
	}
	fmt.Fprintf(os.Stderr, "Recording trace in %s\n", filename)

	w := csv.NewWriter(f)
	err = w.Write([]string{
		"timestamp", "event_type", "processor_id",
		"thread_id", "address", "data",
	})
	if err != nil {
		panic(err)
	}

	t := &CSVTraceWriter{f: f, w: w}
	atexit.Register(t.Flush)

	return t
}

// WriteEvent appends one event row.
func (t *CSVTraceWriter) WriteEvent(e TraceEvent) {
	t.lock.Lock()
	defer t.lock.Unlock()

	dataStr := ""
	if e.Data != nil {
		b, err := json.Marshal(e.Data)
		if err == nil {
			dataStr = string(b)
		}
	}

	address := ""
	if e.Address != nil {
		address = strconv.FormatUint(*e.Address, 10)
	}

	err := t.w.Write([]string{
		strconv.FormatFloat(e.Timestamp, 'g', -1, 64),
		e.Type.String(),
		strconv.Itoa(e.ProcessorID),
		e.ThreadID,
		address,
		dataStr,
	})
	if err != nil {
		panic(err)
	}
}

// Flush forces buffered rows to disk.
func (t *CSVTraceWriter) Flush() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.w.Flush()
}
