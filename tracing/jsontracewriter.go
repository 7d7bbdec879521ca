package tracing

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// A JSONTraceWriter streams trace events into a JSON array on disk as they
// are recorded. Attach it to a tracer with AttachWriter.
type JSONTraceWriter struct {
	lock       sync.Mutex
	w          io.Writer
	firstEvent bool
}

// NewJSONTraceWriter creates a JSONTraceWriter backed by a fresh file. The
// closing bracket is written at process exit.
func NewJSONTraceWriter() *JSONTraceWriter {
	filename := "uemu_trace_" + xid.New().String() + ".json"

	f, err := os.Create(filename)
	if err != nil {
		panic(err)
	}
	fmt.Fprintf(os.Stderr, "Recording trace in %s\n", filename)

	_, err = f.Write([]byte("[\n"))
	if err != nil {
		panic(err)
	}

	t := &JSONTraceWriter{w: f, firstEvent: true}
	atexit.Register(t.finish)

	return t
}

// WriteEvent appends one event to the array.
func (t *JSONTraceWriter) WriteEvent(e TraceEvent) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.firstEvent {
		t.firstEvent = false
	} else {
		_, err := t.w.Write([]byte(",\n"))
		if err != nil {
			panic(err)
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		panic(err)
	}

	_, err = t.w.Write(b)
	if err != nil {
		panic(err)
	}
}

func (t *JSONTraceWriter) finish() {
	t.lock.Lock()
	defer t.lock.Unlock()

	_, err := t.w.Write([]byte("\n]"))
	if err != nil {
		panic(err)
	}
}
