package vm

import (
	"log"
	"time"

	"github.com/rs/xid"

	"github.com/sarchlab/uemu/cpu"
	"github.com/sarchlab/uemu/datarecording"
	"github.com/sarchlab/uemu/insts"
	"github.com/sarchlab/uemu/mem"
	"github.com/sarchlab/uemu/metrics"
	"github.com/sarchlab/uemu/tracing"
)

// Builder configures and builds virtual machines.
type Builder struct {
	name             string
	memoryCapacity   uint64
	numProcessors    int
	set              *insts.InstructionSet
	loader           ProgramLoader
	resetHook        func(m *VirtualMachine)
	customHandler    cpu.CustomInstructionHandler
	tracingEnabled   bool
	maxTraceEvents   int
	metricsEnabled   bool
	detailedMetrics  bool
	recordingEnabled bool
	recordingPath    string
}

// MakeBuilder creates a Builder with the default configuration: 64 KiB of
// memory, one processor, the default instruction set, tracing and metrics
// on, data recording off.
func MakeBuilder() Builder {
	return Builder{
		memoryCapacity: 65536,
		numProcessors:  1,
		set:            insts.NewDefaultSet(),
		loader:         assemblyLoader{},
		tracingEnabled: true,
		metricsEnabled: true,
	}
}

// WithName sets the machine name.
func (b Builder) WithName(name string) Builder {
	b.name = name
	return b
}

// WithMemoryCapacity sets the memory capacity in bytes.
func (b Builder) WithMemoryCapacity(capacity uint64) Builder {
	b.memoryCapacity = capacity
	return b
}

// WithNumProcessors sets the number of processors.
func (b Builder) WithNumProcessors(n int) Builder {
	b.numProcessors = n
	return b
}

// WithInstructionSet replaces the default instruction set.
func (b Builder) WithInstructionSet(set *insts.InstructionSet) Builder {
	b.set = set
	return b
}

// WithProgramLoader replaces the default assembly loader.
func (b Builder) WithProgramLoader(loader ProgramLoader) Builder {
	b.loader = loader
	return b
}

// WithResetHook registers a hook invoked at the end of Reset.
func (b Builder) WithResetHook(hook func(m *VirtualMachine)) Builder {
	b.resetHook = hook
	return b
}

// WithCustomInstructionHandler installs a handler for system instructions
// the processors do not know, on every processor.
func (b Builder) WithCustomInstructionHandler(
	h cpu.CustomInstructionHandler,
) Builder {
	b.customHandler = h
	return b
}

// WithoutTracing disables execution tracing.
func (b Builder) WithoutTracing() Builder {
	b.tracingEnabled = false
	return b
}

// WithMaxTraceEvents caps the tracer's in-memory event list.
func (b Builder) WithMaxTraceEvents(n int) Builder {
	b.maxTraceEvents = n
	return b
}

// WithoutMetrics disables performance metrics.
func (b Builder) WithoutMetrics() Builder {
	b.metricsEnabled = false
	return b
}

// WithDetailedMetrics turns on detailed metric tracking (snapshots,
// breakdowns, histograms, latency records).
func (b Builder) WithDetailedMetrics() Builder {
	b.detailedMetrics = true
	return b
}

// WithDataRecording streams trace events into a SQLite database at the
// given path. An empty path picks a generated name.
func (b Builder) WithDataRecording(path string) Builder {
	b.recordingEnabled = true
	b.recordingPath = path
	return b
}

// Build creates the virtual machine.
func (b Builder) Build() *VirtualMachine {
	if b.numProcessors <= 0 {
		log.Panic("a virtual machine must have at least one processor")
	}

	m := &VirtualMachine{
		name:           b.name,
		decoder:        insts.NewDecoder(b.set),
		loader:         b.loader,
		resetHook:      b.resetHook,
		state:          StateIdle,
		loadedPrograms: make(map[string]*Program),
		instructionMem: make(map[int]map[uint64]insts.Instruction),
		entryPoints:    make(map[int]uint64),
		nextSlot:       make(map[int]uint64),
		now:            time.Now,
	}

	if m.name == "" {
		m.name = "uemu_" + xid.New().String()
	}

	m.memory = mem.MakeBuilder().
		WithCapacity(b.memoryCapacity).
		Build()
	m.dataSpace = mem.NewAddressSpace(b.memoryCapacity)

	for i := 0; i < b.numProcessors; i++ {
		pb := cpu.MakeBuilder().WithID(i)
		if b.customHandler != nil {
			pb = pb.WithCustomHandler(b.customHandler)
		}

		p := pb.Build()

		m.processors = append(m.processors, p)
		m.instructionMem[i] = make(map[uint64]insts.Instruction)
		m.nextSlot[i] = 0
	}

	if b.tracingEnabled {
		tb := tracing.MakeBuilder()
		if b.maxTraceEvents > 0 {
			tb = tb.WithMaxEvents(b.maxTraceEvents)
		}

		m.tracer = tb.Build()
	}

	if b.metricsEnabled {
		if b.detailedMetrics {
			m.metrics = metrics.NewDetailedPerformanceMetrics()
		} else {
			m.metrics = metrics.NewPerformanceMetrics()
		}
	}

	if b.recordingEnabled && m.tracer != nil {
		recorder := datarecording.NewDataRecorder(b.recordingPath)
		m.recorder = recorder
		m.tracer.AttachWriter(tracing.NewDBTracer(recorder))
	}

	return m
}
