// Package vm assembles processors, memory, tracing, and metrics into a
// runnable virtual machine.
package vm

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sarchlab/uemu/cpu"
	"github.com/sarchlab/uemu/datarecording"
	"github.com/sarchlab/uemu/hooking"
	"github.com/sarchlab/uemu/insts"
	"github.com/sarchlab/uemu/mem"
	"github.com/sarchlab/uemu/metrics"
	"github.com/sarchlab/uemu/tracing"
)

// wordSize is the access width of LOAD and STORE operations.
const wordSize = 4

// A VirtualMachine drives the fetch-execute loop of one or more processors
// sharing a memory system. Processors emit memory intents as side effects;
// the machine applies them against memory.
//
// A VirtualMachine is hookable. Hooks fire at HookPosBeforeCycle,
// HookPosAfterCycle, HookPosProgramLoaded, and HookPosFault. The Item of a
// cycle hook is the global clock value.
type VirtualMachine struct {
	hooking.HookableBase

	name       string
	memory     *mem.System
	dataSpace  *mem.AddressSpace
	processors []*cpu.Processor
	decoder    *insts.Decoder
	loader     ProgramLoader
	resetHook  func(m *VirtualMachine)

	tracer   *tracing.ExecutionTracer
	metrics  *metrics.PerformanceMetrics
	recorder datarecording.DataRecorder

	state       State
	globalClock uint64
	startTime   time.Time
	endTime     time.Time

	loadedPrograms map[string]*Program
	instructionMem map[int]map[uint64]insts.Instruction
	entryPoints    map[int]uint64
	nextSlot       map[int]uint64

	now func() time.Time
}

// Name returns the machine name.
func (m *VirtualMachine) Name() string {
	return m.name
}

// State returns the current machine state.
func (m *VirtualMachine) State() State {
	return m.state
}

// GlobalClock returns the number of cycles stepped so far.
func (m *VirtualMachine) GlobalClock() uint64 {
	return m.globalClock
}

// Memory returns the shared memory system.
func (m *VirtualMachine) Memory() *mem.System {
	return m.memory
}

// Processors returns the owned processors.
func (m *VirtualMachine) Processors() []*cpu.Processor {
	return m.processors
}

// Processor returns the processor with the given ID, or nil.
func (m *VirtualMachine) Processor(id int) *cpu.Processor {
	for _, p := range m.processors {
		if p.ID() == id {
			return p
		}
	}

	return nil
}

// Tracer returns the execution tracer, nil when tracing is off.
func (m *VirtualMachine) Tracer() *tracing.ExecutionTracer {
	return m.tracer
}

// Metrics returns the performance metrics, nil when metrics are off.
func (m *VirtualMachine) Metrics() *metrics.PerformanceMetrics {
	return m.metrics
}

// DataRecorder returns the data recorder, nil when recording is off.
func (m *VirtualMachine) DataRecorder() datarecording.DataRecorder {
	return m.recorder
}

// AllocateMemory reserves a block of data memory so programs do not clobber
// each other's working storage.
func (m *VirtualMachine) AllocateMemory(size, alignment uint64) (uint64, error) {
	address, ok := m.dataSpace.Allocate(size, alignment)
	if !ok {
		return 0, fmt.Errorf("cannot allocate %d bytes of data memory", size)
	}

	return address, nil
}

// FreeMemory releases a block previously returned by AllocateMemory. The
// size must match the allocated size.
func (m *VirtualMachine) FreeMemory(address, size uint64) error {
	if !m.dataSpace.Deallocate(address, size) {
		return fmt.Errorf("no %d-byte allocation at address %d",
			size, address)
	}

	return nil
}

// LoadProgram loads a program onto processor 0 and returns the minted
// program ID.
func (m *VirtualMachine) LoadProgram(program any) (string, error) {
	return m.LoadProgramOnProcessor(0, program)
}

// LoadProgramOnProcessor loads a program onto the given processor. The
// concrete program shape is interpreted by the machine's ProgramLoader;
// the default loader accepts assembly lines and decoded instructions.
func (m *VirtualMachine) LoadProgramOnProcessor(
	processorID int,
	program any,
) (string, error) {
	if m.Processor(processorID) == nil {
		return "", fmt.Errorf("no processor with ID %d", processorID)
	}

	p := &Program{
		ID:          uuid.New().String(),
		ProcessorID: processorID,
	}

	err := m.loader.Load(m, p, program)
	if err != nil {
		return "", err
	}

	m.loadedPrograms[p.ID] = p

	if _, seen := m.entryPoints[processorID]; !seen {
		m.entryPoints[processorID] = p.EntryPoint
	}

	if m.tracer != nil {
		m.tracer.LogEvent(tracing.Custom, map[string]any{
			"event":      "program_loaded",
			"program_id": p.ID,
			"timestamp":  m.globalClock,
		}, tracing.OnProcessor(processorID))
	}

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    hooking.HookPosProgramLoaded,
		Item:   p,
	})

	return p.ID, nil
}

// LoadedPrograms returns the loaded programs by ID.
func (m *VirtualMachine) LoadedPrograms() map[string]*Program {
	out := make(map[string]*Program, len(m.loadedPrograms))
	for id, p := range m.loadedPrograms {
		out[id] = p
	}

	return out
}

// Start starts or resumes execution. Idle processors that have code begin
// executing at their entry point.
func (m *VirtualMachine) Start() {
	if m.state == StateIdle {
		m.startTime = m.now()

		if m.metrics != nil {
			m.metrics.StartMeasurement()
		}
	}

	m.state = StateRunning

	for _, p := range m.processors {
		if p.State() != cpu.Idle {
			continue
		}
		if len(m.instructionMem[p.ID()]) == 0 {
			continue
		}

		p.StartExecution(m.entryPoints[p.ID()])
	}

	m.logMachineEvent("vm_started")
}

// Pause suspends execution. A paused machine resumes with Start.
func (m *VirtualMachine) Pause() {
	m.state = StatePaused

	m.logMachineEvent("vm_paused")
}

// Stop finishes execution.
func (m *VirtualMachine) Stop() {
	m.state = StateFinished
	m.endTime = m.now()

	if m.metrics != nil {
		m.metrics.EndMeasurement()
	}

	m.logMachineEvent("vm_stopped")
}

func (m *VirtualMachine) logMachineEvent(event string) {
	if m.tracer == nil {
		return
	}

	m.tracer.LogEvent(tracing.Custom, map[string]any{
		"event":     event,
		"timestamp": m.globalClock,
	}, tracing.NoCtx)
}

// Step executes one clock cycle. It returns true while there is more to
// execute. When the machine is not running, Step does nothing and reports
// whether the machine could still run.
func (m *VirtualMachine) Step() bool {
	if m.state != StateRunning {
		return m.state != StateFinished
	}

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    hooking.HookPosBeforeCycle,
		Item:   m.globalClock,
	})

	m.executeCycle()

	m.globalClock++

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    hooking.HookPosAfterCycle,
		Item:   m.globalClock,
	})

	if m.shouldContinue() {
		return true
	}

	m.Stop()

	return false
}

// Run drives Step in a loop until the machine finishes or maxCycles is
// exhausted. maxCycles <= 0 means no limit. When the budget runs out with
// work remaining, the machine is paused rather than finished. Run returns
// the number of cycles executed.
func (m *VirtualMachine) Run(maxCycles int) int {
	m.Start()

	cyclesExecuted := 0
	running := true

	for running && (maxCycles <= 0 || cyclesExecuted < maxCycles) {
		running = m.Step()
		cyclesExecuted++
	}

	if running && maxCycles > 0 && cyclesExecuted >= maxCycles {
		m.Pause()
	}

	return cyclesExecuted
}

func (m *VirtualMachine) executeCycle() {
	for _, p := range m.processors {
		if !p.IsBusy() {
			continue
		}

		m.stepProcessor(p)
	}
}

func (m *VirtualMachine) stepProcessor(p *cpu.Processor) {
	pc := p.PC()

	inst, ok := m.instructionMem[p.ID()][pc]
	if !ok {
		// Ran past the end of loaded code.
		p.Terminate()
		return
	}

	completed, effects, err := p.ExecuteInstruction(inst)
	if err != nil {
		m.fault(p, inst, pc, err)
		return
	}

	if !completed {
		return
	}

	for _, effect := range effects {
		err = m.applyEffect(p, effect)
		if err != nil {
			m.fault(p, inst, pc, err)
			return
		}
	}

	if m.tracer != nil {
		m.tracer.LogInstruction(
			inst.String(), pc, p.Registers(),
			tracing.OnProcessor(p.ID()))
	}

	if m.metrics != nil {
		m.metrics.IncrementInstructions(1, inst.Type.String())
		m.metrics.IncrementCycles(uint64(inst.Latency))
	}
}

// applyEffect performs the memory intents a processor emitted. Register
// writes, jumps, and halts are already applied by the processor itself.
func (m *VirtualMachine) applyEffect(
	p *cpu.Processor,
	effect cpu.SideEffect,
) error {
	ctx := mem.AccessContext{
		Timestamp:   m.globalClock,
		ProcessorID: p.ID(),
	}

	switch e := effect.(type) {
	case cpu.MemoryRead:
		value, err := m.memory.Read(e.Address, wordSize, ctx)
		if err != nil {
			return err
		}

		err = p.SetRegister(e.Dest, int64(value))
		if err != nil {
			return err
		}

		m.noteMemoryAccess("read", e.Address, &value, p.ID())
	case cpu.MemoryWrite:
		value := uint64(e.Value)

		err := m.memory.Write(e.Address, value, wordSize, ctx)
		if err != nil {
			return err
		}

		m.noteMemoryAccess("write", e.Address, &value, p.ID())
	}

	return nil
}

func (m *VirtualMachine) noteMemoryAccess(
	accessType string,
	address uint64,
	value *uint64,
	processorID int,
) {
	if m.tracer != nil {
		m.tracer.LogMemoryAccess(
			accessType, address, value, wordSize,
			tracing.OnProcessor(processorID))
	}

	if m.metrics != nil {
		m.metrics.IncrementMemoryAccesses(1, &address)
	}
}

// fault terminates the faulting processor and records the failure. The
// rest of the machine keeps running.
func (m *VirtualMachine) fault(
	p *cpu.Processor,
	inst insts.Instruction,
	pc uint64,
	err error,
) {
	if m.tracer != nil {
		m.tracer.LogSecurityEvent("fault", map[string]any{
			"error":       err.Error(),
			"instruction": inst.String(),
			"pc":          pc,
		}, tracing.OnProcessor(p.ID()).WithAddress(pc))
	}

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    hooking.HookPosFault,
		Item:   p,
		Detail: err,
	})

	p.Terminate()
}

func (m *VirtualMachine) shouldContinue() bool {
	for _, p := range m.processors {
		if p.IsBusy() {
			return true
		}
	}

	return false
}

// SwitchContext records a context switch on a processor.
func (m *VirtualMachine) SwitchContext(
	processorID int,
	fromThread, toThread, reason string,
) {
	if m.tracer != nil {
		m.tracer.LogContextSwitch(fromThread, toThread, processorID, reason)
	}

	if m.metrics != nil {
		m.metrics.IncrementContextSwitches(1)
	}
}

// Reset returns the machine to its initial state. Loaded programs stay
// loaded so the machine can run again.
func (m *VirtualMachine) Reset() {
	for _, p := range m.processors {
		p.Reset()
	}

	m.memory.Reset()
	m.dataSpace = mem.NewAddressSpace(m.memory.Capacity())

	m.state = StateIdle
	m.globalClock = 0
	m.startTime = time.Time{}
	m.endTime = time.Time{}

	if m.tracer != nil {
		m.tracer.Reset()
	}

	if m.metrics != nil {
		m.metrics.Reset()
	}

	if m.resetHook != nil {
		m.resetHook(m)
	}
}

// Statistics returns machine-level figures merged with the metrics export.
func (m *VirtualMachine) Statistics() map[string]any {
	runtimeSeconds := 0.0
	if !m.endTime.IsZero() {
		runtimeSeconds = m.endTime.Sub(m.startTime).Seconds()
	}

	stats := map[string]any{
		"processors":      len(m.processors),
		"global_clock":    m.globalClock,
		"runtime_seconds": runtimeSeconds,
		"state":           m.state.String(),
	}

	if m.metrics != nil {
		for k, v := range m.metrics.Metrics() {
			stats[k] = v
		}
	}

	return stats
}

// TraceEvents returns recorded trace events matching the query. It returns
// nil when tracing is off.
func (m *VirtualMachine) TraceEvents(q tracing.EventQuery) []tracing.TraceEvent {
	if m.tracer == nil {
		return nil
	}

	return m.tracer.GetEvents(q)
}
