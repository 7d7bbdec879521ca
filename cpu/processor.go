package cpu

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sarchlab/uemu/insts"
)

// A RegisterError reports an access to a register name the processor does
// not have.
type RegisterError struct {
	Register string
}

func (e *RegisterError) Error() string {
	return fmt.Sprintf("invalid register: %s", e.Register)
}

// A CustomInstructionHandler extends the processor with instruction
// semantics beyond the base set. The handler runs for Sync, Special, and
// unrecognized System instructions.
type CustomInstructionHandler interface {
	Execute(p *Processor, inst insts.Instruction) []SideEffect
}

// A ResetHook runs extra reset work whenever the processor is reset.
type ResetHook interface {
	ResetAdditionalState()
}

// The performance counter names a processor maintains.
const (
	CounterInstructionsExecuted = "instructions_executed"
	CounterMemoryAccesses       = "memory_accesses"
	CounterBranchesTaken        = "branches_taken"
	CounterStallCycles          = "stall_cycles"
)

// A Processor executes decoded instructions against its private register
// file. It never touches memory directly; memory instructions emit intents
// applied by the orchestrating VM.
type Processor struct {
	id int

	registers map[string]int64
	pc        uint64
	state     State

	cycleCount          uint64
	performanceCounters map[string]uint64

	customHandler CustomInstructionHandler
	resetHook     ResetHook
}

// A Builder can build processors.
type Builder struct {
	id               int
	registerCount    int
	specialRegisters bool
	perfCounters     bool
	customHandler    CustomInstructionHandler
	resetHook        ResetHook
}

// MakeBuilder creates a Builder with default parameters: 16 general-purpose
// registers, special registers, and performance counters enabled.
func MakeBuilder() Builder {
	return Builder{
		registerCount:    16,
		specialRegisters: true,
		perfCounters:     true,
	}
}

// WithID sets the processor ID.
func (b Builder) WithID(id int) Builder {
	b.id = id
	return b
}

// WithRegisterCount sets the number of general-purpose registers.
func (b Builder) WithRegisterCount(n int) Builder {
	b.registerCount = n
	return b
}

// WithoutSpecialRegisters omits the SP, FP, and FLAGS registers.
func (b Builder) WithoutSpecialRegisters() Builder {
	b.specialRegisters = false
	return b
}

// WithoutPerformanceCounters disables performance counting.
func (b Builder) WithoutPerformanceCounters() Builder {
	b.perfCounters = false
	return b
}

// WithCustomHandler installs an extension handler for instruction types the
// base processor does not implement.
func (b Builder) WithCustomHandler(h CustomInstructionHandler) Builder {
	b.customHandler = h
	return b
}

// WithResetHook registers extra reset behavior.
func (b Builder) WithResetHook(h ResetHook) Builder {
	b.resetHook = h
	return b
}

// Build creates the processor in the Idle state.
func (b Builder) Build() *Processor {
	p := &Processor{
		id:            b.id,
		registers:     make(map[string]int64),
		customHandler: b.customHandler,
		resetHook:     b.resetHook,
	}

	for i := 0; i < b.registerCount; i++ {
		p.registers[fmt.Sprintf("R%d", i)] = 0
	}

	if b.specialRegisters {
		p.registers["SP"] = 0
		p.registers["FP"] = 0
		p.registers["FLAGS"] = 0
	}

	if b.perfCounters {
		p.performanceCounters = map[string]uint64{
			CounterInstructionsExecuted: 0,
			CounterMemoryAccesses:       0,
			CounterBranchesTaken:        0,
			CounterStallCycles:          0,
		}
	} else {
		p.performanceCounters = map[string]uint64{}
	}

	return p
}

// ID returns the processor ID.
func (p *Processor) ID() int {
	return p.id
}

// PC returns the current program counter. The PC counts instruction slots,
// not bytes.
func (p *Processor) PC() uint64 {
	return p.pc
}

// State returns the current execution state.
func (p *Processor) State() State {
	return p.state
}

// CycleCount returns the number of cycles the processor has consumed.
func (p *Processor) CycleCount() uint64 {
	return p.cycleCount
}

// IsBusy reports whether the processor still has work in flight. Idle and
// terminated processors are not busy.
func (p *Processor) IsBusy() bool {
	return p.state == Running || p.state == Waiting || p.state == Blocked
}

// StartExecution puts the processor in the Running state with the program
// counter at startPC.
func (p *Processor) StartExecution(startPC uint64) {
	p.pc = startPC
	p.state = Running
}

// Wait marks a running processor as waiting on synchronization.
func (p *Processor) Wait() {
	if p.state == Running {
		p.state = Waiting
	}
}

// Block marks a running processor as blocked on a resource.
func (p *Processor) Block() {
	if p.state == Running {
		p.state = Blocked
	}
}

// Resume returns a waiting or blocked processor to the Running state.
func (p *Processor) Resume() {
	if p.state == Waiting || p.state == Blocked {
		p.state = Running
	}
}

// Terminate marks the processor as terminated. The VM uses it to halt one
// processor's execution path after an unrecoverable program fault.
func (p *Processor) Terminate() {
	p.state = Terminated
}

// ExecuteInstruction executes one decoded instruction.
//
// It is a no-op returning (false, nil, nil) unless the processor is
// running. The program counter advances by one slot after any completed
// instruction that does not jump.
func (p *Processor) ExecuteInstruction(
	inst insts.Instruction,
) (completed bool, effects []SideEffect, err error) {
	if p.state != Running {
		return false, nil, nil
	}

	p.bumpCounter(CounterInstructionsExecuted, 1)
	p.cycleCount++

	effects, err = p.executeByType(inst)
	if err != nil {
		return false, nil, err
	}

	if !containsJump(effects) {
		p.pc++
	}

	return true, effects, nil
}

func (p *Processor) executeByType(
	inst insts.Instruction,
) ([]SideEffect, error) {
	switch inst.Type {
	case insts.Compute:
		return p.executeCompute(inst)
	case insts.Memory:
		return p.executeMemory(inst)
	case insts.Branch:
		return p.executeBranch(inst)
	case insts.System:
		return p.executeSystem(inst), nil
	default:
		return p.executeCustom(inst), nil
	}
}

func (p *Processor) executeCompute(
	inst insts.Instruction,
) ([]SideEffect, error) {
	if len(inst.Operands) == 0 {
		return nil, nil
	}

	dest := inst.Operands[0]
	if _, ok := p.registers[dest]; !ok {
		return nil, &RegisterError{Register: dest}
	}

	if len(inst.Operands) >= 3 {
		src1 := p.registers[inst.Operands[1]]
		src2 := p.registers[inst.Operands[2]]

		switch {
		case strings.HasPrefix(inst.Name, "ADD"):
			p.registers[dest] = src1 + src2
		case strings.HasPrefix(inst.Name, "SUB"):
			p.registers[dest] = src1 - src2
		case strings.HasPrefix(inst.Name, "MUL"):
			p.registers[dest] = src1 * src2
		}
	}

	return []SideEffect{
		RegisterWrite{Register: dest, Value: p.registers[dest]},
	}, nil
}

func (p *Processor) executeMemory(
	inst insts.Instruction,
) ([]SideEffect, error) {
	if len(inst.Operands) < 2 {
		return nil, nil
	}

	p.bumpCounter(CounterMemoryAccesses, 1)

	addr, err := p.resolveAddress(inst.Operands[1])
	if err != nil {
		return nil, err
	}

	if strings.HasPrefix(inst.Name, "LOAD") {
		return []SideEffect{
			MemoryRead{Address: addr, Dest: inst.Operands[0]},
		}, nil
	}

	if strings.HasPrefix(inst.Name, "STORE") {
		value := p.registers[inst.Operands[0]]
		return []SideEffect{
			MemoryWrite{Address: addr, Value: value},
		}, nil
	}

	return nil, nil
}

func (p *Processor) executeBranch(
	inst insts.Instruction,
) ([]SideEffect, error) {
	if len(inst.Operands) == 0 {
		return nil, nil
	}

	taken := false
	switch {
	case strings.HasPrefix(inst.Name, "JMP"):
		taken = true
	case strings.HasPrefix(inst.Name, "JNZ"):
		taken = p.registers["FLAGS"]&1 == 0
	case strings.HasPrefix(inst.Name, "JZ"):
		taken = p.registers["FLAGS"]&1 != 0
	}

	if !taken {
		return nil, nil
	}

	target, err := p.resolveAddress(inst.Operands[0])
	if err != nil {
		return nil, err
	}

	p.pc = target
	p.bumpCounter(CounterBranchesTaken, 1)

	return []SideEffect{Jump{Target: target}}, nil
}

func (p *Processor) executeSystem(inst insts.Instruction) []SideEffect {
	switch inst.Name {
	case "HALT":
		p.state = Terminated
		return []SideEffect{Halt{}}
	case "NOP":
		return nil
	default:
		return p.executeCustom(inst)
	}
}

func (p *Processor) executeCustom(inst insts.Instruction) []SideEffect {
	if p.customHandler == nil {
		return nil
	}
	return p.customHandler.Execute(p, inst)
}

// resolveAddress resolves a register-or-immediate address operand. Operands
// starting with "R" name a register; anything else is a literal address.
func (p *Processor) resolveAddress(operand string) (uint64, error) {
	if strings.HasPrefix(operand, "R") {
		return uint64(p.registers[operand]), nil
	}

	addr, err := strconv.ParseUint(operand, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address operand %q", operand)
	}

	return addr, nil
}

// GetRegister returns the value of a register. Unknown registers read as
// zero.
func (p *Processor) GetRegister(register string) int64 {
	return p.registers[register]
}

// SetRegister sets a register value. Setting a register the processor does
// not have fails.
func (p *Processor) SetRegister(register string, value int64) error {
	if _, ok := p.registers[register]; !ok {
		return &RegisterError{Register: register}
	}

	p.registers[register] = value

	return nil
}

// ZeroFlag reports bit 0 of the FLAGS register.
func (p *Processor) ZeroFlag() bool {
	return p.registers["FLAGS"]&1 != 0
}

// SetZeroFlag sets or clears bit 0 of the FLAGS register.
func (p *Processor) SetZeroFlag(set bool) {
	if set {
		p.registers["FLAGS"] |= 1
	} else {
		p.registers["FLAGS"] &^= 1
	}
}

// Registers returns a copy of the register file.
func (p *Processor) Registers() map[string]int64 {
	regs := make(map[string]int64, len(p.registers))
	for name, value := range p.registers {
		regs[name] = value
	}
	return regs
}

// PerformanceCounters returns a copy of the performance counters.
func (p *Processor) PerformanceCounters() map[string]uint64 {
	counters := make(map[string]uint64, len(p.performanceCounters))
	for name, value := range p.performanceCounters {
		counters[name] = value
	}
	return counters
}

func (p *Processor) bumpCounter(name string, delta uint64) {
	if _, ok := p.performanceCounters[name]; ok {
		p.performanceCounters[name] += delta
	}
}

// Reset returns the processor to the Idle state with all registers,
// counters, and the program counter zeroed. Reset is unconditional.
func (p *Processor) Reset() {
	for reg := range p.registers {
		p.registers[reg] = 0
	}

	p.pc = 0
	p.state = Idle
	p.cycleCount = 0

	for counter := range p.performanceCounters {
		p.performanceCounters[counter] = 0
	}

	if p.resetHook != nil {
		p.resetHook.ResetAdditionalState()
	}
}

func containsJump(effects []SideEffect) bool {
	for _, e := range effects {
		if _, ok := e.(Jump); ok {
			return true
		}
	}
	return false
}
