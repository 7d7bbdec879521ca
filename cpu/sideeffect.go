package cpu

// A SideEffect is one effect of executing an instruction. The set of
// possible effects is closed: register writes, memory access intents,
// jumps, and halts.
//
// Memory intents are not performed by the processor. The orchestrating VM
// applies them against the memory system in its per-cycle loop.
type SideEffect interface {
	isSideEffect()
}

// A RegisterWrite records that the processor wrote a register.
type RegisterWrite struct {
	Register string
	Value    int64
}

// A MemoryRead asks the orchestrator to read memory into a register.
type MemoryRead struct {
	Address uint64
	Dest    string
}

// A MemoryWrite asks the orchestrator to store a value to memory.
type MemoryWrite struct {
	Address uint64
	Value   int64
}

// A Jump records that the program counter was redirected.
type Jump struct {
	Target uint64
}

// A Halt records that the processor terminated.
type Halt struct{}

func (RegisterWrite) isSideEffect() {}
func (MemoryRead) isSideEffect()    {}
func (MemoryWrite) isSideEffect()   {}
func (Jump) isSideEffect()          {}
func (Halt) isSideEffect()          {}
