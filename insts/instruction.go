// Package insts defines the instruction set, the instruction decoder, and the
// binary instruction encodings used by the emulated processors.
package insts

import "strings"

// InstructionType categorizes instructions by the execution unit that
// handles them.
type InstructionType int

// The instruction categories.
const (
	Compute InstructionType = iota // Arithmetic and logical operations
	Memory                         // Load and store operations
	Branch                         // Control flow
	System                         // System operations
	Sync                           // Synchronization operations
	Special                        // Everything else
)

// instructionTypeNames is indexed by InstructionType.
var instructionTypeNames = []string{
	"COMPUTE", "MEMORY", "BRANCH", "SYSTEM", "SYNC", "SPECIAL",
}

func (t InstructionType) String() string {
	if int(t) < 0 || int(t) >= len(instructionTypeNames) {
		return "UNKNOWN"
	}
	return instructionTypeNames[int(t)]
}

// An Instruction is a single decoded instruction. Instructions are immutable
// once decoded.
type Instruction struct {
	Name     string
	Type     InstructionType
	Operands []string
	Latency  uint32

	// Opcode is negative when the instruction has no binary encoding.
	Opcode int64
}

// HasOpcode returns true if the instruction carries a binary encoding.
func (i Instruction) HasOpcode() bool {
	return i.Opcode >= 0
}

func (i Instruction) String() string {
	if len(i.Operands) == 0 {
		return i.Name
	}
	return i.Name + " " + strings.Join(i.Operands, ", ")
}
