package insts

import "fmt"

// noOpcode marks instructions without a binary encoding.
const noOpcode = int64(-1)

// InstInfo describes one registered instruction.
type InstInfo struct {
	Name         string
	Type         InstructionType
	OperandCount int
	Latency      uint32
	Opcode       int64
}

// An InstructionSet maps instruction names and opcodes to their definitions.
// It is immutable after construction. Build one with a SetBuilder.
type InstructionSet struct {
	byName   map[string]InstInfo
	byOpcode map[int64]string
}

// A SetBuilder builds InstructionSets.
type SetBuilder struct {
	infos []InstInfo
}

// MakeSetBuilder creates a SetBuilder with no instructions registered.
func MakeSetBuilder() SetBuilder {
	return SetBuilder{}
}

// WithInstruction registers an instruction without a binary encoding.
func (b SetBuilder) WithInstruction(
	name string,
	instType InstructionType,
	operandCount int,
	latency uint32,
) SetBuilder {
	b.infos = append(b.infos[:len(b.infos):len(b.infos)], InstInfo{
		Name:         name,
		Type:         instType,
		OperandCount: operandCount,
		Latency:      latency,
		Opcode:       noOpcode,
	})
	return b
}

// WithEncodedInstruction registers an instruction together with its opcode.
func (b SetBuilder) WithEncodedInstruction(
	name string,
	instType InstructionType,
	operandCount int,
	latency uint32,
	opcode int64,
) SetBuilder {
	b.infos = append(b.infos[:len(b.infos):len(b.infos)], InstInfo{
		Name:         name,
		Type:         instType,
		OperandCount: operandCount,
		Latency:      latency,
		Opcode:       opcode,
	})
	return b
}

// Build creates the InstructionSet.
func (b SetBuilder) Build() *InstructionSet {
	s := &InstructionSet{
		byName:   make(map[string]InstInfo),
		byOpcode: make(map[int64]string),
	}

	for _, info := range b.infos {
		s.byName[info.Name] = info
		if info.Opcode != noOpcode {
			s.byOpcode[info.Opcode] = info.Name
		}
	}

	return s
}

// NewDefaultSet creates the default instruction set. It carries the base
// arithmetic, memory, branch, and system instructions.
func NewDefaultSet() *InstructionSet {
	return MakeSetBuilder().
		WithEncodedInstruction("ADD", Compute, 3, 1, 0x01).
		WithEncodedInstruction("SUB", Compute, 3, 1, 0x02).
		WithEncodedInstruction("MUL", Compute, 3, 3, 0x03).
		WithEncodedInstruction("DIV", Compute, 3, 10, 0x04).
		WithEncodedInstruction("LOAD", Memory, 2, 3, 0x10).
		WithEncodedInstruction("STORE", Memory, 2, 3, 0x11).
		WithEncodedInstruction("JMP", Branch, 1, 1, 0x20).
		WithEncodedInstruction("JZ", Branch, 1, 1, 0x21).
		WithEncodedInstruction("JNZ", Branch, 1, 1, 0x22).
		WithEncodedInstruction("NOP", System, 0, 1, 0x00).
		WithEncodedInstruction("HALT", System, 0, 1, 0xFF).
		Build()
}

// Info returns the definition of the named instruction.
func (s *InstructionSet) Info(name string) (InstInfo, bool) {
	info, ok := s.byName[name]
	return info, ok
}

// NameForOpcode returns the name of the instruction with the given opcode.
func (s *InstructionSet) NameForOpcode(opcode int64) (string, bool) {
	name, ok := s.byOpcode[opcode]
	return name, ok
}

// CreateInstruction instantiates the named instruction with the given
// operands. The operand count must match the registered arity.
func (s *InstructionSet) CreateInstruction(
	name string,
	operands []string,
) (Instruction, error) {
	info, ok := s.byName[name]
	if !ok {
		return Instruction{}, &DecodeError{
			Kind: UnknownInstruction,
			Name: name,
		}
	}

	if len(operands) != info.OperandCount {
		return Instruction{}, &DecodeError{
			Kind: WrongOperandCount,
			Name: name,
			Detail: fmt.Sprintf("expected %d operands, got %d",
				info.OperandCount, len(operands)),
		}
	}

	return Instruction{
		Name:     name,
		Type:     info.Type,
		Operands: operands,
		Latency:  info.Latency,
		Opcode:   info.Opcode,
	}, nil
}
