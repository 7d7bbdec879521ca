package vm

import (
	"fmt"
	"strings"

	"github.com/sarchlab/uemu/insts"
)

// A Program is one unit of loaded code. Instruction slots are addressed by
// program-counter value, one slot per instruction.
type Program struct {
	ID           string
	ProcessorID  int
	EntryPoint   uint64
	Instructions []insts.Instruction
}

// A ProgramLoader places a program into a machine. The machine delegates
// all knowledge of the program's concrete shape to the loader.
type ProgramLoader interface {
	Load(m *VirtualMachine, p *Program, program any) error
}

// assemblyLoader is the default loader. It accepts a slice of assembly
// lines or a slice of already-decoded instructions. Blank lines and lines
// starting with ";" or "#" are skipped.
type assemblyLoader struct{}

func (assemblyLoader) Load(
	m *VirtualMachine,
	p *Program,
	program any,
) error {
	switch prog := program.(type) {
	case []string:
		return loadLines(m, p, prog)
	case []insts.Instruction:
		return placeInstructions(m, p, prog)
	default:
		return fmt.Errorf("unsupported program type %T", program)
	}
}

func loadLines(m *VirtualMachine, p *Program, lines []string) error {
	decoded := make([]insts.Instruction, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" ||
			strings.HasPrefix(line, ";") ||
			strings.HasPrefix(line, "#") {
			continue
		}

		inst, err := m.decoder.DecodeText(line)
		if err != nil {
			return err
		}

		decoded = append(decoded, inst)
	}

	return placeInstructions(m, p, decoded)
}

func placeInstructions(
	m *VirtualMachine,
	p *Program,
	instructions []insts.Instruction,
) error {
	if len(instructions) == 0 {
		return fmt.Errorf("program is empty")
	}

	base := m.nextSlot[p.ProcessorID]

	for i, inst := range instructions {
		m.instructionMem[p.ProcessorID][base+uint64(i)] = inst
	}

	m.nextSlot[p.ProcessorID] = base + uint64(len(instructions))

	p.EntryPoint = base
	p.Instructions = instructions

	return nil
}
