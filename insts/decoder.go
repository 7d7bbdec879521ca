package insts

import "strings"

// A Decoder turns raw instructions into Instruction values. Raw instructions
// come in three forms: a text line like "ADD R1, R2, R3", a bare opcode, or a
// binary encoding whose first byte is the opcode.
type Decoder struct {
	set *InstructionSet
}

// NewDecoder creates a Decoder backed by the given instruction set.
func NewDecoder(set *InstructionSet) *Decoder {
	return &Decoder{set: set}
}

// Decode dispatches on the dynamic type of the raw instruction. It accepts
// string, int64, and []byte forms.
func (d *Decoder) Decode(raw any) (Instruction, error) {
	switch r := raw.(type) {
	case string:
		return d.DecodeText(r)
	case int64:
		return d.DecodeOpcode(r)
	case []byte:
		return d.DecodeBinary(r)
	default:
		return Instruction{}, &DecodeError{
			Kind:   UnknownInstruction,
			Detail: "unsupported raw instruction form",
		}
	}
}

// DecodeText decodes a text instruction. The first whitespace-delimited
// token is the mnemonic, matched case-insensitively. The remaining tokens
// are comma-separated operands.
func (d *Decoder) DecodeText(text string) (Instruction, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Instruction{}, &DecodeError{Kind: EmptyInstruction}
	}

	name := strings.ToUpper(fields[0])

	operands := []string{}
	if len(fields) > 1 {
		operandText := strings.Join(fields[1:], " ")
		for _, op := range strings.Split(operandText, ",") {
			op = strings.TrimSuffix(strings.TrimSpace(op), ",")
			if op != "" {
				operands = append(operands, op)
			}
		}
	}

	return d.set.CreateInstruction(name, operands)
}

// DecodeOpcode decodes an instruction from its opcode. The produced
// instruction carries no operands.
func (d *Decoder) DecodeOpcode(opcode int64) (Instruction, error) {
	name, ok := d.set.NameForOpcode(opcode)
	if !ok {
		return Instruction{}, &DecodeError{
			Kind:   UnknownOpcode,
			Opcode: opcode,
		}
	}

	info, _ := d.set.Info(name)

	return Instruction{
		Name:     name,
		Type:     info.Type,
		Operands: []string{},
		Latency:  info.Latency,
		Opcode:   info.Opcode,
	}, nil
}

// DecodeBinary decodes a binary instruction. Only the opcode byte is
// consumed; operand extraction from the binary encoding is not implemented.
func (d *Decoder) DecodeBinary(binary []byte) (Instruction, error) {
	if len(binary) < 1 {
		return Instruction{}, &DecodeError{Kind: EmptyInstruction}
	}

	return d.DecodeOpcode(int64(binary[0]))
}
