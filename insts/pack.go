package insts

import (
	"encoding/binary"
	"fmt"
)

// PackInstruction packs an opcode and up to two integer operands into the
// 32-bit-word binary format. All words are little-endian.
func PackInstruction(opcode uint32, operands []uint32) ([]byte, error) {
	if len(operands) > 2 {
		return nil, fmt.Errorf(
			"too many operands for 32-bit instruction: %d", len(operands))
	}

	buf := make([]byte, 4*(1+len(operands)))
	binary.LittleEndian.PutUint32(buf, opcode)
	for i, op := range operands {
		binary.LittleEndian.PutUint32(buf[4*(i+1):], op)
	}

	return buf, nil
}

// UnpackInstruction splits a packed instruction back into its opcode and
// operand words.
func UnpackInstruction(data []byte) (uint32, []uint32, error) {
	switch len(data) {
	case 4, 8, 12:
	default:
		return 0, nil, fmt.Errorf("invalid instruction length: %d", len(data))
	}

	opcode := binary.LittleEndian.Uint32(data)

	operands := []uint32{}
	for offset := 4; offset < len(data); offset += 4 {
		operands = append(operands,
			binary.LittleEndian.Uint32(data[offset:]))
	}

	return opcode, operands, nil
}
