package insts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeText(t *testing.T) {
	d := NewDecoder(NewDefaultSet())

	tests := []struct {
		text     string
		name     string
		operands []string
	}{
		{"ADD R0, R1, R2", "ADD", []string{"R0", "R1", "R2"}},
		{"add r0, r1, r2", "ADD", []string{"r0", "r1", "r2"}},
		{"  STORE   R0 , 100 ", "STORE", []string{"R0", "100"}},
		{"JMP 42", "JMP", []string{"42"}},
		{"HALT", "HALT", []string{}},
	}

	for _, tt := range tests {
		inst, err := d.DecodeText(tt.text)

		require.NoError(t, err, tt.text)
		assert.Equal(t, tt.name, inst.Name, tt.text)
		assert.Equal(t, tt.operands, inst.Operands, tt.text)
	}
}

func TestDecodeTextErrors(t *testing.T) {
	d := NewDecoder(NewDefaultSet())

	tests := []struct {
		text string
		kind DecodeErrorKind
	}{
		{"", EmptyInstruction},
		{"   ", EmptyInstruction},
		{"FROBNICATE R1", UnknownInstruction},
		{"ADD R0, R1", WrongOperandCount},
	}

	for _, tt := range tests {
		_, err := d.DecodeText(tt.text)

		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr, tt.text)
		assert.Equal(t, tt.kind, decodeErr.Kind, tt.text)
	}
}

func TestDecodeOpcode(t *testing.T) {
	d := NewDecoder(NewDefaultSet())

	inst, err := d.DecodeOpcode(0x01)

	require.NoError(t, err)
	assert.Equal(t, "ADD", inst.Name)
	assert.Equal(t, Compute, inst.Type)
	assert.Empty(t, inst.Operands)
}

func TestDecodeOpcodeUnknown(t *testing.T) {
	d := NewDecoder(NewDefaultSet())

	_, err := d.DecodeOpcode(0x7b)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, UnknownOpcode, decodeErr.Kind)
	assert.Equal(t, int64(0x7b), decodeErr.Opcode)
}

func TestDecodeBinaryConsumesOpcodeByteOnly(t *testing.T) {
	d := NewDecoder(NewDefaultSet())

	inst, err := d.DecodeBinary([]byte{0x10, 0xde, 0xad, 0xbe})

	require.NoError(t, err)
	assert.Equal(t, "LOAD", inst.Name)
	assert.Empty(t, inst.Operands)
}

func TestDecodeBinaryEmpty(t *testing.T) {
	d := NewDecoder(NewDefaultSet())

	_, err := d.DecodeBinary(nil)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, EmptyInstruction, decodeErr.Kind)
}

func TestDecodeDispatchesOnForm(t *testing.T) {
	d := NewDecoder(NewDefaultSet())

	fromText, err := d.Decode("NOP")
	require.NoError(t, err)
	assert.Equal(t, "NOP", fromText.Name)

	fromOpcode, err := d.Decode(int64(0xFF))
	require.NoError(t, err)
	assert.Equal(t, "HALT", fromOpcode.Name)

	fromBinary, err := d.Decode([]byte{0x20})
	require.NoError(t, err)
	assert.Equal(t, "JMP", fromBinary.Name)

	_, err = d.Decode(3.14)
	assert.Error(t, err)
}
