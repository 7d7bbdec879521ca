package insts

import "fmt"

// DecodeErrorKind enumerates the ways a decode can fail.
type DecodeErrorKind int

// The decode failure kinds.
const (
	UnknownInstruction DecodeErrorKind = iota
	UnknownOpcode
	EmptyInstruction
	WrongOperandCount
)

var decodeErrorKindNames = []string{
	"unknown instruction",
	"unknown opcode",
	"empty instruction",
	"wrong operand count",
}

func (k DecodeErrorKind) String() string {
	return decodeErrorKindNames[int(k)]
}

// A DecodeError reports a recoverable instruction-decoding failure.
type DecodeError struct {
	Kind   DecodeErrorKind
	Name   string
	Opcode int64
	Detail string
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case UnknownInstruction:
		return fmt.Sprintf("unknown instruction: %s", e.Name)
	case UnknownOpcode:
		return fmt.Sprintf("unknown opcode: 0x%02x", e.Opcode)
	case WrongOperandCount:
		return fmt.Sprintf("%s: %s", e.Name, e.Detail)
	default:
		return e.Kind.String()
	}
}
