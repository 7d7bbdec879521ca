package mem

import "fmt"

// ErrorKind enumerates the recoverable memory-system failures.
type ErrorKind int

// The memory failure kinds.
const (
	InvalidAddress ErrorKind = iota
	PermissionDenied
	SegmentOverlap
	OutOfBounds
	UnsupportedSize
)

var errorKindNames = []string{
	"invalid address",
	"permission denied",
	"segment overlap",
	"out of bounds",
	"unsupported size",
}

func (k ErrorKind) String() string {
	return errorKindNames[int(k)]
}

// An AccessError reports a failed memory operation. All AccessErrors are
// recoverable conditions local to the faulting access.
type AccessError struct {
	Kind    ErrorKind
	Address uint64
	Size    int
	Segment string
}

func (e *AccessError) Error() string {
	switch e.Kind {
	case InvalidAddress:
		return fmt.Sprintf("invalid memory address: 0x%x", e.Address)
	case PermissionDenied:
		return fmt.Sprintf(
			"access not allowed in segment %s at 0x%x", e.Segment, e.Address)
	case SegmentOverlap:
		return fmt.Sprintf("segment %s overlaps an existing segment", e.Segment)
	case OutOfBounds:
		return fmt.Sprintf("segment %s exceeds memory size", e.Segment)
	case UnsupportedSize:
		return fmt.Sprintf("unsupported access size: %d", e.Size)
	default:
		return e.Kind.String()
	}
}
