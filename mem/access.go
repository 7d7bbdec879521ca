package mem

// AccessType tells whether an access reads, writes, or executes memory.
type AccessType int

// The access types.
const (
	Read AccessType = iota
	Write
	Execute
)

var accessTypeNames = []string{"READ", "WRITE", "EXECUTE"}

func (t AccessType) String() string {
	return accessTypeNames[int(t)]
}

// An AccessContext carries the execution context of a memory access into the
// access log. The zero value means "no context".
type AccessContext struct {
	Timestamp   uint64
	ProcessorID int // -1 when not attributed to a processor
	ThreadID    string
	Detail      map[string]any
}

// NoContext is the context used for accesses outside any processor.
var NoContext = AccessContext{ProcessorID: -1}

// An Access is an immutable record of one memory access. Accesses are owned
// by the memory system and cleared only on Reset.
type Access struct {
	Address     uint64
	Type        AccessType
	Size        int
	Timestamp   uint64
	ProcessorID int
	ThreadID    string

	// Value carries the transferred value for word accesses. It is nil for
	// raw byte transfers.
	Value *uint64

	Context AccessContext
}
