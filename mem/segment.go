package mem

// A Segment is a protected region of the memory system. Segments never
// overlap and are never removed once added.
type Segment struct {
	BaseAddress uint64
	Size        uint64
	Name        string
	Readable    bool
	Writable    bool
	Executable  bool
}

// Contains returns true if the address falls inside the segment.
func (s Segment) Contains(address uint64) bool {
	return address >= s.BaseAddress && address < s.BaseAddress+s.Size
}

// Offset returns the offset of the address within the segment. The address
// must be inside the segment.
func (s Segment) Offset(address uint64) uint64 {
	if !s.Contains(address) {
		panic("address not in segment")
	}
	return address - s.BaseAddress
}

// overlaps reports whether two segment intervals intersect.
func (s Segment) overlaps(other Segment) bool {
	return s.BaseAddress < other.BaseAddress+other.Size &&
		s.BaseAddress+s.Size > other.BaseAddress
}

// SegmentInfo is the introspection view of a segment, as returned by
// System.MemoryMap.
type SegmentInfo struct {
	Name        string `json:"name"`
	BaseAddress string `json:"base_address"`
	EndAddress  string `json:"end_address"`
	Size        uint64 `json:"size"`
	Readable    bool   `json:"readable"`
	Writable    bool   `json:"writable"`
	Executable  bool   `json:"executable"`
}
