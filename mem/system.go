// Package mem provides the byte-addressable, segment-protected memory system
// of the emulator, with per-address access tracking and atomic
// compare-and-swap for cross-processor coordination.
package mem

import (
	"encoding/binary"
	"sync"
)

// A ResetHook runs extra reset work owned by the integrating layer whenever
// the memory system is reset.
type ResetHook interface {
	ResetAdditionalState()
}

// A System is a byte-addressable memory with segment-based protection and
// access tracking.
//
// All multi-byte values are little-endian. Values read back as unsigned
// integers with no sign extension. A single lock serializes all accesses, so
// CompareAndSwap is one indivisible step even when multiple processors share
// the system.
type System struct {
	lock sync.Mutex

	capacity uint64
	storage  *storage
	segments []Segment

	trackingEnabled bool
	accessLog       []Access
	accessCount     map[uint64]uint64

	resetHook ResetHook
}

// A Builder can build memory systems.
type Builder struct {
	capacity  uint64
	tracking  bool
	segments  []Segment
	resetHook ResetHook
}

// MakeBuilder creates a Builder with default parameters: 64 KiB capacity,
// tracking enabled, and a single all-covering "unified" segment.
func MakeBuilder() Builder {
	return Builder{
		capacity: 65536,
		tracking: true,
	}
}

// WithCapacity sets the total memory size in bytes.
func (b Builder) WithCapacity(capacity uint64) Builder {
	b.capacity = capacity
	return b
}

// WithoutTracking disables access logging.
func (b Builder) WithoutTracking() Builder {
	b.tracking = false
	return b
}

// WithSegment adds a segment to create at construction. When no segment is
// given, a default read-write "unified" segment covers the whole memory.
func (b Builder) WithSegment(seg Segment) Builder {
	b.segments = append(b.segments[:len(b.segments):len(b.segments)], seg)
	return b
}

// WithResetHook registers extra reset behavior.
func (b Builder) WithResetHook(h ResetHook) Builder {
	b.resetHook = h
	return b
}

// Build creates the memory system. Invalid segment layouts panic, as they
// are construction-time contract violations.
func (b Builder) Build() *System {
	s := &System{
		capacity:        b.capacity,
		storage:         newStorage(b.capacity),
		trackingEnabled: b.tracking,
		accessCount:     make(map[uint64]uint64),
		resetHook:       b.resetHook,
	}

	segments := b.segments
	if len(segments) == 0 {
		segments = []Segment{{
			BaseAddress: 0,
			Size:        b.capacity,
			Name:        "unified",
			Readable:    true,
			Writable:    true,
		}}
	}

	for _, seg := range segments {
		if err := s.addSegment(seg); err != nil {
			panic(err)
		}
	}

	return s
}

// Capacity returns the total memory size in bytes.
func (s *System) Capacity() uint64 {
	return s.capacity
}

// IsValidAddress returns true if the address is within memory bounds.
func (s *System) IsValidAddress(address uint64) bool {
	return address < s.capacity
}

// Read reads a size-byte little-endian value. Size must be 1, 2, or 4.
func (s *System) Read(
	address uint64,
	size int,
	ctx AccessContext,
) (uint64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.readLocked(address, size, ctx)
}

func (s *System) readLocked(
	address uint64,
	size int,
	ctx AccessContext,
) (uint64, error) {
	if err := s.checkWordAccess(address, size); err != nil {
		return 0, err
	}

	if seg, ok := s.findSegment(address); ok && !seg.Readable {
		return 0, &AccessError{
			Kind:    PermissionDenied,
			Address: address,
			Segment: seg.Name,
		}
	}

	raw := s.storage.read(address, uint64(size))
	value := decodeWord(raw)

	s.trackAccess(address, Read, size, &value, ctx)

	return value, nil
}

// Write stores a size-byte little-endian value. The value is truncated to
// size bytes before storing. Size must be 1, 2, or 4.
func (s *System) Write(
	address uint64,
	value uint64,
	size int,
	ctx AccessContext,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.writeLocked(address, value, size, ctx)
}

func (s *System) writeLocked(
	address uint64,
	value uint64,
	size int,
	ctx AccessContext,
) error {
	if err := s.checkWordAccess(address, size); err != nil {
		return err
	}

	if seg, ok := s.findSegment(address); ok && !seg.Writable {
		return &AccessError{
			Kind:    PermissionDenied,
			Address: address,
			Segment: seg.Name,
		}
	}

	truncated := value & sizeMask(size)
	s.storage.write(address, encodeWord(truncated, size))

	s.trackAccess(address, Write, size, &truncated, ctx)

	return nil
}

func (s *System) checkWordAccess(address uint64, size int) error {
	switch size {
	case 1, 2, 4:
	default:
		return &AccessError{
			Kind:    UnsupportedSize,
			Address: address,
			Size:    size,
		}
	}

	if !s.IsValidAddress(address) || address+uint64(size) > s.capacity {
		return &AccessError{
			Kind:    InvalidAddress,
			Address: address,
			Size:    size,
		}
	}

	return nil
}

// ReadBytes reads an arbitrary-length run of raw bytes. Only bounds are
// checked.
func (s *System) ReadBytes(address, size uint64) ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.IsValidAddress(address) || address+size > s.capacity {
		return nil, &AccessError{
			Kind:    InvalidAddress,
			Address: address,
			Size:    int(size),
		}
	}

	return s.storage.read(address, size), nil
}

// WriteBytes stores an arbitrary-length run of raw bytes, subject to the
// covering segment's writable permission.
func (s *System) WriteBytes(
	address uint64,
	data []byte,
	ctx AccessContext,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.IsValidAddress(address) ||
		address+uint64(len(data)) > s.capacity {
		return &AccessError{
			Kind:    InvalidAddress,
			Address: address,
			Size:    len(data),
		}
	}

	if seg, ok := s.findSegment(address); ok && !seg.Writable {
		return &AccessError{
			Kind:    PermissionDenied,
			Address: address,
			Segment: seg.Name,
		}
	}

	s.storage.write(address, data)

	s.trackAccess(address, Write, len(data), nil, ctx)

	return nil
}

// CompareAndSwap atomically replaces the 4-byte word at address with
// newValue if it currently equals expected. The read and the conditional
// write happen under one lock acquisition, so no other access can interleave.
func (s *System) CompareAndSwap(
	address uint64,
	expected uint64,
	newValue uint64,
	ctx AccessContext,
) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	current, err := s.readLocked(address, 4, ctx)
	if err != nil {
		return false, err
	}

	if current != expected {
		return false, nil
	}

	if err := s.writeLocked(address, newValue, 4, ctx); err != nil {
		return false, err
	}

	return true, nil
}

// AddSegment registers a new segment. It fails if the segment overlaps an
// existing one or exceeds the memory size; on failure the segment list is
// unchanged.
func (s *System) AddSegment(seg Segment) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.addSegment(seg)
}

func (s *System) addSegment(seg Segment) error {
	for _, existing := range s.segments {
		if seg.overlaps(existing) {
			return &AccessError{
				Kind:    SegmentOverlap,
				Address: seg.BaseAddress,
				Segment: seg.Name,
			}
		}
	}

	if seg.BaseAddress+seg.Size > s.capacity {
		return &AccessError{
			Kind:    OutOfBounds,
			Address: seg.BaseAddress,
			Segment: seg.Name,
		}
	}

	s.segments = append(s.segments, seg)

	return nil
}

// FindSegment returns the segment containing the address. Segments never
// overlap, so at most one matches.
func (s *System) FindSegment(address uint64) (Segment, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.findSegment(address)
}

func (s *System) findSegment(address uint64) (Segment, bool) {
	for _, seg := range s.segments {
		if seg.Contains(address) {
			return seg, true
		}
	}
	return Segment{}, false
}

func (s *System) trackAccess(
	address uint64,
	accessType AccessType,
	size int,
	value *uint64,
	ctx AccessContext,
) {
	if !s.trackingEnabled {
		return
	}

	s.accessLog = append(s.accessLog, Access{
		Address:     address,
		Type:        accessType,
		Size:        size,
		Timestamp:   ctx.Timestamp,
		ProcessorID: ctx.ProcessorID,
		ThreadID:    ctx.ThreadID,
		Value:       value,
		Context:     ctx,
	})
	s.accessCount[address]++
}

// An AccessQuery filters the access log. Nil fields match everything.
type AccessQuery struct {
	Address *uint64
	Type    *AccessType
}

// AccessLog returns the access records matching the query.
func (s *System) AccessLog(q AccessQuery) []Access {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.trackingEnabled {
		return nil
	}

	result := make([]Access, 0, len(s.accessLog))
	for _, a := range s.accessLog {
		if q.Address != nil && a.Address != *q.Address {
			continue
		}
		if q.Type != nil && a.Type != *q.Type {
			continue
		}
		result = append(result, a)
	}

	return result
}

// AccessPattern returns a copy of the address-to-count histogram.
func (s *System) AccessPattern() map[uint64]uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	pattern := make(map[uint64]uint64, len(s.accessCount))
	for addr, count := range s.accessCount {
		pattern[addr] = count
	}

	return pattern
}

// MemoryMap returns the introspection view of all segments.
func (s *System) MemoryMap() []SegmentInfo {
	s.lock.Lock()
	defer s.lock.Unlock()

	infos := make([]SegmentInfo, 0, len(s.segments))
	for _, seg := range s.segments {
		infos = append(infos, SegmentInfo{
			Name:        seg.Name,
			BaseAddress: formatAddress(seg.BaseAddress),
			EndAddress:  formatAddress(seg.BaseAddress + seg.Size - 1),
			Size:        seg.Size,
			Readable:    seg.Readable,
			Writable:    seg.Writable,
			Executable:  seg.Executable,
		})
	}

	return infos
}

// DumpMemory returns a copy of size bytes of raw memory starting at start.
func (s *System) DumpMemory(start, size uint64) ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if start+size > s.capacity {
		return nil, &AccessError{
			Kind:    InvalidAddress,
			Address: start,
			Size:    int(size),
		}
	}

	return s.storage.read(start, size), nil
}

// Clear zeroes all memory bytes. The access log is preserved.
func (s *System) Clear() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.storage.clear()
}

// Reset zeroes memory, clears the access log and histogram, and runs the
// reset hook if one is registered.
func (s *System) Reset() {
	s.lock.Lock()
	s.storage.clear()
	s.accessLog = nil
	s.accessCount = make(map[uint64]uint64)
	s.lock.Unlock()

	if s.resetHook != nil {
		s.resetHook.ResetAdditionalState()
	}
}

func sizeMask(size int) uint64 {
	switch size {
	case 1:
		return 0xFF
	case 2:
		return 0xFFFF
	default:
		return 0xFFFFFFFF
	}
}

func decodeWord(raw []byte) uint64 {
	switch len(raw) {
	case 1:
		return uint64(raw[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(raw))
	default:
		return uint64(binary.LittleEndian.Uint32(raw))
	}
}

func encodeWord(value uint64, size int) []byte {
	buf := make([]byte, size)
	switch size {
	case 1:
		buf[0] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(value))
	default:
		binary.LittleEndian.PutUint32(buf, uint32(value))
	}
	return buf
}
