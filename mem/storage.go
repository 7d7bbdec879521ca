package mem

// A storage keeps the raw bytes of the memory system.
//
// The storage manages memory in fixed-size units. Units that are never
// touched by a read or a write are not allocated, so a large sparse memory
// stays cheap. Untouched bytes read as zero.
type storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

func newStorage(capacity uint64) *storage {
	return &storage{
		unitSize: 4096,
		capacity: capacity,
		data:     make(map[uint64][]byte),
	}
}

func (s *storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr
	return
}

func (s *storage) unit(address uint64) []byte {
	baseAddr, _ := s.parseAddress(address)
	unit, ok := s.data[baseAddr]
	if !ok {
		unit = make([]byte, s.unitSize)
		s.data[baseAddr] = unit
	}
	return unit
}

// read copies length bytes starting at address. The caller guarantees the
// range is within capacity.
func (s *storage) read(address, length uint64) []byte {
	res := make([]byte, length)
	currAddr := address
	dataOffset := uint64(0)

	for currAddr < address+length {
		unit := s.unit(currAddr)

		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		lenToRead := baseAddr + s.unitSize - currAddr
		if left := length - dataOffset; left < lenToRead {
			lenToRead = left
		}

		copy(res[dataOffset:dataOffset+lenToRead],
			unit[inUnitAddr:inUnitAddr+lenToRead])
		dataOffset += lenToRead
		currAddr += lenToRead
	}

	return res
}

// write copies data into the storage starting at address. The caller
// guarantees the range is within capacity.
func (s *storage) write(address uint64, data []byte) {
	currAddr := address
	dataOffset := uint64(0)

	for dataOffset < uint64(len(data)) {
		unit := s.unit(currAddr)

		_, inUnitAddr := s.parseAddress(currAddr)
		lenToWrite := s.unitSize - inUnitAddr
		if left := uint64(len(data)) - dataOffset; left < lenToWrite {
			lenToWrite = left
		}

		copy(unit[inUnitAddr:inUnitAddr+lenToWrite],
			data[dataOffset:dataOffset+lenToWrite])
		dataOffset += lenToWrite
		currAddr += lenToWrite
	}
}

// clear zeroes the whole storage by dropping all allocated units.
func (s *storage) clear() {
	s.data = make(map[uint64][]byte)
}
