package mem

import (
	"fmt"
	"sort"
)

// An AddressSpace hands out non-overlapping address ranges with first-fit
// allocation. The VM program loader uses it to place program and data
// regions.
type AddressSpace struct {
	size   uint64
	ranges []addrRange
}

type addrRange struct {
	start uint64
	end   uint64
}

// NewAddressSpace creates an address space covering [0, size).
func NewAddressSpace(size uint64) *AddressSpace {
	return &AddressSpace{size: size}
}

// Allocate reserves a contiguous block of the given size at the given
// alignment. It returns the base address, or false when no gap fits.
func (a *AddressSpace) Allocate(size, alignment uint64) (uint64, bool) {
	if size == 0 || size > a.size {
		return 0, false
	}

	for start := uint64(0); start+size <= a.size; start += alignment {
		end := start + size

		overlaps := false
		for _, r := range a.ranges {
			if start < r.end && end > r.start {
				overlaps = true
				break
			}
		}

		if !overlaps {
			a.ranges = append(a.ranges, addrRange{start: start, end: end})
			sort.Slice(a.ranges, func(i, j int) bool {
				return a.ranges[i].start < a.ranges[j].start
			})
			return start, true
		}
	}

	return 0, false
}

// Deallocate releases a previously allocated block. The address and size
// must match the original allocation exactly.
func (a *AddressSpace) Deallocate(address, size uint64) bool {
	target := addrRange{start: address, end: address + size}
	for i, r := range a.ranges {
		if r == target {
			a.ranges = append(a.ranges[:i], a.ranges[i+1:]...)
			return true
		}
	}
	return false
}

// IsAllocated returns true if the address falls in an allocated range.
func (a *AddressSpace) IsAllocated(address uint64) bool {
	for _, r := range a.ranges {
		if address >= r.start && address < r.end {
			return true
		}
	}
	return false
}

// FreeSpace returns the number of unallocated bytes.
func (a *AddressSpace) FreeSpace() uint64 {
	allocated := uint64(0)
	for _, r := range a.ranges {
		allocated += r.end - r.start
	}
	return a.size - allocated
}

// Fragmentation returns the ratio of gaps between allocated ranges to the
// number of allocated ranges.
func (a *AddressSpace) Fragmentation() float64 {
	if len(a.ranges) == 0 {
		return 0.0
	}

	gaps := 0
	for i := 0; i < len(a.ranges)-1; i++ {
		if a.ranges[i].end < a.ranges[i+1].start {
			gaps++
		}
	}

	return float64(gaps) / float64(len(a.ranges))
}

// AlignAddress rounds an address up to the given power-of-two boundary.
func AlignAddress(address, alignment uint64) uint64 {
	return (address + alignment - 1) &^ (alignment - 1)
}

func formatAddress(address uint64) string {
	return fmt.Sprintf("0x%08x", address)
}
