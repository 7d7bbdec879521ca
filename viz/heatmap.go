package viz

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/sarchlab/uemu/tracing"
)

// heatChars orders the glyphs used for heat levels, coldest first.
const heatChars = " .:-=+*#%@"

// MemoryHeatmap renders accessed addresses as a two-dimensional heat grid.
// Addresses spread horizontally by position in the accessed range and
// vertically by hash.
func (v *VisualizationSystem) MemoryHeatmap(width, height int) string {
	if v.tracer == nil {
		return "No tracer available for memory heatmap"
	}

	et := tracing.MemoryAccess
	events := v.tracer.GetEvents(tracing.EventQuery{Type: &et})
	if len(events) == 0 {
		return "No memory access events to display"
	}

	var addresses []uint64
	for _, e := range events {
		if e.Address != nil {
			addresses = append(addresses, *e.Address)
		}
	}

	if len(addresses) == 0 {
		return "No memory addresses found in events"
	}

	minAddr, maxAddr := addresses[0], addresses[0]
	for _, addr := range addresses {
		if addr < minAddr {
			minAddr = addr
		}
		if addr > maxAddr {
			maxAddr = addr
		}
	}

	if maxAddr == minAddr {
		return "All memory accesses to same address"
	}

	grid := make([][]int, height)
	for y := range grid {
		grid[y] = make([]int, width)
	}

	addrRange := maxAddr - minAddr
	for _, addr := range addresses {
		x := int(float64(addr-minAddr) / float64(addrRange) *
			float64(width-1))
		y := int(hashAddress(addr) % uint32(height))

		grid[y][x]++
	}

	maxCount := 0
	for _, row := range grid {
		for _, count := range row {
			if count > maxCount {
				maxCount = count
			}
		}
	}

	lines := []string{
		"Memory Access Heatmap",
		strings.Repeat("=", width),
		fmt.Sprintf("Address Range: 0x%08x - 0x%08x", minAddr, maxAddr),
		"",
	}

	for _, row := range grid {
		var sb strings.Builder
		for _, count := range row {
			level := count * (len(heatChars) - 1) / maxCount
			sb.WriteByte(heatChars[level])
		}

		lines = append(lines, sb.String())
	}

	lines = append(lines,
		"",
		fmt.Sprintf("Heat Scale: '%c' (0 accesses) to '%c' (%d accesses)",
			heatChars[0], heatChars[len(heatChars)-1], maxCount),
		"",
	)

	return strings.Join(lines, "\n")
}

func hashAddress(addr uint64) uint32 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], addr)

	h := fnv.New32a()
	h.Write(b[:])

	return h.Sum32()
}
