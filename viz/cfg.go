package viz

import (
	"fmt"
	"sort"

	"github.com/sarchlab/uemu/tracing"
)

// A CFGNode is one program-counter location observed during execution.
type CFGNode struct {
	Address uint64 `json:"address"`
	ID      string `json:"id"`
}

// A CFGEdge connects two consecutively executed locations. Type is
// "sequential" when the target directly follows the source, and
// "control_flow" when execution jumped.
type CFGEdge struct {
	Source uint64 `json:"source"`
	Target uint64 `json:"target"`
	Type   string `json:"type"`
}

// CFGStats summarizes a control flow graph.
type CFGStats struct {
	TotalNodes       int `json:"total_nodes"`
	TotalEdges       int `json:"total_edges"`
	ControlFlowEdges int `json:"control_flow_edges"`
	SequentialEdges  int `json:"sequential_edges"`
}

// A ControlFlowGraph is the observed control flow of an execution.
type ControlFlowGraph struct {
	Nodes []CFGNode `json:"nodes"`
	Edges []CFGEdge `json:"edges"`
	Stats CFGStats  `json:"stats"`
}

// ControlFlowGraph reconstructs the control flow from the recorded
// instruction events.
func (v *VisualizationSystem) ControlFlowGraph() ControlFlowGraph {
	g := ControlFlowGraph{
		Nodes: []CFGNode{},
		Edges: []CFGEdge{},
	}

	if v.tracer == nil {
		return g
	}

	et := tracing.Instruction
	events := v.tracer.GetEvents(tracing.EventQuery{Type: &et})

	nodeSet := make(map[uint64]bool)
	var prevPC uint64
	havePrev := false

	for _, e := range events {
		pc, ok := pcOfEvent(e)
		if !ok {
			continue
		}

		nodeSet[pc] = true

		if havePrev {
			edgeType := "sequential"
			if prevPC+1 != pc {
				edgeType = "control_flow"
			}

			g.Edges = append(g.Edges, CFGEdge{
				Source: prevPC,
				Target: pc,
				Type:   edgeType,
			})
		}

		prevPC = pc
		havePrev = true
	}

	addresses := make([]uint64, 0, len(nodeSet))
	for addr := range nodeSet {
		addresses = append(addresses, addr)
	}
	sort.Slice(addresses, func(i, j int) bool {
		return addresses[i] < addresses[j]
	})

	for _, addr := range addresses {
		g.Nodes = append(g.Nodes, CFGNode{
			Address: addr,
			ID:      fmt.Sprintf("addr_%d", addr),
		})
	}

	g.Stats.TotalNodes = len(g.Nodes)
	g.Stats.TotalEdges = len(g.Edges)
	for _, e := range g.Edges {
		if e.Type == "control_flow" {
			g.Stats.ControlFlowEdges++
		} else {
			g.Stats.SequentialEdges++
		}
	}

	return g
}

// pcOfEvent extracts the program counter an instruction event recorded.
// The pc lands in Data as uint64 in memory but as float64 after a JSON
// round trip.
func pcOfEvent(e tracing.TraceEvent) (uint64, bool) {
	raw, ok := e.Data["pc"]
	if !ok {
		return 0, false
	}

	switch pc := raw.(type) {
	case uint64:
		return pc, true
	case int:
		return uint64(pc), true
	case int64:
		return uint64(pc), true
	case float64:
		return uint64(pc), true
	}

	return 0, false
}
