package insts

// A Pipeline models an in-order instruction pipeline with a fixed number of
// stages. Instructions enter at stage 0 and complete when they shift out of
// the last stage.
type Pipeline struct {
	stages      []*Instruction
	stallCycles int
}

// NewPipeline creates a pipeline with the given number of stages.
func NewPipeline(numStages int) *Pipeline {
	return &Pipeline{
		stages: make([]*Instruction, numStages),
	}
}

// Insert places an instruction into the first stage. It returns false if the
// first stage is occupied.
func (p *Pipeline) Insert(inst *Instruction) bool {
	if p.stages[0] != nil {
		return false
	}

	p.stages[0] = inst

	return true
}

// Advance moves the pipeline forward by one cycle and returns the
// instruction completing this cycle, if any. Advancing a stalled pipeline
// consumes one stall cycle and moves nothing.
func (p *Pipeline) Advance() *Instruction {
	if p.stallCycles > 0 {
		p.stallCycles--
		return nil
	}

	completed := p.stages[len(p.stages)-1]

	for i := len(p.stages) - 1; i > 0; i-- {
		p.stages[i] = p.stages[i-1]
	}
	p.stages[0] = nil

	return completed
}

// Stall holds the pipeline in place for the given number of cycles.
func (p *Pipeline) Stall(cycles int) {
	p.stallCycles = cycles
}

// Flush discards all in-flight instructions and pending stalls.
func (p *Pipeline) Flush() {
	for i := range p.stages {
		p.stages[i] = nil
	}
	p.stallCycles = 0
}

// IsEmpty returns true if no instruction is in flight.
func (p *Pipeline) IsEmpty() bool {
	for _, s := range p.stages {
		if s != nil {
			return false
		}
	}

	return true
}

// Utilization returns the percentage of occupied stages.
func (p *Pipeline) Utilization() float64 {
	occupied := 0
	for _, s := range p.stages {
		if s != nil {
			occupied++
		}
	}

	return float64(occupied) / float64(len(p.stages)) * 100.0
}
