// Package cpu implements the emulated processor: its register file, program
// counter, execution state machine, and typed instruction side effects.
package cpu

// State is the execution state of a processor.
type State int

// The processor states.
const (
	Idle       State = iota // Not running any code
	Running                 // Actively executing instructions
	Waiting                 // Waiting on synchronization
	Blocked                 // Blocked on a resource
	Terminated              // Execution terminated
)

var stateNames = []string{
	"IDLE", "RUNNING", "WAITING", "BLOCKED", "TERMINATED",
}

func (s State) String() string {
	return stateNames[int(s)]
}
