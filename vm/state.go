package vm

// State is the life-cycle state of a virtual machine.
type State int

// Possible virtual machine states.
const (
	// StateIdle means the machine has not started running.
	StateIdle State = iota

	// StateRunning means the machine is executing.
	StateRunning

	// StatePaused means execution is suspended and can resume.
	StatePaused

	// StateFinished means execution completed.
	StateFinished
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	}

	return "unknown"
}
