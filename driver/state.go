package driver

// State is the driver lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateRunning
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	default:
		return "unknown"
	}
}
