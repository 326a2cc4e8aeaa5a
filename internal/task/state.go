package task

import "fmt"

type State string

const (
	StatePending       State = "PENDING"
	StateInputsStaged  State = "INPUTS_STAGED"
	StateBinaryRunning State = "BINARY_RUNNING"
	StateSuccess       State = "SUCCESS"
	StateBinaryFailed  State = "BINARY_FAILED"
	StateOutputMissing State = "OUTPUT_MISSING"
)

// IsTerminal reports whether no further transition is possible from s.
func IsTerminal(s State) bool {
	switch s {
	case StateSuccess, StateBinaryFailed, StateOutputMissing:
		return true
	default:
		return false
	}
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateInputsStaged
	case StateInputsStaged:
		return to == StateBinaryRunning
	case StateBinaryRunning:
		return to == StateSuccess || to == StateBinaryFailed || to == StateOutputMissing
	default:
		return false
	}
}

// Machine tracks the state of one task run.
type Machine struct {
	state State
}

func NewMachine() *Machine {
	return &Machine{state: StatePending}
}

func (m *Machine) State() State {
	return m.state
}

// Transition moves the machine from its current state to to, rejecting any
// step not in the task lifecycle.
func (m *Machine) Transition(to State) error {
	if m == nil {
		return fmt.Errorf("nil state machine")
	}
	if !isAllowedTransition(m.state, to) {
		return fmt.Errorf("disallowed task transition: %s -> %s", m.state, to)
	}
	m.state = to
	return nil
}
