// Package tap models the IEEE 1149.1 Test Access Port controller.
//
// The state indices are part of the device's vendor protocol: the
// JTAG_GOTO_STATE and JTAG_GET_STATE requests carry them on the wire, so
// their values and ordering must not change.
package tap

import "fmt"

// State is one of the 16 defined IEEE 1149.1 TAP controller states.
type State uint8

const (
	StateTestLogicReset State = iota
	StateRunTestIdle
	StateSelectDRScan
	StateCaptureDR
	StateShiftDR
	StateExit1DR
	StatePauseDR
	StateExit2DR
	StateUpdateDR
	StateSelectIRScan
	StateCaptureIR
	StateShiftIR
	StateExit1IR
	StatePauseIR
	StateExit2IR
	StateUpdateIR

	// StateCount is the number of defined TAP states.
	StateCount = 16
)

var stateNames = map[State]string{
	StateTestLogicReset: "TestLogicReset",
	StateRunTestIdle:    "RunTestIdle",
	StateSelectDRScan:   "SelectDRScan",
	StateCaptureDR:      "CaptureDR",
	StateShiftDR:        "ShiftDR",
	StateExit1DR:        "Exit1DR",
	StatePauseDR:        "PauseDR",
	StateExit2DR:        "Exit2DR",
	StateUpdateDR:       "UpdateDR",
	StateSelectIRScan:   "SelectIRScan",
	StateCaptureIR:      "CaptureIR",
	StateShiftIR:        "ShiftIR",
	StateExit1IR:        "Exit1IR",
	StatePauseIR:        "PauseIR",
	StateExit2IR:        "Exit2IR",
	StateUpdateIR:       "UpdateIR",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Valid reports whether s is one of the 16 defined states. Host-supplied
// state indices must be checked with this before use.
func (s State) Valid() bool {
	return s < StateCount
}

// StateForIndex converts a wire-protocol state index into a State.
func StateForIndex(index uint16) (State, error) {
	if index >= StateCount {
		return 0, fmt.Errorf("tap: state index %d out of range", index)
	}
	return State(index), nil
}

// Sequence captures a TMS drive pattern and the states the controller passes
// through while it is applied.
type Sequence struct {
	TMS    []bool
	States []State
}

// Len returns the number of TCK cycles the sequence occupies.
func (s Sequence) Len() int {
	return len(s.TMS)
}

type stateTransitions struct {
	onZero State
	onOne  State
}

var transitions = map[State]stateTransitions{
	StateTestLogicReset: {onZero: StateRunTestIdle, onOne: StateTestLogicReset},
	StateRunTestIdle:    {onZero: StateRunTestIdle, onOne: StateSelectDRScan},
	StateSelectDRScan:   {onZero: StateCaptureDR, onOne: StateSelectIRScan},
	StateCaptureDR:      {onZero: StateShiftDR, onOne: StateExit1DR},
	StateShiftDR:        {onZero: StateShiftDR, onOne: StateExit1DR},
	StateExit1DR:        {onZero: StatePauseDR, onOne: StateUpdateDR},
	StatePauseDR:        {onZero: StatePauseDR, onOne: StateExit2DR},
	StateExit2DR:        {onZero: StateShiftDR, onOne: StateUpdateDR},
	StateUpdateDR:       {onZero: StateRunTestIdle, onOne: StateSelectDRScan},
	StateSelectIRScan:   {onZero: StateCaptureIR, onOne: StateTestLogicReset},
	StateCaptureIR:      {onZero: StateShiftIR, onOne: StateExit1IR},
	StateShiftIR:        {onZero: StateShiftIR, onOne: StateExit1IR},
	StateExit1IR:        {onZero: StatePauseIR, onOne: StateUpdateIR},
	StatePauseIR:        {onZero: StatePauseIR, onOne: StateExit2IR},
	StateExit2IR:        {onZero: StateShiftIR, onOne: StateUpdateIR},
	StateUpdateIR:       {onZero: StateRunTestIdle, onOne: StateSelectDRScan},
}

// NextState returns the state after one TCK cycle with the given TMS value.
// It panics on an undefined state, which cannot happen through the exported
// API.
func NextState(current State, tms bool) State {
	row, ok := transitions[current]
	if !ok {
		panic(fmt.Sprintf("tap: unhandled state %d", current))
	}
	if tms {
		return row.onOne
	}
	return row.onZero
}

// StateMachine tracks the TAP controller state of the downstream device. It
// performs no I/O itself; the scan engine applies the TMS sequences it
// produces to the physical pins.
type StateMachine struct {
	state State
}

// NewStateMachine creates a TAP state machine initialized to
// Test-Logic-Reset.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: StateTestLogicReset}
}

// State reports the current tracked TAP state.
func (m *StateMachine) State() State {
	return m.state
}

// Clock advances the machine one TCK cycle with the provided TMS bit and
// returns the new state.
func (m *StateMachine) Clock(tms bool) State {
	m.state = NextState(m.state, tms)
	return m.state
}

// Reset applies the IEEE recommendation of five consecutive TMS=1 cycles,
// which reaches Test-Logic-Reset from any state. The generated sequence is
// returned so it can be driven onto the pins.
func (m *StateMachine) Reset() Sequence {
	seq := Sequence{
		TMS:    make([]bool, 5),
		States: make([]State, 6),
	}
	seq.States[0] = m.state
	for i := 0; i < 5; i++ {
		seq.TMS[i] = true
		seq.States[i+1] = m.Clock(true)
	}
	return seq
}

// GoTo computes the minimal TMS sequence from the current state to target,
// advances the machine along it, and returns it. Requesting the current
// state yields a zero-length sequence.
func (m *StateMachine) GoTo(target State) (Sequence, error) {
	path, err := Path(m.state, target)
	if err != nil {
		return Sequence{}, err
	}
	m.state = target
	return path, nil
}

// Path computes the minimal-length TMS sequence between two states using BFS
// over the TAP state diagram. It does not mutate any tracker.
func Path(from, to State) (Sequence, error) {
	if !from.Valid() {
		return Sequence{}, fmt.Errorf("tap: invalid start state %d", from)
	}
	if !to.Valid() {
		return Sequence{}, fmt.Errorf("tap: invalid target state %d", to)
	}
	if from == to {
		return Sequence{States: []State{from}}, nil
	}

	type node struct {
		state  State
		tms    []bool
		states []State
	}

	queue := []node{{
		state:  from,
		states: []State{from},
	}}
	visited := map[State]struct{}{from: {}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, tms := range []bool{false, true} {
			next := NextState(current.state, tms)
			if _, seen := visited[next]; seen {
				continue
			}

			newTMS := append(append([]bool{}, current.tms...), tms)
			newStates := append(append([]State{}, current.states...), next)

			if next == to {
				return Sequence{TMS: newTMS, States: newStates}, nil
			}

			visited[next] = struct{}{}
			queue = append(queue, node{
				state:  next,
				tms:    newTMS,
				states: newStates,
			})
		}
	}

	return Sequence{}, fmt.Errorf("tap: no path from %s to %s", from, to)
}
