package module

import "fmt"

// State is the lifecycle position of a module within one top-level build.
type State int

const (
	StateNotStarted State = iota
	StateStarted
	StateSucceeded
	StateFailed
	StateNotBuilt
)

var stateNames = [...]string{"NOT_STARTED", "STARTED", "SUCCEEDED", "FAILED", "NOT_BUILT"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown module state %q", b)
}

// IsTerminal returns true if no further transition is expected in this build.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateNotBuilt
}

// Result is the outcome recorded for a module or for the whole build.
type Result string

const (
	ResultSuccess  Result = "SUCCESS"
	ResultUnstable Result = "UNSTABLE"
	ResultFailure  Result = "FAILURE"
	ResultNotBuilt Result = "NOT_BUILT"
	ResultAborted  Result = "ABORTED"
)

var resultOrdinal = map[Result]int{
	ResultSuccess:  0,
	ResultUnstable: 1,
	ResultFailure:  2,
	ResultNotBuilt: 3,
	ResultAborted:  4,
}

// IsWorseThan reports whether r ranks below o (SUCCESS < UNSTABLE < FAILURE < NOT_BUILT < ABORTED).
func (r Result) IsWorseThan(o Result) bool {
	return resultOrdinal[r] > resultOrdinal[o]
}

// Worse returns the worse of r and o.
func (r Result) Worse(o Result) Result {
	if o.IsWorseThan(r) {
		return o
	}
	return r
}

// IsValid reports whether r is one of the known results.
func (r Result) IsValid() bool {
	_, ok := resultOrdinal[r]
	return ok
}

// StateFor maps a terminal result onto the lifecycle state it produces.
func StateFor(r Result) State {
	switch r {
	case ResultSuccess, ResultUnstable:
		return StateSucceeded
	case ResultNotBuilt:
		return StateNotBuilt
	default:
		return StateFailed
	}
}
