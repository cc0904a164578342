package csvimport

import "fmt"

// State is the lifecycle state of an uploaded CSV.
type State string

const (
	StateUploaded          State = "UPLOADED"
	StateValidationQueued  State = "VALIDATION_QUEUED"
	StateValidationRunning State = "VALIDATION_RUNNING"
	StateValidationStopped State = "VALIDATION_STOPPED"
	StateValidationFailed  State = "VALIDATION_FAILED"
	StateValidationDone    State = "VALIDATION_DONE"
	StateImportQueued      State = "IMPORT_QUEUED"
	StateImportRunning     State = "IMPORT_RUNNING"
	StateImportStopped     State = "IMPORT_STOPPED"
	StateImportFailed      State = "IMPORT_FAILED"
	StateImportDone        State = "IMPORT_DONE"
)

// AllStates lists every state in declaration order.
var AllStates = []State{
	StateUploaded,
	StateValidationQueued,
	StateValidationRunning,
	StateValidationStopped,
	StateValidationFailed,
	StateValidationDone,
	StateImportQueued,
	StateImportRunning,
	StateImportStopped,
	StateImportFailed,
	StateImportDone,
}

// transitions is the directed "next states" table. States missing from the
// table (or mapped to nothing) have no outgoing edges.
var transitions = map[State][]State{
	StateUploaded:          {StateValidationQueued},
	StateValidationQueued:  {StateValidationRunning},
	StateValidationRunning: {StateValidationStopped, StateValidationFailed, StateValidationDone},
	StateValidationStopped: {StateValidationQueued},
	StateValidationDone:    {StateImportQueued},
	StateImportQueued:      {StateImportRunning},
	StateImportRunning:     {StateImportStopped, StateImportFailed, StateImportDone},
	StateImportStopped:     {StateImportQueued},
}

func ParseState(raw string) (State, error) {
	for _, s := range AllStates {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown csv state %q", raw)
}

// Next returns the directly reachable states. The returned slice is a copy.
func (s State) Next() []State {
	next := transitions[s]
	out := make([]State, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether s has no outgoing edges. This is a property of the
// table only; VALIDATION_DONE is not terminal because import may follow.
func (s State) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s State) CanTransitionTo(target State) bool {
	for _, n := range transitions[s] {
		if n == target {
			return true
		}
	}
	return false
}

// IsBefore reports whether other is reachable from s by one or more edges.
func (s State) IsBefore(other State) bool {
	return reachable(s, other)
}

// IsAfter reports whether s is reachable from other by one or more edges.
func (s State) IsAfter(other State) bool {
	return reachable(other, s)
}

func (s State) IsSameOrBefore(other State) bool {
	return s == other || s.IsBefore(other)
}

func (s State) IsSameOrAfter(other State) bool {
	return s == other || s.IsAfter(other)
}

// reachable runs a breadth-first search from's successors; the visited set keeps
// the search finite even though STOPPED -> QUEUED introduces cycles.
func reachable(from, to State) bool {
	visited := map[State]bool{}
	queue := append([]State(nil), transitions[from]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		queue = append(queue, transitions[cur]...)
	}
	return false
}

// IsValidationActive reports whether a validation job is queued or running.
func (s State) IsValidationActive() bool {
	return s == StateValidationQueued || s == StateValidationRunning
}

// IsImportActive reports whether an import job is queued or running.
func (s State) IsImportActive() bool {
	return s == StateImportQueued || s == StateImportRunning
}
