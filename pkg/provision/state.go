package provision

import "time"

// State is a session lifecycle state.
type State int

const (
	Idle State = iota
	Validating
	Planning
	Executing
	Succeeded
	Failed
)

var stateNames = [...]string{
	Idle:       "idle",
	Validating: "validating",
	Planning:   "planning",
	Executing:  "executing",
	Succeeded:  "succeeded",
	Failed:     "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool { return s == Succeeded || s == Failed }

// StepRecord is one executed step.
type StepRecord struct {
	Name    string
	Elapsed time.Duration
	Err     error
}

// Outcome describes how a session ended. Provision always returns one.
type Outcome struct {
	Plan    *Plan // nil when validation or planning failed
	State   State
	History []State // every state entered, starting at Idle

	// FailedIn is the last non-terminal state before Failed.
	FailedIn   State
	FailedStep string
	Steps      []StepRecord
	Err        error
}

// Succeeded reports whether the VM was launched.
func (o *Outcome) Succeeded() bool { return o.State == Succeeded }

func (o *Outcome) enter(s State) {
	if s == Failed {
		o.FailedIn = o.State
	}
	o.State = s
	o.History = append(o.History, s)
}
