package sysroot

import "fmt"

// State is a step of a run
type State int

const (
	Idle State = iota
	Resolving
	Loading
	Fingerprinting
	CacheLookup
	Locking
	Synthesizing
	Building
	Publishing
	Done
	Failed
)

var stateNames = map[State]string{
	Idle:           "idle",
	Resolving:      "resolving",
	Loading:        "loading",
	Fingerprinting: "fingerprinting",
	CacheLookup:    "cache lookup",
	Locking:        "locking",
	Synthesizing:   "synthesizing",
	Building:       "building",
	Publishing:     "publishing",
	Done:           "done",
	Failed:         "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("State(%d)", int(s))
}
