package bundle

import "strconv"

// State is a step of the deployment lifecycle:
// Unknown -> {Valid, Invalid} -> Deploying -> {Committed, Failed}.
type State int

const (
	// StateUnknown means the target directory has not been inspected yet.
	StateUnknown State = iota
	// StateValid means the directory is complete and at the expected version.
	StateValid
	// StateInvalid means the directory must be re-extracted.
	StateInvalid
	// StateDeploying means staging, extraction and commit are in progress.
	StateDeploying
	// StateCommitted means the marker has been written for the expected version.
	StateCommitted
	// StateFailed means the attempt stopped on an unrecoverable error.
	StateFailed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	case StateDeploying:
		return "deploying"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Ready reports whether libraries may be loaded from the directory.
func (s State) Ready() bool {
	return s == StateValid || s == StateCommitted
}
