package stage

// State is the lifecycle state of an Instance.
type State int32

const (
	// Created is the state of a new instance holding a validated configuration.
	Created State = iota
	// Initialized is reached when Init succeeds; it is followed by Ready at once.
	Initialized
	// Ready is the steady state in which documents are processed.
	Ready
	// InitFailed is terminal; the instance must be discarded.
	InitFailed
)

func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case Initialized:
		return "Initialized"
	case Ready:
		return "Ready"
	case InitFailed:
		return "InitFailed"
	}
	return "Unknown"
}
