package session

// State is the coordinator's session state. Exactly one State holds at any
// moment; transitions are totally ordered by the coordinator's lock.
type State int

const (
	// Idle means no recognition session exists.
	Idle State = iota

	// Starting means a start is in flight, awaiting engine confirmation.
	Starting

	// Listening means the microphone is hot and transcripts flow.
	Listening

	// Muted means the microphone is hot but transcript delivery is
	// suppressed, typically for the duration of speech playback.
	Muted

	// Stopping means a teardown is in flight.
	Stopping

	// Failed means the engine could not be started; see
	// [Coordinator.FailReason].
	Failed
)

// String returns the state name used in logs and metric attributes.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Listening:
		return "listening"
	case Muted:
		return "muted"
	case Stopping:
		return "stopping"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// active reports whether the recognition session exists in this state.
func (s State) active() bool {
	return s == Starting || s == Listening || s == Muted
}
