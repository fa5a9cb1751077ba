package position

// State represents the position state machine state.
type State int32

const (
	Flat State = iota
	Entering
	Long
	Exiting
	DoneForDay
)

// String stringifies the provided state.
func (s State) String() string {
	switch s {
	case Flat:
		return "flat"
	case Entering:
		return "entering"
	case Long:
		return "long"
	case Exiting:
		return "exiting"
	case DoneForDay:
		return "done for day"
	default:
		return "unknown"
	}
}
