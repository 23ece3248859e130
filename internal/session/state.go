package session

type State string

const (
	StateCreated          State = "CREATED"
	StateStarted          State = "STARTED"
	StateAwaitingResponse State = "AWAITING_RESPONSE"
	StateEnded            State = "ENDED"
	StateFailed           State = "FAILED"
)

func (s State) Terminal() bool {
	return s == StateEnded || s == StateFailed
}

// CanTransition reports whether the lifecycle allows moving from one state to
// another. Terminal states accept nothing; any live state may end or fail.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StateEnded, StateFailed:
		return true
	case StateStarted:
		return from == StateCreated
	case StateAwaitingResponse:
		return from == StateStarted || from == StateAwaitingResponse
	default:
		return false
	}
}
