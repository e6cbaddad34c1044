package session

// State is the lifecycle phase of a session.
type State int

const (
	StateLoading State = iota
	StateActive
	StateCompleting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateCompleting:
		return "completing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Outcome is how a session ended.
type Outcome int

const (
	// OutcomeCompleted means the level was cleared and the server confirmed it.
	OutcomeCompleted Outcome = iota
	// OutcomeAbandoned means a fatal error stopped the session.
	OutcomeAbandoned
	// OutcomeCancelled means the user or the caller stopped the session.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeAbandoned:
		return "abandoned"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// NoticeKind classifies messages surfaced to the user.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	// NoticeRetry reports a recoverable failure; the session keeps going.
	NoticeRetry
	// NoticeError reports the failure that ended the session.
	NoticeError
)

// Notice is a user-facing message from the controller.
type Notice struct {
	Kind    NoticeKind
	Message string
	Err     error
}
