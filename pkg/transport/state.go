package transport

// State is a step in the life of a single send.
//
//	Idle → Connecting → Sending → Closing → Succeeded
//	                 ↘         ↘         ↘ Failed
type State int

const (
	Idle State = iota
	Connecting
	Sending
	Closing
	Succeeded
	Failed
)

var stateNames = [...]string{
	Idle:       "idle",
	Connecting: "connecting",
	Sending:    "sending",
	Closing:    "closing",
	Succeeded:  "succeeded",
	Failed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether s ends a send.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}
