package auth

// State is a step of one authorization flow invocation.
type State int

const (
	StateIdle State = iota
	StateAuthorizeURLBuilt
	StateAwaitingRedirect
	StateRedirectReceived
	StateExchanging
	StateCompleted
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:              "idle",
	StateAuthorizeURLBuilt: "authorize_url_built",
	StateAwaitingRedirect:  "awaiting_redirect",
	StateRedirectReceived:  "redirect_received",
	StateExchanging:        "exchanging",
	StateCompleted:         "completed",
	StateFailed:            "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// StateObserver is told about every transition of a flow invocation.
type StateObserver func(flowID string, from, to State)
