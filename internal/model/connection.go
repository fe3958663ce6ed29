package model

// ConnState is an account's connection lifecycle state.
type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnConnected
	ConnSyncing
	ConnError
)

// ConnectionState pairs the lifecycle state with the error reason when
// the state is ConnError. Error is sticky: it is only left through an
// explicit reconnect request.
type ConnectionState struct {
	State  ConnState
	Reason string
}

// Connecting, Connected, Syncing and Disconnected are the error-free states.
func Connecting() ConnectionState   { return ConnectionState{State: ConnConnecting} }
func Connected() ConnectionState    { return ConnectionState{State: ConnConnected} }
func Syncing() ConnectionState      { return ConnectionState{State: ConnSyncing} }
func Disconnected() ConnectionState { return ConnectionState{State: ConnDisconnected} }

// ConnFailed returns the Error state carrying a human-readable reason.
func ConnFailed(reason string) ConnectionState {
	return ConnectionState{State: ConnError, Reason: reason}
}

// IsError reports whether the account requires an explicit reconnect.
func (c ConnectionState) IsError() bool { return c.State == ConnError }

// Label returns the sidebar pill text for this state.
func (c ConnectionState) Label() string {
	switch c.State {
	case ConnConnected:
		return "connected"
	case ConnConnecting:
		return "connecting..."
	case ConnSyncing:
		return "syncing..."
	case ConnError:
		return "offline: " + c.Reason
	default:
		return "disconnected"
	}
}
