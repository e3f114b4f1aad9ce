package proxySocket

// State of a Socket. It only moves forward, except that StateError can be
// entered from anywhere. StateClosed follows an explicit Disconnect.
type State int32

const (
	StateUninitialized State = iota
	StateResolvingProxy
	StateConnectingTransport
	StateTLSConnecting
	StateOpen
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateResolvingProxy:
		return "resolving_proxy"
	case StateConnectingTransport:
		return "connecting_transport"
	case StateTLSConnecting:
		return "tls_connecting"
	case StateOpen:
		return "open"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// terminal states accept no further transitions.
func (s State) terminal() bool {
	return s == StateError || s == StateClosed
}
