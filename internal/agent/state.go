package agent

// State is the connection state of an Agent.
type State int

const (
	Connecting State = iota
	ConnectedPush
	ConnectedPull
	Reconnecting
	Failed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case ConnectedPush:
		return "connected-push"
	case ConnectedPull:
		return "connected-pull"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
