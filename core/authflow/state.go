package authflow

// State is a node of the authorization state machine.
type State int

const (
	// HasSession: the session already carries a user. Pass through.
	HasSession State = iota + 1
	// NotEmbeddedClient: the request does not come from the WeChat browser. Pass through.
	NotEmbeddedClient
	// AlreadyAuthorized: the completion marker is present. Pass through.
	AlreadyAuthorized
	// NeedsRedirect: no code yet, send the browser to the provider.
	NeedsRedirect
	// HasCode: the provider called back with a code to exchange.
	HasCode
	// SessionWritten: the exchange succeeded and the browser goes back to its target.
	SessionWritten
	// Failed: the exchange failed.
	Failed
)

func (s State) String() string {
	switch s {
	case HasSession:
		return "has_session"
	case NotEmbeddedClient:
		return "not_embedded_client"
	case AlreadyAuthorized:
		return "already_authorized"
	case NeedsRedirect:
		return "needs_redirect"
	case HasCode:
		return "has_code"
	case SessionWritten:
		return "session_written"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// PassThrough reports whether the request continues to the next handler untouched.
func (s State) PassThrough() bool {
	return s == HasSession || s == NotEmbeddedClient || s == AlreadyAuthorized
}

// Classify picks the state for req. It performs no I/O.
// Checks run in order: session, client, completion marker, code.
func Classify(req Request, authenticated bool) State {
	switch {
	case authenticated:
		return HasSession
	case !req.Embedded():
		return NotEmbeddedClient
	case req.Authorized:
		return AlreadyAuthorized
	case req.Code == "":
		return NeedsRedirect
	default:
		return HasCode
	}
}
