package bridge

// Session tracks the single Mcp-Session-Id issued by the remote server for
// the lifetime of the process. It is either empty (no session) or holds the
// most recently issued token; the main loop is strictly sequential so no
// locking is needed.
type Session struct {
	id string
}

// NewSession returns a Session with no token.
func NewSession() *Session {
	return &Session{}
}

// Header returns the current token and whether one is live.
func (s *Session) Header() (string, bool) {
	return s.id, s.id != ""
}

// Update adopts a server-issued token. Both first issuance and renewal land
// here; an empty value is ignored so responses without the header leave the
// session untouched.
func (s *Session) Update(id string) {
	if id == "" {
		return
	}
	s.id = id
}

// Clear drops the current token. The next outbound request omits the session
// header, so the server treats the client's next exchange as a fresh start.
func (s *Session) Clear() {
	s.id = ""
}
