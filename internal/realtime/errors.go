package realtime

import "fmt"

// ConnectionError reports a transport failure on the upstream socket. It is
// terminal for the current turn; no reconnect is attempted.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("realtime %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError reports a rejected credential during the websocket handshake.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("realtime auth rejected with status %d", e.Status)
}
