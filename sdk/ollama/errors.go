package ollama

import (
	"fmt"

	"github.com/modelpilot/ollamactl/internal/enginectl"
)

// Sentinels surfaced by supervised calls, re-exported so callers need not
// import the supervisor package.
var (
	// ErrAPINotReachable means readiness could not be confirmed within the
	// configured timeout. Never retried automatically beyond the poll loop.
	ErrAPINotReachable = enginectl.ErrAPINotReachable

	// ErrBinaryNotFound means the supervised server executable could not
	// be located. Fatal for that launch attempt.
	ErrBinaryNotFound = enginectl.ErrBinaryNotFound
)

// StatusError is a non-success HTTP reply from the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Code)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Message)
}

// DecodeError means a fully-extracted frame did not match its expected
// shape: either a protocol version mismatch or genuine corruption. The
// raw frame is retained for diagnostics.
type DecodeError struct {
	Raw []byte
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame %q: %v", e.Raw, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ServerError is an in-band {"error": "..."} reply or frame from the
// server, delivered with a success transport status.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return "server error: " + e.Message }
