package tts

import "fmt"

// ConfigError is fatal at construction and never recovered.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("tts config: %s", e.Reason)
}

// TransportError marks a connection-level failure: refused dials,
// abrupt closes, non-success HTTP status. Fatal to the in-flight
// session only.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("tts transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError carries a service-reported failure verbatim.
type ProtocolError struct {
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("tts service error (code %d): %s", e.Code, e.Message)
}

// UnexpectedCloseError is reported when the socket closes before the
// caller-driven shutdown sequence completed, so callers can tell a
// clean finish from a mid-utterance drop.
type UnexpectedCloseError struct {
	Err error
}

func (e *UnexpectedCloseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tts stream closed unexpectedly: %v", e.Err)
	}
	return "tts stream closed unexpectedly"
}

func (e *UnexpectedCloseError) Unwrap() error {
	return e.Err
}
