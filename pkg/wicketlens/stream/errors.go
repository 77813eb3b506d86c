package stream

import (
	"errors"
	"fmt"
)

// ErrEmptyStream is returned when an event-stream response ends before a
// terminal result or error frame arrives.
var ErrEmptyStream = errors.New("event stream ended without a result")

// ServerError is a non-2xx backend response, carrying the body as detail.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Body)
}

// ParseError is a malformed frame or payload. A ParseError inside a stream
// fails the whole analyze call; frames are not individually recoverable.
type ParseError struct {
	Frame string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed event frame %q: %v", e.Frame, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// AnalysisError is an error frame sent by the backend mid-stream.
type AnalysisError struct {
	Message string
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed: %s", e.Message)
}
