package assistant

import (
	"errors"
	"fmt"
)

var (
	// ErrRunTimeout means the run was still pending after the last poll.
	ErrRunTimeout = errors.New("assistant run did not complete in time")
	// ErrRunFailed means the run reached a terminal status other than completed.
	ErrRunFailed = errors.New("assistant run failed")
	// ErrEmptyAnswer means the run completed but left no text reply.
	ErrEmptyAnswer = errors.New("assistant returned no text answer")
)

// UpstreamError reports a failed interaction with the assistant service.
// Op names the step that failed.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("assistant %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}
