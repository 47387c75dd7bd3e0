package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimitExceeded is returned once the completion service kept answering 429 after every retry.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrPaymentRequired is returned on HTTP 402. It is never retried.
	ErrPaymentRequired = errors.New("payment required")

	// ErrRemoteCallFailed matches every *RemoteCallError via errors.Is.
	ErrRemoteCallFailed = errors.New("remote call failed")
)

// RemoteCallError carries the status and best-effort message of a non-2xx response.
type RemoteCallError struct {
	Function string
	Status   int
	Message  string
}

func (e *RemoteCallError) Error() string {
	if e.Function == "" {
		return fmt.Sprintf("remote call failed (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("remote call %s failed (%d): %s", e.Function, e.Status, e.Message)
}

func (e *RemoteCallError) Unwrap() error { return ErrRemoteCallFailed }
