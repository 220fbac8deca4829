package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownSyncType indicates no controller is registered for the sync type
	ErrUnknownSyncType = errors.New("unknown sync type")

	// ErrMissingCredentials indicates a required external credential is not configured.
	// This is run-fatal: no chunk work is attempted.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrContinuationContract indicates a response asked for continuation without an offset
	ErrContinuationContract = errors.New("continuation requested without next offset")

	// ErrStaleResumeToken indicates the resume token belongs to a different run
	ErrStaleResumeToken = errors.New("resume token does not match current run")

	// ErrBatchFailed indicates a whole-chunk external call failed
	ErrBatchFailed = errors.New("batch operation failed")

	// ErrRateLimited indicates the upstream API rejected the call for quota reasons
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates the external service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so retry loops give up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// ItemErrors attributes failures to individual items of a batch call that
// otherwise succeeded. Items absent from the map succeeded.
type ItemErrors map[string]error

func (e ItemErrors) Error() string {
	ids := make([]string, 0, len(e))
	for id := range e {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s: %v", id, e[id])
	}
	return fmt.Sprintf("%d items failed: %s", len(ids), strings.Join(parts, "; "))
}
