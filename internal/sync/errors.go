package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"google.golang.org/api/googleapi"
)

var (
	// ErrConflict is matched by a *ConflictError.
	ErrConflict = errors.New("sync: remote snapshot is newer than local changes")
	// ErrRateLimited is matched by an *Error of KindRateLimited.
	ErrRateLimited = errors.New("sync: cooldown not elapsed")
	// ErrNoSnapshot is returned when the remote holds nothing to download.
	ErrNoSnapshot = errors.New("sync: no remote snapshot")
)

// Kind classifies sync failures.
type Kind int

const (
	KindGeneric Kind = iota
	KindRateLimited
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindNetwork:
		return "network"
	default:
		return "generic"
	}
}

// Error is a failed sync attempt. Wait is set for KindRateLimited.
type Error struct {
	Kind      Kind
	Retryable bool
	Wait      time.Duration
	Err       error
}

func (e *Error) Error() string {
	if e.Kind == KindRateLimited {
		return fmt.Sprintf("sync rate limited, retry in %s", e.Wait.Round(time.Second))
	}
	return fmt.Sprintf("sync failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrRateLimited) hold for rate-limit errors.
func (e *Error) Is(target error) bool {
	return target == ErrRateLimited && e.Kind == KindRateLimited
}

// ConflictError reports a remote snapshot newer than the local data. It must
// be settled with Client.Resolve.
type ConflictError struct {
	Local  time.Time
	Remote time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("sync conflict: remote snapshot from %s is newer than local changes from %s",
		e.Remote.Format(time.RFC3339), e.Local.Format(time.RFC3339))
}

// Is makes errors.Is(err, ErrConflict) hold.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// classify wraps err as an *Error. Transport failures are KindNetwork; all
// other failures are KindGeneric. Both are retryable by the user.
func classify(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	kind := KindGeneric
	if isNetwork(err) {
		kind = KindNetwork
	}
	return &Error{Kind: kind, Retryable: true, Err: err}
}

func isNetwork(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	return false
}
