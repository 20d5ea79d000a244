package update

import (
	"errors"
	"fmt"
)

var (
	// ErrDeclined is wrapped when the user declines a gate. It is a
	// graceful end of the update, not a failure.
	ErrDeclined = errors.New("update declined")

	// ErrDigestMismatch indicates the artifact hash does not match the
	// published digest.
	ErrDigestMismatch = errors.New("digest mismatch")

	// ErrLocked indicates another updater holds the lock for the target.
	ErrLocked = errors.New("another update is in progress")
)

// ErrorKind classifies transaction failures.
type ErrorKind int

const (
	// KindNetwork is a fetch failure before any file was touched.
	KindNetwork ErrorKind = iota + 1
	// KindIntegrityMismatch is a declined digest mismatch.
	KindIntegrityMismatch
	// KindIntegrityUnavailable is a declined unverified update.
	KindIntegrityUnavailable
	// KindStaging is a failure writing the new slot. The live file is untouched.
	KindStaging
	// KindSwap is a failure renaming slots.
	KindSwap
	// KindCleanup is a failure removing the backup. It never fails the update.
	KindCleanup
	// KindLocked means a concurrent transaction holds the target.
	KindLocked
)

// String returns the kind name used in messages and logs.
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindIntegrityMismatch:
		return "integrity mismatch"
	case KindIntegrityUnavailable:
		return "integrity unavailable"
	case KindStaging:
		return "staging"
	case KindSwap:
		return "swap"
	case KindCleanup:
		return "cleanup"
	case KindLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// DigestMismatchError reports both hashes of a failed verification.
// It wraps ErrDigestMismatch so callers can use errors.Is for classification.
type DigestMismatchError struct {
	Expected string
	Got      string
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("digest verification failed\nExpected: %s\nGot:      %s", e.Expected, e.Got)
}

// Unwrap returns ErrDigestMismatch so callers can use errors.Is.
func (e *DigestMismatchError) Unwrap() error { return ErrDigestMismatch }

// TxError is a failed or declined transaction step.
type TxError struct {
	Kind       ErrorKind
	State      State  // State the transaction was in when it stopped
	Path       string // File involved, if any
	Recovery   string // Recommended next action for the user
	Incomplete bool   // True if the live executable may be missing
	Err        error
}

func (e *TxError) Error() string {
	msg := fmt.Sprintf("%s failure in state %s", e.Kind, e.State)
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TxError) Unwrap() error { return e.Err }

// IsDeclined returns true if err ended the update because the user said no.
func IsDeclined(err error) bool {
	return errors.Is(err, ErrDeclined)
}

// IsIncomplete returns true if err left the target without a live
// executable.
func IsIncomplete(err error) bool {
	var txErr *TxError
	return errors.As(err, &txErr) && txErr.Incomplete
}

// KindOf returns the kind of a transaction error.
func KindOf(err error) (ErrorKind, bool) {
	var txErr *TxError
	if errors.As(err, &txErr) {
		return txErr.Kind, true
	}
	return 0, false
}
