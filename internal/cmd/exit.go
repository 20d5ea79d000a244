package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stadtarchiv-lindau/lista-tools/internal/handoff"
	"github.com/stadtarchiv-lindau/lista-tools/internal/update"
)

// Process exit codes of the updater.
const (
	ExitOK             = 0
	ExitGeneral        = 1
	ExitNetwork        = 2
	ExitStaging        = 3
	ExitSwapIncomplete = 4
	ExitLocked         = 5
	ExitInvalidHandoff = 6
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE
// handlers. Message, when set, is shown instead of Err's text.
type ExitError struct {
	Code    int
	Err     error
	Message string
}

// Error returns the message for ExitError.
func (e *ExitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for err: 0 for nil, the code of an
// ExitError, or 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitGeneral
}

// classifyApplyExitCode maps an updater error to the process exit code.
// A declined gate is a graceful end and exits 0.
func classifyApplyExitCode(err error) int {
	switch {
	case err == nil, update.IsDeclined(err):
		return ExitOK
	case errors.Is(err, handoff.ErrInvalid), errors.Is(err, handoff.ErrUnsupportedSchema):
		return ExitInvalidHandoff
	case update.IsIncomplete(err):
		return ExitSwapIncomplete
	}

	kind, ok := update.KindOf(err)
	if !ok {
		return ExitGeneral
	}
	switch kind {
	case update.KindNetwork:
		return ExitNetwork
	case update.KindStaging, update.KindSwap:
		return ExitStaging
	case update.KindLocked:
		return ExitLocked
	default:
		return ExitGeneral
	}
}

// formatApplyError produces the message shown for a failed update, ending
// with the action the user should take next.
func formatApplyError(err error) string {
	var b strings.Builder

	var txErr *update.TxError
	switch {
	case errors.Is(err, handoff.ErrUnsupportedSchema):
		b.WriteString(err.Error())
		b.WriteString("\n\nThe updater is older than the lista-tools that started it. Download the latest release manually.")
		return b.String()
	case errors.Is(err, handoff.ErrInvalid):
		b.WriteString(err.Error())
		b.WriteString("\n\nStart the update from lista-tools instead of running the updater directly.")
		return b.String()
	case errors.As(err, &txErr):
		if update.IsIncomplete(err) {
			b.WriteString("UPDATE INCOMPLETE: ")
		}
		b.WriteString(txErr.Error())
	default:
		b.WriteString(err.Error())
	}

	if txErr != nil && txErr.Recovery != "" {
		b.WriteString("\n\n")
		b.WriteString(txErr.Recovery)
	} else if txErr == nil {
		b.WriteString("\n\nPlease try again. If this persists, download the latest release manually.")
	}
	return b.String()
}
