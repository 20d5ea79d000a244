// Package interactive provides interactive prompts for user confirmation.
package interactive

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/stadtarchiv-lindau/lista-tools/internal/output"
	"github.com/stadtarchiv-lindau/lista-tools/internal/update"
)

// Response represents the user's response to a prompt.
type Response int

const (
	ResponseNo  Response = iota // Decline, also the default
	ResponseYes                 // Proceed
)

// Prompter asks yes/no questions on a terminal.
type Prompter struct {
	in      io.Reader
	out     io.Writer
	scanner *bufio.Scanner
}

// NewPrompter creates a prompter with stdin/stdout.
func NewPrompter() *Prompter {
	return NewPrompterWithIO(os.Stdin, os.Stdout)
}

// NewPrompterWithIO creates a prompter with custom input/output (for testing).
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:      in,
		out:     out,
		scanner: bufio.NewScanner(in),
	}
}

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// prompt displays a question and reads the response. Anything but an
// explicit yes, including end of input, is a no.
func (p *Prompter) prompt(format string, args ...interface{}) Response {
	_, _ = fmt.Fprintf(p.out, format, args...)
	_, _ = fmt.Fprint(p.out, " [y/N] ")

	if !p.scanner.Scan() {
		_, _ = fmt.Fprintln(p.out)
		return ResponseNo
	}

	input := strings.ToLower(strings.TrimSpace(p.scanner.Text()))
	switch input {
	case "y", "yes", "j", "ja":
		return ResponseYes
	default:
		return ResponseNo
	}
}

// Confirm asks a plain yes/no question.
func (p *Prompter) Confirm(question string) bool {
	return p.prompt("%s", question) == ResponseYes
}

// Decide implements update.Decider by asking on the terminal. Integrity
// gates print a warning first and a yes is recorded as a degraded proceed.
func (p *Prompter) Decide(ctx context.Context, pr update.Prompt) (update.Decision, error) {
	if err := ctx.Err(); err != nil {
		return update.Decline, err
	}

	switch pr.Gate {
	case update.GateIntegrityUnavailable:
		_, _ = fmt.Fprintln(p.out, output.ErrorStyle.Render("WARNING: the update cannot be verified and will proceed UNVERIFIED."))
	case update.GateIntegrityMismatch:
		_, _ = fmt.Fprintln(p.out, output.WarningStyle.Render("WARNING: checksum mismatch."))
	case update.GateStaleNew, update.GateStaleOld:
		_, _ = fmt.Fprintln(p.out, output.WarningStyle.Render("Leftover files from an earlier update were found."))
	}
	if pr.Detail != "" {
		_, _ = fmt.Fprintln(p.out, output.MutedStyle.Render(pr.Detail))
	}

	if p.prompt("%s", pr.Message) != ResponseYes {
		return update.Decline, nil
	}
	if pr.Gate.IsIntegrity() {
		return update.ProceedDegraded, nil
	}
	return update.Proceed, nil
}

// WaitForEnter prints message and blocks until a line or end of input is
// read.
func (p *Prompter) WaitForEnter(message string) {
	_, _ = fmt.Fprint(p.out, message)
	p.scanner.Scan()
	_, _ = fmt.Fprintln(p.out)
}
