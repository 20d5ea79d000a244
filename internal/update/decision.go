package update

import "context"

// Gate identifies a point at which an update needs the user's consent.
type Gate int

const (
	// GateConfirmUpdate asks whether to start the update at all.
	GateConfirmUpdate Gate = iota + 1
	// GateIntegrityMismatch is reached when the artifact digest differs
	// from the published one.
	GateIntegrityMismatch
	// GateIntegrityUnavailable is reached when no published digest could
	// be obtained.
	GateIntegrityUnavailable
	// GateStaleNew is reached when a staged file from an earlier run exists.
	GateStaleNew
	// GateStaleOld is reached when a backup from an earlier run exists.
	GateStaleOld
)

// String returns a short identifier for the gate.
func (g Gate) String() string {
	switch g {
	case GateConfirmUpdate:
		return "confirm-update"
	case GateIntegrityMismatch:
		return "integrity-mismatch"
	case GateIntegrityUnavailable:
		return "integrity-unavailable"
	case GateStaleNew:
		return "stale-new"
	case GateStaleOld:
		return "stale-old"
	default:
		return "unknown"
	}
}

// IsIntegrity returns true for gates where proceeding means accepting an
// unverified artifact.
func (g Gate) IsIntegrity() bool {
	return g == GateIntegrityMismatch || g == GateIntegrityUnavailable
}

// Decision is the outcome of a gate. The zero value declines.
type Decision int

const (
	Decline Decision = iota
	Proceed
	ProceedDegraded
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case ProceedDegraded:
		return "proceed-degraded"
	default:
		return "decline"
	}
}

// Proceeds returns true unless the decision declines.
func (d Decision) Proceeds() bool {
	return d == Proceed || d == ProceedDegraded
}

// Prompt is what a decider is asked at a gate.
type Prompt struct {
	Gate    Gate
	Message string // One-line question
	Detail  string // Optional context such as paths or digests
}

// Decider answers gates. Implementations may block, for example on a
// terminal prompt.
type Decider interface {
	Decide(ctx context.Context, p Prompt) (Decision, error)
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func(ctx context.Context, p Prompt) (Decision, error)

// Decide calls f.
func (f DeciderFunc) Decide(ctx context.Context, p Prompt) (Decision, error) {
	return f(ctx, p)
}

// AutoDecider proceeds at every gate without asking. Integrity gates are
// answered with ProceedDegraded so the outcome still records that the
// artifact was not verified.
type AutoDecider struct{}

// Decide implements Decider.
func (AutoDecider) Decide(_ context.Context, p Prompt) (Decision, error) {
	if p.Gate.IsIntegrity() {
		return ProceedDegraded, nil
	}
	return Proceed, nil
}
