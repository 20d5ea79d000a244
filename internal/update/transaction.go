package update

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/stadtarchiv-lindau/lista-tools/internal/logging"
	"github.com/stadtarchiv-lindau/lista-tools/internal/types"
)

// State is a step of an update transaction.
type State int

const (
	StateIdle State = iota
	StateManifestFetched
	StateArtifactFetched
	StateVerified
	StateUnverified
	StateStaged
	StateSwapped
	StateCleaned
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateManifestFetched:
		return "ManifestFetched"
	case StateArtifactFetched:
		return "ArtifactFetched"
	case StateVerified:
		return "Verified"
	case StateUnverified:
		return "Unverified"
	case StateStaged:
		return "Staged"
	case StateSwapped:
		return "Swapped"
	case StateCleaned:
		return "Cleaned"
	case StateAborted:
		return "Aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// IsTerminal returns true for Cleaned and Aborted.
func (s State) IsTerminal() bool {
	return s == StateCleaned || s == StateAborted
}

// TransactionConfig holds the collaborators of a transaction.
type TransactionConfig struct {
	Slots       Slots
	ArtifactURL string
	Manifest    ManifestSource
	Fetcher     Fetcher
	Decider     Decider
	FS          FileSystem   // Defaults to the real file system
	Lock        Locker       // Optional
	Logger      *log.Logger  // Optional
	Progress    ProgressFunc // Optional
}

// Validate checks that every required collaborator is set.
func (c TransactionConfig) Validate() error {
	if c.Slots.Current == "" {
		return errors.New("target path is required")
	}
	if c.ArtifactURL == "" {
		return errors.New("artifact URL is required")
	}
	if c.Manifest == nil {
		return errors.New("manifest source is required")
	}
	if c.Fetcher == nil {
		return errors.New("fetcher is required")
	}
	if c.Decider == nil {
		return errors.New("decider is required")
	}
	return nil
}

// Outcome summarizes a transaction that ran to its end.
type Outcome struct {
	State          State
	Verified       bool   // Artifact digest matched the published one
	ExpectedDigest string // Empty when the digest was unavailable
	ActualDigest   string
	Declined       bool
	Warnings       []string
	Bytes          int64
}

// Transaction replaces one executable with a downloaded release. It is
// single use and not safe for concurrent use.
type Transaction struct {
	cfg      TransactionConfig
	replacer *Replacer
	logger   *log.Logger
	state    State
	history  []State
	ran      bool
}

// NewTransaction validates cfg and returns an idle transaction.
func NewTransaction(cfg TransactionConfig) (*Transaction, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction config: %w", err)
	}
	logger := logging.OrDiscard(cfg.Logger)
	return &Transaction{
		cfg:      cfg,
		replacer: NewReplacer(cfg.Slots, cfg.FS, logger),
		logger:   logger,
		state:    StateIdle,
		history:  []State{StateIdle},
	}, nil
}

// State returns the current state.
func (t *Transaction) State() State { return t.state }

// History returns every state entered so far, in order.
func (t *Transaction) History() []State {
	return append([]State(nil), t.history...)
}

// Run drives the transaction to Cleaned or Aborted. A declined gate returns
// a *TxError wrapping ErrDeclined together with an outcome marked Declined.
// A cleanup failure is reported in Outcome.Warnings and is not an error.
func (t *Transaction) Run(ctx context.Context) (*Outcome, error) {
	if t.ran {
		return nil, errors.New("transaction already ran")
	}
	t.ran = true
	out := &Outcome{}

	if t.cfg.Lock != nil {
		if err := t.cfg.Lock.Acquire(); err != nil {
			return t.finish(out, t.abort(&TxError{
				Kind:     KindLocked,
				Path:     t.cfg.Slots.Lock(),
				Recovery: fmt.Sprintf("Wait for the other update to finish. If no update is running, delete %s and try again.", t.cfg.Slots.Lock()),
				Err:      err,
			}))
		}
		defer func() {
			if err := t.cfg.Lock.Release(); err != nil {
				t.logger.Warn("could not release update lock", "err", err)
			}
		}()
	}

	t.logger.Info("checking expected digest")
	digest := t.cfg.Manifest.FetchExpectedDigest(ctx)
	out.ExpectedDigest = digest.Hex
	if !digest.Present {
		t.logger.Warn("integrity of the update cannot be verified", "reason", digest.Reason)
	}
	t.advance(StateManifestFetched)

	artifact, err := t.cfg.Fetcher.Fetch(ctx, t.cfg.ArtifactURL, t.cfg.Progress)
	if err != nil {
		return t.finish(out, t.abort(&TxError{
			Kind:     KindNetwork,
			Recovery: "Nothing was changed. Check your internet connection and run the update again.",
			Err:      err,
		}))
	}
	out.ActualDigest = artifact.Digest
	out.Bytes = artifact.Received
	t.advance(StateArtifactFetched)

	if err := t.verify(ctx, digest, artifact, out); err != nil {
		return t.finish(out, err)
	}
	if err := t.stage(ctx, artifact); err != nil {
		return t.finish(out, err)
	}

	moved, err := t.swap()
	if err != nil {
		return t.finish(out, err)
	}
	t.cleanup(moved, out)

	return t.finish(out, nil)
}

func (t *Transaction) verify(ctx context.Context, digest Digest, artifact *Artifact, out *Outcome) error {
	if digest.Present && digest.Hex == artifact.Digest {
		out.Verified = true
		t.logger.Info("update verified", "sha256", artifact.Digest)
		t.advance(StateVerified)
		return nil
	}

	if digest.Present {
		mismatch := &DigestMismatchError{Expected: digest.Hex, Got: artifact.Digest}
		t.logger.Warn("downloaded update does not match the published digest", "expected", mismatch.Expected, "got", mismatch.Got)
		d, err := t.decide(ctx, Prompt{
			Gate:    GateIntegrityMismatch,
			Message: "The downloaded file does not match the published checksum. Install it anyway?",
			Detail:  mismatch.Error(),
		})
		if err != nil || !d.Proceeds() {
			return t.abort(&TxError{
				Kind:     KindIntegrityMismatch,
				Recovery: "Nothing was changed. Try the update again later; if the mismatch persists, download the release manually.",
				Err:      declineReason(err, mismatch),
			})
		}
		out.Warnings = append(out.Warnings, "installed despite digest mismatch")
		t.advance(StateUnverified)
		return nil
	}

	t.advance(StateUnverified)
	d, err := t.decide(ctx, Prompt{
		Gate:    GateIntegrityUnavailable,
		Message: "The checksum could not be retrieved. The update will proceed UNVERIFIED. Continue?",
		Detail:  fmt.Sprintf("reason: %v\ndownloaded sha256: %s", digest.Reason, artifact.Digest),
	})
	if err != nil || !d.Proceeds() {
		return t.abort(&TxError{
			Kind:     KindIntegrityUnavailable,
			Recovery: "Nothing was changed. Run the update again when the checksum is reachable.",
			Err:      declineReason(err, digest.Reason),
		})
	}
	out.Warnings = append(out.Warnings, "installed without integrity verification")
	return nil
}

func (t *Transaction) stage(ctx context.Context, artifact *Artifact) error {
	slots := t.cfg.Slots

	newExists, err := t.replacer.Exists(types.SlotNew)
	if err != nil {
		return t.stagingFailure(err)
	}
	if newExists {
		d, err := t.decide(ctx, Prompt{
			Gate:    GateStaleNew,
			Message: "A downloaded update from an earlier run was found. Overwrite it?",
			Detail:  slots.New,
		})
		if err != nil || !d.Proceeds() {
			return t.abort(&TxError{
				Kind:     KindStaging,
				Path:     slots.New,
				Recovery: fmt.Sprintf("Nothing was changed. Delete %s or confirm overwriting it on the next run.", slots.New),
				Err:      declineReason(err, nil),
			})
		}
	}

	oldExists, err := t.replacer.Exists(types.SlotOld)
	if err != nil {
		return t.stagingFailure(err)
	}
	if oldExists {
		currentExists, err := t.replacer.Exists(types.SlotCurrent)
		if err != nil {
			return t.stagingFailure(err)
		}
		detail := fmt.Sprintf("%s will be replaced by the current version.", slots.Old)
		if !currentExists {
			detail = fmt.Sprintf("%s is missing; %s may be the only working copy and will be kept until the update succeeds.", slots.Current, slots.Old)
		}
		d, err := t.decide(ctx, Prompt{
			Gate:    GateStaleOld,
			Message: "A backup from an earlier, possibly failed, update was found. Continue?",
			Detail:  detail,
		})
		if err != nil || !d.Proceeds() {
			return t.abort(&TxError{
				Kind:     KindStaging,
				Path:     slots.Old,
				Recovery: fmt.Sprintf("Nothing was changed. If %s is missing, rename %s to %s to restore the previous version.", slots.Current, slots.Old, slots.Current),
				Err:      declineReason(err, nil),
			})
		}
	}

	if err := t.replacer.Stage(artifact.Data); err != nil {
		return t.stagingFailure(err)
	}
	t.logger.Info("update staged", "path", slots.New)
	t.advance(StateStaged)
	return nil
}

func (t *Transaction) stagingFailure(err error) error {
	return t.abort(&TxError{
		Kind:     KindStaging,
		Path:     t.cfg.Slots.New,
		Recovery: fmt.Sprintf("The installed version was not changed. Check free disk space and write permission in %s.", filepath.Dir(t.cfg.Slots.Current)),
		Err:      err,
	})
}

// swap renames current to old and new to current. It returns whether the
// current executable was moved aside.
func (t *Transaction) swap() (bool, error) {
	slots := t.cfg.Slots

	currentExists, err := t.replacer.Exists(types.SlotCurrent)
	if err != nil {
		return false, t.abort(&TxError{
			Kind:     KindSwap,
			Path:     slots.Current,
			Recovery: fmt.Sprintf("The installed version was not changed. The update is staged at %s.", slots.New),
			Err:      err,
		})
	}

	if currentExists {
		oldExists, err := t.replacer.Exists(types.SlotOld)
		if err == nil && oldExists {
			err = t.replacer.Remove(types.SlotOld)
		}
		if err != nil {
			return false, t.abort(&TxError{
				Kind:     KindSwap,
				Path:     slots.Old,
				Recovery: fmt.Sprintf("The installed version was not changed. Delete %s manually and run the update again.", slots.Old),
				Err:      err,
			})
		}
		if err := t.replacer.MoveAside(); err != nil {
			return false, t.abort(&TxError{
				Kind:     KindSwap,
				Path:     slots.Current,
				Recovery: fmt.Sprintf("The installed version was not changed. The update is staged at %s.", slots.New),
				Err:      err,
			})
		}
	} else {
		t.logger.Warn("current executable is missing, installing without backup", "path", slots.Current)
	}

	if err := t.replacer.Promote(); err != nil {
		recovery := fmt.Sprintf("Manual recovery may be required; the previous version is saved as %s. Rename it to %s to restore it.", slots.Old, slots.Current)
		if !currentExists {
			if ok, _ := t.replacer.Exists(types.SlotOld); !ok {
				recovery = fmt.Sprintf("Manual recovery may be required; the update is staged at %s. Rename it to %s to install it.", slots.New, slots.Current)
			}
		}
		return currentExists, t.abort(&TxError{
			Kind:       KindSwap,
			Path:       slots.Current,
			Recovery:   recovery,
			Incomplete: true,
			Err:        err,
		})
	}

	t.logger.Info("update installed", "path", slots.Current)
	t.advance(StateSwapped)
	return currentExists, nil
}

func (t *Transaction) cleanup(moved bool, out *Outcome) {
	if err := t.replacer.Remove(types.SlotOld); err != nil {
		cleanupErr := &TxError{Kind: KindCleanup, State: t.state, Path: t.cfg.Slots.Old, Err: err}
		t.logger.Warn("could not remove previous version", "path", t.cfg.Slots.Old, "err", err)
		out.Warnings = append(out.Warnings, cleanupErr.Error())
	} else if moved {
		t.logger.Debug("removed previous version", "path", t.cfg.Slots.Old)
	}
	t.advance(StateCleaned)
}

func (t *Transaction) decide(ctx context.Context, p Prompt) (Decision, error) {
	d, err := t.cfg.Decider.Decide(ctx, p)
	if err != nil {
		t.logger.Error("could not get a decision", "gate", p.Gate, "err", err)
		return Decline, err
	}
	t.logger.Debug("gate decided", "gate", p.Gate, "decision", d)
	return d, nil
}

func (t *Transaction) advance(s State) {
	t.state = s
	t.history = append(t.history, s)
}

// abort moves the transaction to Aborted and records the state it left.
func (t *Transaction) abort(e *TxError) error {
	e.State = t.state
	t.advance(StateAborted)
	if IsDeclined(e) {
		t.logger.Info("update cancelled", "state", e.State)
	} else {
		t.logger.Error("update failed", "kind", e.Kind, "state", e.State, "err", e.Err)
	}
	return e
}

func (t *Transaction) finish(out *Outcome, err error) (*Outcome, error) {
	out.State = t.state
	out.Declined = IsDeclined(err)
	return out, err
}

// declineReason wraps the cause of a gate that did not proceed. A decider
// error is returned as is; otherwise the error wraps ErrDeclined.
func declineReason(decideErr, cause error) error {
	if decideErr != nil {
		return decideErr
	}
	if cause == nil {
		return ErrDeclined
	}
	return fmt.Errorf("%w: %w", ErrDeclined, cause)
}
