// Package types provides type-safe constants shared by the lista-tools
// configuration, the updater handoff contract and the self-update core.
//
// SYNC REQUIREMENT: LogLevel values are part of the updater handoff contract
// (internal/handoff). Adding or renaming a value requires a schema bump there.
package types

import (
	"fmt"
	"strings"
)

// LogLevel controls how much the CLI and the updater report.
type LogLevel string

const (
	// LogLevelNone silences all log output.
	LogLevelNone LogLevel = "none"
	// LogLevelError reports only failures.
	LogLevelError LogLevel = "error"
	// LogLevelWarn reports failures and degraded states.
	LogLevelWarn LogLevel = "warn"
	// LogLevelFull reports every step of the update.
	LogLevelFull LogLevel = "full"
	// LogLevelDebug adds diagnostic detail (URLs, byte counts, digests).
	LogLevelDebug LogLevel = "debug"
)

// AllLogLevels returns all valid log levels, quietest first.
func AllLogLevels() []LogLevel {
	return []LogLevel{LogLevelNone, LogLevelError, LogLevelWarn, LogLevelFull, LogLevelDebug}
}

// Validate checks if the LogLevel is a valid value.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelNone, LogLevelError, LogLevelWarn, LogLevelFull, LogLevelDebug:
		return nil
	case "":
		return fmt.Errorf("log level is required")
	default:
		return fmt.Errorf("invalid log level '%s' (must be none, error, warn, full, or debug)", l)
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	return string(l)
}

// IsSilent returns true if nothing should be logged.
func (l LogLevel) IsSilent() bool {
	return l == LogLevelNone
}

// Default returns LogLevelFull if empty, otherwise returns the current level.
func (l LogLevel) Default() LogLevel {
	if l == "" {
		return LogLevelFull
	}
	return l
}

// ParseLogLevel parses a string into a LogLevel.
// Returns an error if the string is not a valid log level.
func ParseLogLevel(s string) (LogLevel, error) {
	l := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	if err := l.Validate(); err != nil {
		return "", err
	}
	return l, nil
}

// SlotName identifies one of the three file-system locations involved in an
// executable swap.
type SlotName string

const (
	// SlotCurrent is the live executable.
	SlotCurrent SlotName = "current"
	// SlotOld is the pre-swap backup of the live executable.
	SlotOld SlotName = "old"
	// SlotNew is the freshly downloaded candidate.
	SlotNew SlotName = "new"
)

// AllSlotNames returns all slot names in swap order.
func AllSlotNames() []SlotName {
	return []SlotName{SlotCurrent, SlotOld, SlotNew}
}

// Validate checks if the SlotName is a valid value.
func (s SlotName) Validate() error {
	switch s {
	case SlotCurrent, SlotOld, SlotNew:
		return nil
	case "":
		return fmt.Errorf("slot name is required")
	default:
		return fmt.Errorf("invalid slot '%s' (must be current, old, or new)", s)
	}
}

// String returns the string representation of the SlotName.
func (s SlotName) String() string {
	return string(s)
}

// Suffix returns the file name suffix appended to the live executable path
// for this slot. The live slot has no suffix.
func (s SlotName) Suffix() string {
	switch s {
	case SlotOld:
		return ".old"
	case SlotNew:
		return ".new"
	default:
		return ""
	}
}
