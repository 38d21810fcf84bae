// Package verbosity decides which optional trace details are captured for a
// configured level.
package verbosity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFilterMisconfiguration is returned when a verbosity level is unknown.
var ErrFilterMisconfiguration = errors.New("invalid verbosity level")

// MisconfigurationError carries the offending value.
type MisconfigurationError struct {
	Value string
}

func (e *MisconfigurationError) Error() string {
	return fmt.Sprintf("%s: %q (expected: quiet|minimal|normal|detailed|diagnostic)", ErrFilterMisconfiguration, e.Value)
}

func (e *MisconfigurationError) Unwrap() error { return ErrFilterMisconfiguration }

// Level is an ordered verbosity setting.
type Level uint8

const (
	Quiet Level = iota
	Minimal
	Normal
	Detailed
	Diagnostic
)

func (l Level) String() string {
	switch l {
	case Quiet:
		return "quiet"
	case Minimal:
		return "minimal"
	case Normal:
		return "normal"
	case Detailed:
		return "detailed"
	case Diagnostic:
		return "diagnostic"
	default:
		return "unknown"
	}
}

// Valid reports whether l is one of the five defined levels.
func (l Level) Valid() bool { return l <= Diagnostic }

// AtLeast reports whether l is at or above required.
func (l Level) AtLeast(required Level) bool { return l >= required }

// Parse converts a level name (or its short alias) to a Level.
func Parse(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "q", "quiet":
		return Quiet, nil
	case "m", "minimal":
		return Minimal, nil
	case "n", "normal":
		return Normal, nil
	case "d", "detailed":
		return Detailed, nil
	case "diag", "diagnostic":
		return Diagnostic, nil
	default:
		return Quiet, &MisconfigurationError{Value: s}
	}
}

// MarshalText encodes the level by name.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, &MisconfigurationError{Value: fmt.Sprintf("%d", uint8(l))}
	}
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name.
func (l *Level) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Feature is an optional piece of trace detail with a minimum level.
type Feature uint8

const (
	Parameters Feature = iota
	SenderIdentity
	FileDetail
	Location
	PropertyDump
	NormalImportance
	LowImportance
	FinishMessage
)

func (f Feature) String() string {
	switch f {
	case Parameters:
		return "parameters"
	case SenderIdentity:
		return "sender-identity"
	case FileDetail:
		return "file-detail"
	case Location:
		return "location"
	case PropertyDump:
		return "property-dump"
	case NormalImportance:
		return "normal-importance"
	case LowImportance:
		return "low-importance"
	case FinishMessage:
		return "finish-message"
	default:
		return "unknown"
	}
}

// Required returns the minimum level at which f is included.
func (f Feature) Required() Level {
	switch f {
	case NormalImportance:
		return Normal
	case Parameters, SenderIdentity, FileDetail, Location, LowImportance, FinishMessage:
		return Detailed
	case PropertyDump:
		return Diagnostic
	default:
		return Diagnostic
	}
}

// Allows reports whether f is included at level l.
func (l Level) Allows(f Feature) bool {
	return l.AtLeast(f.Required())
}
